package vec

import "testing"

func TestFloorDivNegatives(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b, want int
	}{
		{0, 64, 0},
		{63, 64, 0},
		{64, 64, 1},
		{-1, 64, -1},
		{-64, 64, -1},
		{-65, 64, -2},
		{130, 64, 2},
	}
	for _, c := range cases {
		if got := FloorDiv(c.a, c.b); got != c.want {
			t.Fatalf("FloorDiv(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestFloorModWrapsIntoRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b, want int
	}{
		{0, 64, 0},
		{63, 64, 63},
		{64, 64, 0},
		{-1, 64, 63},
		{-64, 64, 0},
		{-65, 64, 63},
		{130, 64, 2},
	}
	for _, c := range cases {
		if got := FloorMod(c.a, c.b); got != c.want {
			t.Fatalf("FloorMod(%d,%d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestClamp(t *testing.T) {
	t.Parallel()

	if got := Clamp(-5, 0, 400); got != 0 {
		t.Fatalf("Clamp(-5) = %d, want 0", got)
	}
	if got := Clamp(500, 0, 400); got != 400 {
		t.Fatalf("Clamp(500) = %d, want 400", got)
	}
	if got := Clamp(123, 0, 400); got != 123 {
		t.Fatalf("Clamp(123) = %d, want 123", got)
	}
}

func TestAddFullLength(t *testing.T) {
	t.Parallel()

	got := V2{3, -4}.Add(V2{-3, 4})
	if got != (V2{0, 0}) {
		t.Fatalf("Add = %#v, want origin", got)
	}
}

func TestSub(t *testing.T) {
	t.Parallel()

	got := V2{3, -4}.Sub(V2{1, 1})
	if got != (V2{2, -5}) {
		t.Fatalf("Sub = %#v, want {2 -5}", got)
	}
}

func TestScale(t *testing.T) {
	t.Parallel()

	got := V2F{2, -8}.Scale(0.5)
	if got != (V2F{1, -4}) {
		t.Fatalf("Scale = %#v, want {1 -4}", got)
	}
	if got := (V2F{2, 3}).Scale(0); !got.IsZero() {
		t.Fatalf("Scale(0) = %#v, want zero", got)
	}
}

func TestFloatAdd(t *testing.T) {
	t.Parallel()

	got := V2F{1.5, -0.5}.Add(V2F{0.5, 0.5})
	if got != (V2F{2, 0}) {
		t.Fatalf("Add = %#v, want {2 0}", got)
	}
}

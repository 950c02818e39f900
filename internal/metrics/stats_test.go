package metrics

import (
	"context"
	"testing"
	"time"
)

func TestRunStatsPollsSnapshotUntilCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 8)
	go RunStats(ctx, 10*time.Millisecond, func() Stats {
		select {
		case calls <- struct{}{}:
		default:
		}
		return Stats{Sessions: 1}
	})

	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("snapshot was not polled")
		}
	}

	cancel()
	time.Sleep(30 * time.Millisecond)
	for len(calls) > 0 {
		<-calls
	}
	select {
	case <-calls:
		t.Fatal("snapshot polled after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

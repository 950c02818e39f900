package core

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/protocol"
	"github.com/mgrant26/clubcthulu/internal/vec"
)

type sentItem struct {
	addr *net.UDPAddr
	resp protocol.Response
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentItem
}

func (s *recordingSender) Send(addr *net.UDPAddr, resp *protocol.Response, retries int) *protocol.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentItem{addr: addr, resp: *resp})
	return resp
}

func (s *recordingSender) byResponse(name string) []sentItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentItem
	for _, it := range s.sent {
		if it.resp.Response == name {
			out = append(out, it)
		}
	}
	return out
}

type spawnPlacer struct {
	mu      sync.Mutex
	spawn   vec.V2
	removed []*Client
}

func (p *spawnPlacer) AddClient(c *Client) {
	c.SetChunk(p.spawn)
}

func (p *spawnPlacer) RemoveClient(c *Client) {
	p.mu.Lock()
	p.removed = append(p.removed, c)
	p.mu.Unlock()
}

func newTestRegistry() (*Registry, *recordingSender, *spawnPlacer) {
	sender := &recordingSender{}
	placer := &spawnPlacer{spawn: vec.V2{X: 32, Y: 32}}
	r := NewRegistry(sender, DefaultDCTime)
	r.AttachWorld(placer)
	return r, sender, placer
}

func addClient(t *testing.T, r *Registry, name string) *Client {
	t.Helper()
	c := NewClient(uuid.New(), name, 0)
	c.SetAddr(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6000 + len(name)})
	if !r.Add(c) {
		t.Fatalf("add %q failed", name)
	}
	return c
}

func TestAddRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	first := addClient(t, r, "Dave")

	dup := NewClient(uuid.New(), "dAvE", 0)
	if r.Add(dup) {
		t.Fatal("duplicate name accepted")
	}
	if got := r.GetByName("DAVE"); got != first {
		t.Fatalf("lookup after duplicate add returned %v, want original", got)
	}
	if r.GetBySession(dup.Session()) != nil {
		t.Fatal("rejected client leaked into session index")
	}
	if r.Count() != 1 {
		t.Fatalf("count = %d, want 1", r.Count())
	}
}

func TestIndexesReturnTheSameClient(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	c := addClient(t, r, "Mercury")

	if got := r.GetByID(c.ID()); got != c {
		t.Fatalf("by id: %v", got)
	}
	if got := r.GetByName("mercury"); got != c {
		t.Fatalf("by name: %v", got)
	}
	if got := r.GetBySession(c.Session()); got != c {
		t.Fatalf("by session: %v", got)
	}
}

func TestAddAnnouncesJoinAtSpawn(t *testing.T) {
	t.Parallel()

	r, sender, _ := newTestRegistry()
	addClient(t, r, "first")
	second := addClient(t, r, "second")

	joins := sender.byResponse(protocol.ResponseClientJoined)
	// First join announced to one client, second to two.
	if len(joins) != 3 {
		t.Fatalf("client-joined sends = %d, want 3", len(joins))
	}
	last := joins[len(joins)-1].resp
	if last.ClientName != "second" || last.ClientID != second.ID().String() {
		t.Fatalf("announce = %#v", last)
	}
	if last.ChunkX == nil || *last.ChunkX != 32 || last.ChunkY == nil || *last.ChunkY != 32 {
		t.Fatalf("announce chunk = %#v, want spawn 32,32", last)
	}
}

func TestRemoveBySessionIsIdempotent(t *testing.T) {
	t.Parallel()

	r, sender, placer := newTestRegistry()
	c := addClient(t, r, "leaver")
	session := c.Session()

	if !r.RemoveBySession(session) {
		t.Fatal("first remove reported false")
	}
	if !r.RemoveBySession(session) {
		t.Fatal("second remove must still report true")
	}
	if r.GetBySession(session) != nil || r.GetByName("leaver") != nil || r.GetByID(c.ID()) != nil {
		t.Fatal("indexes still hold removed client")
	}
	if got := len(sender.byResponse(protocol.ResponseClientLeft)); got != 1 {
		t.Fatalf("client-left broadcasts = %d, want 1", got)
	}
	placer.mu.Lock()
	removed := len(placer.removed)
	placer.mu.Unlock()
	if removed != 1 {
		t.Fatalf("world removals = %d, want 1", removed)
	}
}

func TestKickUpcallCarriesReasonAndRemoves(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	var (
		mu      sync.Mutex
		reasons []string
	)
	r.OnKick(func(addr *net.UDPAddr, message string) {
		mu.Lock()
		reasons = append(reasons, message)
		mu.Unlock()
	})

	c := addClient(t, r, "target")
	r.Kick(c, "Kicked by SERVER")
	r.Kick(c, "Kicked by SERVER") // second kick is a no-op

	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 1 || reasons[0] != "Kicked by SERVER" {
		t.Fatalf("kick upcalls = %v, want one with reason", reasons)
	}
	if r.GetByName("target") != nil {
		t.Fatal("kicked client still registered")
	}
}

func TestSweeperKicksSilentClients(t *testing.T) {
	t.Parallel()

	sender := &recordingSender{}
	r := NewRegistry(sender, 30*time.Millisecond)
	var (
		mu      sync.Mutex
		reasons []string
	)
	r.OnKick(func(addr *net.UDPAddr, message string) {
		mu.Lock()
		reasons = append(reasons, message)
		mu.Unlock()
	})

	c := NewClient(uuid.New(), "idler", 0)
	if !r.Add(c) {
		t.Fatal("add failed")
	}

	r.sweepOnce()
	if r.GetByName("idler") == nil {
		t.Fatal("client kicked before dc_time elapsed")
	}

	time.Sleep(50 * time.Millisecond)
	r.sweepOnce()
	if r.GetByName("idler") != nil {
		t.Fatal("silent client not kicked")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 1 || reasons[0] != "Session timed out." {
		t.Fatalf("reasons = %v", reasons)
	}
}

func TestTouchDefersTimeoutKick(t *testing.T) {
	t.Parallel()

	r := NewRegistry(&recordingSender{}, 40*time.Millisecond)
	c := NewClient(uuid.New(), "chatty", 0)
	if !r.Add(c) {
		t.Fatal("add failed")
	}

	time.Sleep(25 * time.Millisecond)
	if !r.TouchBySession(c.Session()) {
		t.Fatal("touch of live session failed")
	}
	time.Sleep(25 * time.Millisecond)
	r.sweepOnce()
	if r.GetBySession(c.Session()) == nil {
		t.Fatal("touched client was kicked")
	}

	if r.TouchBySession("no-such-session") {
		t.Fatal("touch of unknown session reported true")
	}
}

func TestStopKicksEveryoneWithClosingNotice(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	var (
		mu      sync.Mutex
		reasons []string
	)
	r.OnKick(func(addr *net.UDPAddr, message string) {
		mu.Lock()
		reasons = append(reasons, message)
		mu.Unlock()
	})
	addClient(t, r, "one")
	addClient(t, r, "two")

	r.Start()
	r.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 2 {
		t.Fatalf("kick upcalls = %d, want 2", len(reasons))
	}
	for _, reason := range reasons {
		if reason != "Server is closing." {
			t.Fatalf("reason = %q", reason)
		}
	}
	if r.Count() != 0 {
		t.Fatalf("count after stop = %d, want 0", r.Count())
	}
}

func TestListMapsLoweredNamesToIDs(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	c := addClient(t, r, "Vexa")

	list := r.List()
	if len(list) != 1 {
		t.Fatalf("list = %v", list)
	}
	if list["vexa"] != c.ID() {
		t.Fatalf("list[vexa] = %v, want %v", list["vexa"], c.ID())
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	t.Parallel()

	r, sender, _ := newTestRegistry()
	addClient(t, r, "a")
	addClient(t, r, "b")

	r.Broadcast(protocol.ChatMessage("someone", "hello"))

	if got := len(sender.byResponse(protocol.ResponseMessage)); got != 2 {
		t.Fatalf("chat sends = %d, want 2", got)
	}
}

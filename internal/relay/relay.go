// Package relay implements the reliable half of the datagram protocol:
// every outbound payload gets a packet id, sits in a pending table, and is
// re-sent on a timer until the peer confirms receipt or retries run out.
package relay

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mgrant26/clubcthulu/internal/clock"
	"github.com/mgrant26/clubcthulu/internal/metrics"
	"github.com/mgrant26/clubcthulu/internal/protocol"
)

const (
	// DefaultRetries is the number of retransmissions after the initial
	// send. Broadcast traffic passes 1 explicitly; loss there is cheap.
	DefaultRetries = 1

	// RetryInterval is how long a pending entry waits before it is
	// re-sent or, once out of retries, dropped.
	RetryInterval = 500 * time.Millisecond

	scanInterval = 10 * time.Millisecond
)

// PacketWriter is the socket half the relay needs. *net.UDPConn satisfies
// it; tests substitute a capture.
type PacketWriter interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// PeerHub routes payloads for addresses owned by bridge sockets instead of
// the UDP socket. Deliver reports whether it claimed the address.
type PeerHub interface {
	Deliver(addr string, payload []byte) bool
}

type pending struct {
	payload   []byte
	addr      *net.UDPAddr
	retries   int
	accum     time.Duration
	confirmed bool
}

// Pending describes one unacked message, as dumped by printqueue.
type Pending struct {
	Addr    string
	Retries int
	Waited  time.Duration
	Bytes   int
}

// Relay owns the pending table. Send, Confirm, and the retry loop run on
// different goroutines and serialize on one mutex.
type Relay struct {
	conn PacketWriter

	mu       sync.Mutex
	hub      PeerHub
	waiting  map[uuid.UUID]*pending
	toRemove []uuid.UUID

	interval time.Duration
	scan     time.Duration
	timer    *clock.Timer

	stop chan struct{}
	done chan struct{}
}

// New returns a relay writing through conn. Start must be called before
// retries fire.
func New(conn PacketWriter) *Relay {
	return &Relay{
		conn:     conn,
		waiting:  make(map[uuid.UUID]*pending),
		interval: RetryInterval,
		scan:     scanInterval,
		timer:    clock.New(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// AttachHub points the relay at a bridge hub. Sends to addresses the hub
// claims go through it; everything else goes out over UDP.
func (r *Relay) AttachHub(h PeerHub) {
	r.mu.Lock()
	r.hub = h
	r.mu.Unlock()
}

// Start launches the retry loop.
func (r *Relay) Start() {
	go r.run()
}

// Stop halts the retry loop and waits for it to exit. Pending entries are
// discarded.
func (r *Relay) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Relay) run() {
	defer close(r.done)
	slog.Info("message relay started", "retry_interval", r.interval)
	ticker := time.NewTicker(r.scan)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(r.timer.Delta())
		}
	}
}

// Send stamps resp with a fresh packet id and the current unix timestamp,
// transmits it once, and leaves it pending until Confirm or retry
// exhaustion. retries is the number of retransmissions still allowed.
// Socket errors are logged, not returned; reliability comes from the
// retry loop.
func (r *Relay) Send(addr *net.UDPAddr, resp *protocol.Response, retries int) *protocol.Response {
	id := uuid.New()
	resp.PacketID = id.String()
	resp.Timestamp = float64(time.Now().UnixMicro()) / 1e6

	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("encode response", "response", resp.Response, "err", err)
		return resp
	}
	if len(data) > protocol.MaxPayload {
		slog.Warn("payload exceeds receive buffer", "response", resp.Response, "bytes", len(data))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting[id] = &pending{payload: data, addr: addr, retries: retries}
	r.transmitLocked(id, data, addr)
	return resp
}

// Confirm schedules removal of a pending entry. Unknown ids report false.
// Confirming twice is the same as confirming once.
func (r *Relay) Confirm(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.waiting[id]
	if !ok {
		return false
	}
	if !p.confirmed {
		p.confirmed = true
		r.toRemove = append(r.toRemove, id)
		metrics.Confirms.Inc()
	}
	return true
}

// Waiting snapshots the pending table keyed by packet id.
func (r *Relay) Waiting() map[string]Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Pending, len(r.waiting))
	for id, p := range r.waiting {
		addr := ""
		if p.addr != nil {
			addr = p.addr.String()
		}
		out[id.String()] = Pending{
			Addr:    addr,
			Retries: p.retries,
			Waited:  p.accum,
			Bytes:   len(p.payload),
		}
	}
	return out
}

// sweep advances every accumulator by delta, re-sends entries whose
// interval expired, and removes exhausted or confirmed entries in one
// deferred pass so iteration stays stable.
func (r *Relay) sweep(delta time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.waiting {
		if p.confirmed {
			continue
		}
		p.accum += delta
		if p.accum < r.interval {
			continue
		}
		if p.retries < 1 || p.addr == nil || len(p.addr.IP) == 0 {
			r.toRemove = append(r.toRemove, id)
			metrics.PendingExpired.Inc()
			slog.Debug("packet expired", "packet_id", id)
			continue
		}
		p.accum = 0
		p.retries--
		r.transmitLocked(id, p.payload, p.addr)
		metrics.Retransmissions.Inc()
	}
	for _, id := range r.toRemove {
		delete(r.waiting, id)
	}
	r.toRemove = r.toRemove[:0]
}

func (r *Relay) transmitLocked(id uuid.UUID, payload []byte, addr *net.UDPAddr) {
	metrics.DatagramsSent.Inc()
	if r.hub != nil && addr != nil && r.hub.Deliver(addr.String(), payload) {
		return
	}
	if addr == nil {
		return
	}
	if _, err := r.conn.WriteToUDP(payload, addr); err != nil {
		slog.Warn("datagram send failed", "addr", addr, "packet_id", id, "err", err)
	}
}

// Package bridge carries the datagram protocol over stream transports:
// WebSocket and WebTransport peers get a synthetic UDP-shaped address,
// their frames feed the dispatcher as if they came off the socket, and
// replies route back through the peer registered here.
package bridge

import (
	"log/slog"
	"net"
	"strconv"
	"sync"
)

// Peer is one bridge connection's write half. Implementations serialize
// their own writes.
type Peer interface {
	WritePayload(payload []byte) error
}

// Injector is the dispatcher capability bridges feed inbound frames into.
type Injector interface {
	ProcessDatagram(data []byte, addr *net.UDPAddr)
}

// Hub maps synthetic addresses to bridge peers. The relay asks it before
// every transmission; a claimed address never touches the UDP socket.
type Hub struct {
	mu    sync.Mutex
	peers map[string]Peer
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{peers: make(map[string]Peer)}
}

// Register claims addr for p. A reconnecting peer with the same remote
// address simply replaces the old entry.
func (h *Hub) Register(addr string, p Peer) {
	h.mu.Lock()
	h.peers[addr] = p
	h.mu.Unlock()
	slog.Debug("bridge peer registered", "addr", addr)
}

// Unregister releases addr. Unknown addresses are a no-op.
func (h *Hub) Unregister(addr string) {
	h.mu.Lock()
	delete(h.peers, addr)
	h.mu.Unlock()
	slog.Debug("bridge peer unregistered", "addr", addr)
}

// Deliver writes payload to the peer owning addr and reports whether the
// address was claimed. Write errors are logged and swallowed; the relay's
// retry loop re-delivers like it would for a lost datagram.
func (h *Hub) Deliver(addr string, payload []byte) bool {
	h.mu.Lock()
	p, ok := h.peers[addr]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if err := p.WritePayload(payload); err != nil {
		slog.Warn("bridge delivery failed", "addr", addr, "err", err)
	}
	return true
}

// Count returns the number of connected bridge peers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// synthAddr converts a peer's transport remote ("ip:port") into the
// UDP-shaped address the dispatcher and relay key on.
func synthAddr(remote string) *net.UDPAddr {
	host, portStr, err := net.SplitHostPort(remote)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	return &net.UDPAddr{IP: ip, Port: port}
}

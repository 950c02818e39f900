// Package server owns the UDP endpoint: it binds the socket, decodes
// request envelopes, and routes them to handlers that drive the relay,
// the registry, the world, and the store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mgrant26/clubcthulu/internal/core"
	"github.com/mgrant26/clubcthulu/internal/metrics"
	"github.com/mgrant26/clubcthulu/internal/protocol"
	"github.com/mgrant26/clubcthulu/internal/relay"
	"github.com/mgrant26/clubcthulu/internal/store"
	"github.com/mgrant26/clubcthulu/internal/world"
)

// readTimeout bounds each blocking read so the loop can notice the
// running flag without a datagram arriving.
const readTimeout = 5 * time.Second

// Server is the dispatcher. It reads datagrams off the socket and feeds
// them through the request table; bridge transports inject through
// ProcessDatagram and share the same path.
type Server struct {
	conn     *net.UDPConn
	relay    *relay.Relay
	registry *core.Registry
	world    *world.World
	store    *store.Store

	keys *sessionKeys

	running atomic.Bool
	done    chan struct{}
}

// Listen binds the dispatcher's UDP socket with SO_REUSEADDR so a restart
// can rebind the port immediately.
func Listen(host string, port int) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("bind udp %s:%d: %w", host, port, err)
	}
	return pc.(*net.UDPConn), nil
}

// New wires a dispatcher over an already-bound socket and generates the
// per-run RSA keypair. The registry's kick upcall is pointed at the relay
// so kicked clients hear why before their session disappears.
func New(conn *net.UDPConn, rly *relay.Relay, reg *core.Registry, w *world.World, st *store.Store) (*Server, error) {
	keys, err := newSessionKeys()
	if err != nil {
		return nil, err
	}
	s := &Server{
		conn:     conn,
		relay:    rly,
		registry: reg,
		world:    w,
		store:    st,
		keys:     keys,
		done:     make(chan struct{}),
	}
	reg.OnKick(s.notifyKick)
	return s, nil
}

// Addr reports the bound socket address.
func (s *Server) Addr() *net.UDPAddr {
	a, _ := s.conn.LocalAddr().(*net.UDPAddr)
	return a
}

// Start launches the receive loop.
func (s *Server) Start() {
	s.running.Store(true)
	go s.run()
}

// Shutdown stops the receive loop, then the registry, the world, and the
// relay, in that order. The loopback datagram unblocks the pending read
// so the loop exits without waiting out its deadline. Safe to call twice.
func (s *Server) Shutdown() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	slog.Info("server closing")
	if la := s.Addr(); la != nil {
		wake := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: la.Port}
		if _, err := s.conn.WriteToUDP([]byte(`{"request":"confirm"}`), wake); err != nil {
			slog.Warn("shutdown wake write failed", "error", err)
		}
	}
	<-s.done
	s.registry.Stop()
	s.world.Stop()
	s.relay.Stop()
	if err := s.conn.Close(); err != nil {
		slog.Warn("socket close failed", "error", err)
	}
	slog.Info("server closed")
}

func (s *Server) run() {
	defer close(s.done)
	slog.Info("dispatcher listening", "addr", s.conn.LocalAddr())
	buf := make([]byte, protocol.MaxPayload)
	for s.running.Load() {
		if err := s.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			slog.Error("set read deadline failed", "error", err)
			return
		}
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("socket read failed", "error", err)
			continue
		}
		if !s.running.Load() {
			return
		}
		if n == 0 {
			continue
		}
		metrics.DatagramsReceived.Inc()
		s.dispatch(buf[:n], addr)
	}
}

// ProcessDatagram feeds a payload that arrived over a bridge transport
// through the same decode path as a UDP read. addr is the peer's
// synthetic address; replies route back through the bridge hub.
func (s *Server) ProcessDatagram(data []byte, addr *net.UDPAddr) {
	metrics.DatagramsReceived.Inc()
	s.dispatch(data, addr)
}

// dispatch decodes one datagram, runs the session liveness piggyback, and
// routes by request kind. The bool mirrors handler success and is only
// observed by tests.
func (s *Server) dispatch(data []byte, addr *net.UDPAddr) bool {
	ctx := context.Background()
	req, err := protocol.ParseRequest(data)
	if err != nil {
		slog.Warn("malformed datagram", "addr", addr, "error", err)
		s.sendError(addr, protocol.ErrMalformedData, "Supplied data was invalid.")
		return false
	}
	if req.SessionID != nil && !s.registry.TouchBySession(*req.SessionID) {
		s.relay.Send(addr, protocol.Kicked("You were not connected to the server."), relay.DefaultRetries)
		return false
	}
	switch req.Request {
	case protocol.KindObtainPublic:
		return s.handleObtainPublic(req, addr)
	case protocol.KindRegister:
		return s.handleRegister(ctx, req, addr)
	case protocol.KindInitSession:
		return s.handleInitSession(ctx, req, addr)
	case protocol.KindEndSession:
		return s.handleEndSession(req, addr)
	case protocol.KindConfirm:
		return s.handleConfirm(req, addr)
	case protocol.KindPing:
		return s.handlePing(req, addr)
	case protocol.KindMessage:
		return s.handleMessage(ctx, req, addr)
	case protocol.KindMove:
		return s.handleMove(req, addr)
	case protocol.KindEndMove:
		return s.handleEndMove(req, addr)
	case protocol.KindUpdate:
		return s.handleUpdate(req, addr)
	default:
		s.sendError(addr, protocol.ErrInvalidRequest, req.Request+" is not a valid request type.")
		return false
	}
}

func (s *Server) sendError(addr *net.UDPAddr, code, message string) {
	metrics.RequestErrors.WithLabelValues(code).Inc()
	s.relay.Send(addr, protocol.Error(code, message), relay.DefaultRetries)
}

// notifyKick is the registry's upcall. It runs before the client leaves
// the indexes, so the payload still has an address to go to.
func (s *Server) notifyKick(addr *net.UDPAddr, message string) {
	if addr == nil {
		return
	}
	s.relay.Send(addr, protocol.Kicked(message), relay.DefaultRetries)
}

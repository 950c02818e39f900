package bridge

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"github.com/mgrant26/clubcthulu/internal/protocol"
)

const certValidity = 14 * 24 * time.Hour

// WTServer accepts WebTransport sessions and speaks the datagram protocol
// as newline-delimited JSON records over the session's first stream.
type WTServer struct {
	addr     string
	hub      *Hub
	injector Injector
	tlsConf  *tls.Config
	wt       *webtransport.Server
}

// NewWTServer builds a listener on addr with a fresh self-signed
// certificate. The fingerprint is logged so clients can pin it.
func NewWTServer(addr, hostname string, hub *Hub, injector Injector) (*WTServer, error) {
	tlsConf, fingerprint, err := generateTLSConfig(certValidity, hostname)
	if err != nil {
		return nil, err
	}
	slog.Info("webtransport certificate generated", "sha256", fingerprint)
	return &WTServer{addr: addr, hub: hub, injector: injector, tlsConf: tlsConf}, nil
}

// Run starts the HTTP/3 listener and blocks until ctx is canceled or the
// listener fails.
func (s *WTServer) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.wt = &webtransport.Server{
		H3: &http3.Server{
			Addr:      s.addr,
			TLSConfig: s.tlsConf,
			Handler:   mux,
		},
		CheckOrigin: func(_ *http.Request) bool { return true },
	}
	webtransport.ConfigureHTTP3Server(s.wt.H3)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.wt.Upgrade(w, r)
		if err != nil {
			slog.Warn("webtransport upgrade failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.serveSession(ctx, sess, r.RemoteAddr)
	})

	slog.Info("webtransport bridge listening", "addr", s.addr)
	go func() {
		<-ctx.Done()
		s.wt.Close()
	}()

	err := s.wt.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// serveSession pumps one session's stream into the dispatcher. The peer's
// QUIC remote becomes its synthetic address, same as the WebSocket path.
func (s *WTServer) serveSession(ctx context.Context, sess *webtransport.Session, remote string) {
	defer sess.CloseWithError(0, "bye")

	stream, err := sess.AcceptStream(ctx)
	if err != nil {
		return
	}
	addr := synthAddr(remote)
	if addr == nil {
		return
	}
	key := addr.String()
	s.hub.Register(key, &wtPeer{stream: stream})
	defer s.hub.Unregister(key)

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, protocol.MaxPayload+1), protocol.MaxPayload+1)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer, so hand the dispatcher a copy.
		data := make([]byte, len(line))
		copy(data, line)
		s.injector.ProcessDatagram(data, addr)
	}
}

// wtPeer writes newline-delimited records onto the session stream.
type wtPeer struct {
	mu     sync.Mutex
	stream *webtransport.Stream
}

func (p *wtPeer) WritePayload(payload []byte) error {
	data := make([]byte, 0, len(payload)+1)
	data = append(data, payload...)
	data = append(data, '\n')
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.stream.Write(data)
	return err
}

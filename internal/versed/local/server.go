// Package local implements the LAN transport: a single bidirectional
// authenticated stream per controller/host pair, carrying newline-
// delimited protocol records over TCP.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	v1alpha1 "github.com/versewall/versewall/api/types/v1alpha1"
	"github.com/versewall/versewall/internal/protocol"
	"github.com/versewall/versewall/internal/versed/ratelimit"
)

// Handler is the host-side consumer of an authenticated connection. All
// commands from every connection funnel into ApplyCommand, the host's
// single command-application pipeline.
type Handler interface {
	// ApplyCommand feeds one command into the application pipeline
	ApplyCommand(cmd *v1alpha1.ClientCommand)

	// Snapshot returns the current host state for STATE_SYNC pushes
	Snapshot() *v1alpha1.HostState

	// ClientConnected reports a newly authenticated connection
	ClientConnected()

	// ClientDisconnected reports a closed authenticated connection
	ClientDisconnected()
}

// Config holds the listener settings and the host's own identity, which
// the handshake is checked against.
type Config struct {
	DisplayID    string
	TenantID     string
	Host         string
	Port         int
	WriteTimeout time.Duration
}

// Server accepts controller connections on the LAN
type Server struct {
	cfg     Config
	handler Handler
	limiter ratelimit.Service
	logger  *slog.Logger

	mu       sync.Mutex
	conns    map[*conn]struct{}
	listener net.Listener
	stopped  bool

	wg sync.WaitGroup
}

// NewServer creates a local transport server. Start must be called
// before it accepts connections.
func NewServer(cfg Config, handler Handler, limiter ratelimit.Service, logger *slog.Logger) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		limiter: limiter,
		logger:  logger,
		conns:   make(map[*conn]struct{}),
	}
}

// Start begins listening and accepting connections
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("local transport listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		c := &conn{
			server: s,
			raw:    netConn,
			logger: s.logger.With("remoteAddr", netConn.RemoteAddr().String()),
			send:   make(chan []byte, sendQueueSize),
			done:   make(chan struct{}),
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			netConn.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			c.writePump()
		}()
		go func() {
			defer s.wg.Done()
			c.readLoop()
		}()
	}
}

// BroadcastState queues the given state for every authenticated
// connection. Each socket drains its own queue, so one stalled peer
// cannot hold up delivery to the others.
func (s *Server) BroadcastState(state *v1alpha1.HostState) {
	msg := &v1alpha1.ProtocolMessage{
		Type:      v1alpha1.ProtocolMessageStateSync,
		State:     state,
		Timestamp: time.Now(),
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		s.logger.Error("error encoding state sync", "error", err)
		return
	}

	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if !c.isAuthenticated() {
			continue
		}
		if err := c.enqueue(data); err != nil {
			c.logger.Error("broadcast queue error", "error", err)
		}
	}
}

// ClientCount returns the number of authenticated connections
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for c := range s.conns {
		if c.isAuthenticated() {
			count++
		}
	}
	return count
}

// Stop force-closes all connections and the listener. Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	listener := s.listener
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()

	s.logger.Info("local transport stopped")
}

func (s *Server) removeConn(c *conn) {
	s.mu.Lock()
	_, ok := s.conns[c]
	delete(s.conns, c)
	s.mu.Unlock()

	if ok && c.isAuthenticated() {
		s.handler.ClientDisconnected()
	}
}

func (s *Server) allowAuthAttempt(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	err = s.limiter.Allow(context.Background(), ratelimit.LimitKey{
		Type:     ratelimit.TypeLocalAuth,
		RemoteIP: host,
	})
	return err == nil
}

// Package gateway emulates the GlobalCache iTach IR bridge: a TCP line
// protocol on port 4998 and a multicast discovery beacon.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"irgate/pkg/device"
	"irgate/pkg/hw"
	"irgate/pkg/irsend"
	"irgate/pkg/protocol"
)

// Sender is the send side of the IR core.
type Sender interface {
	Send(req irsend.Request) irsend.Outcome
	Stop()
}

// Learner is the learning side of the IR core.
type Learner interface {
	Start()
	Stop()
}

// Config configures a Server.
type Config struct {
	Addr       string        // Listen address (default ":4998").
	MaxClients int           // Concurrent connections (default 8).
	MaxLine    int           // Longest request line in bytes (default 1024).
	KeepAlive  time.Duration // TCP keepalive idle and interval (default 5s).
	Available  hw.Outputs    // Emitter lines present (default all).
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Addr == "" {
		out.Addr = fmt.Sprintf(":%d", protocol.DefaultPort)
	}
	if out.MaxClients == 0 {
		out.MaxClients = protocol.MaxClients
	}
	if out.MaxLine == 0 {
		out.MaxLine = protocol.MaxLineLength
	}
	if out.KeepAlive == 0 {
		out.KeepAlive = 5 * time.Second
	}
	if out.Available == 0 {
		out.Available = hw.AllOutputs
	}
	return out
}

// Server accepts iTach connections.
type Server struct {
	cfg       Config
	sender    Sender
	learner   Learner
	indicator hw.Indicator
	id        device.Identity
	log       *slog.Logger

	slots *semaphore.Weighted
	wg    sync.WaitGroup

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
}

// New creates a gateway server.
func New(cfg Config, sender Sender, learner Learner, indicator hw.Indicator, id device.Identity, log *slog.Logger) *Server {
	resolved := cfg.withDefaults()
	if indicator == nil {
		indicator = hw.NopIndicator{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:       resolved,
		sender:    sender,
		learner:   learner,
		indicator: indicator,
		id:        id,
		log:       log,
		slots:     semaphore.NewWeighted(int64(resolved.MaxClients)),
		conns:     make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen tcp %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Addr returns the listener address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections on ln until ctx is cancelled. A connection
// slot is taken before each accept, so at most MaxClients sessions run
// and further peers wait in the listen backlog.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Info("gateway listening", "addr", ln.Addr().String(), "max_clients", s.cfg.MaxClients)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer func() {
		stop()
		s.closeAll()
		s.wg.Wait()
	}()

	for {
		if !s.slots.TryAcquire(1) {
			s.log.Warn("maximum number of clients reached, not accepting new connections")
			if err := s.slots.Acquire(ctx, 1); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			s.slots.Release(1)
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Error("accept", "error", err)
			continue
		}
		s.configure(conn)
		s.track(conn, true)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.slots.Release(1)
			defer s.track(conn, false)
			s.handleConn(conn)
		}()
	}
}

func (s *Server) configure(conn net.Conn) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	err := tc.SetKeepAliveConfig(net.KeepAliveConfig{
		Enable:   true,
		Idle:     s.cfg.KeepAlive,
		Interval: s.cfg.KeepAlive,
		Count:    3,
	})
	if err != nil {
		s.log.Debug("set keepalive", "error", err)
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// handleConn reads CR terminated request lines until the peer goes away
// or a reply cannot be written.
func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	sess := &session{conn: conn, log: s.log.With("remote", remote)}
	sess.log.Info("client connected")
	defer func() {
		_ = conn.Close()
		sess.log.Info("connection closed")
	}()

	chunk := make([]byte, s.cfg.MaxLine)
	pending := make([]byte, 0, s.cfg.MaxLine)
	for {
		n, err := conn.Read(chunk)
		pending = append(pending, chunk[:n]...)

		for {
			i := bytes.IndexByte(pending, protocol.Terminator)
			if i < 0 {
				break
			}
			line := string(pending[:i])
			pending = append(pending[:0], pending[i+1:]...)
			if !s.handleLine(sess, line) {
				return
			}
		}
		if len(pending) >= s.cfg.MaxLine {
			sess.log.Warn("request too long", "bytes", len(pending))
			if sess.write(protocol.TooLongReply(pending)) != nil {
				return
			}
			pending = pending[:0]
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				sess.log.Debug("read", "error", err)
			}
			return
		}
	}
}

// session is one client connection. Replies from the connection goroutine
// and completions from the send loop share the writer.
type session struct {
	conn net.Conn
	log  *slog.Logger

	wmu sync.Mutex
}

func (ss *session) write(reply string) error {
	ss.wmu.Lock()
	defer ss.wmu.Unlock()
	_, err := io.WriteString(ss.conn, reply)
	if err != nil {
		ss.log.Debug("write", "error", err)
	}
	return err
}

// completion answers a sendir with completeir on the originating session.
type completion struct {
	sess   *session
	module int
	port   int
}

func (c completion) WriteCompletion(id uint32, _ bool) error {
	return c.sess.write(protocol.CompleteReply(c.module, c.port, id))
}

func (c completion) String() string {
	return c.sess.conn.RemoteAddr().String()
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
	"irgate/pkg/irsend"
	"irgate/pkg/router"
)

// Sender is the send side of the IR core.
type Sender interface {
	Send(req irsend.Request) irsend.Outcome
	Stop()
	Busy() bool
}

// Learner is the learning side of the IR core.
type Learner interface {
	Start()
	Stop()
	Active() bool
}

// Config configures a Server.
type Config struct {
	Addr         string        // Listen address (default ":8080").
	Path         string        // Websocket endpoint (default "/ws").
	ReadLimit    int64         // Largest accepted message in bytes (default 8192).
	SendBuffer   int           // Outbound messages queued per session (default 16).
	WriteTimeout time.Duration // Per-message write deadline (default 5s).
	PingInterval time.Duration // Keepalive ping cadence (default 30s).
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Addr == "" {
		out.Addr = ":8080"
	}
	if out.Path == "" {
		out.Path = "/ws"
	}
	if out.ReadLimit == 0 {
		out.ReadLimit = 8192
	}
	if out.SendBuffer == 0 {
		out.SendBuffer = 16
	}
	if out.WriteTimeout == 0 {
		out.WriteTimeout = 5 * time.Second
	}
	if out.PingInterval == 0 {
		out.PingInterval = 30 * time.Second
	}
	return out
}

// Server is the websocket API.
type Server struct {
	cfg       Config
	sender    Sender
	learner   Learner
	indicator hw.Indicator
	hub       *Hub
	log       *slog.Logger
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	addr     net.Addr
}

// New creates an API server. Sessions register with hub to receive send
// results and learned codes. indicator may be nil.
func New(cfg Config, sender Sender, learner Learner, indicator hw.Indicator, hub *Hub, log *slog.Logger) *Server {
	if indicator == nil {
		indicator = hw.NopIndicator{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:       cfg.withDefaults(),
		sender:    sender,
		learner:   learner,
		indicator: indicator,
		hub:       hub,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[*session]struct{}),
	}
}

// Handler returns the HTTP handler serving the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	return mux
}

// ListenAndServe serves the API until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("api listen %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("api listening", "addr", ln.Addr().String(), "path", s.cfg.Path)

	select {
	case err := <-errCh:
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	// Hijacked websocket connections are not closed by Shutdown.
	s.closeAll()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once ListenAndServe is running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		sess.close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}
	sess := newSession(uuid.NewString(), conn, s.cfg, s.log)
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	s.hub.Register(sess.id, sess)
	s.log.Debug("api session opened", "session", sess.id, "remote", r.RemoteAddr)

	defer func() {
		s.hub.Unregister(sess.id)
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
		sess.close()
		s.log.Debug("api session closed", "session", sess.id)
	}()

	go sess.writeLoop()
	s.readLoop(sess)
}

func (s *Server) readLoop(sess *session) {
	conn := sess.conn
	conn.SetReadLimit(s.cfg.ReadLimit)
	pongWait := 2 * s.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("api read", "session", sess.id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			sess.reply(Reply{Type: TypeDock, Code: CodeBadRequest, Error: "invalid json"})
			continue
		}
		if rep, ok := s.handle(sess, &req); ok {
			sess.reply(rep)
		}
	}
}

// handle executes one command. It reports false when the reply arrives
// later through the hub.
func (s *Server) handle(sess *session, req *Request) (Reply, bool) {
	if req.Type != TypeDock {
		rep := replyTo(req, CodeBadRequest)
		rep.Error = "invalid message type"
		return rep, true
	}
	if req.Command == "" && req.Msg == "ping" {
		return Reply{Type: TypeDock, Msg: "pong"}, true
	}

	switch req.Command {
	case CmdIRSend:
		return s.irSend(sess, req)
	case CmdIRStop:
		s.sender.Stop()
		return replyTo(req, CodeOK), true
	case CmdIRReceiveOn:
		s.learner.Start()
		return replyTo(req, CodeOK), true
	case CmdIRReceiveOff:
		s.learner.Stop()
		return replyTo(req, CodeOK), true
	case CmdGetStatus:
		learning, sending := s.learner.Active(), s.sender.Busy()
		rep := replyTo(req, CodeOK)
		rep.IRLearning, rep.IRSending = &learning, &sending
		return rep, true
	case CmdIdentify:
		s.indicator.SetState(hw.StateIdentify)
		return replyTo(req, CodeOK), true
	default:
		rep := replyTo(req, CodeBadRequest)
		rep.Error = "unknown command"
		return rep, true
	}
}

func (s *Server) irSend(sess *session, req *Request) (Reply, bool) {
	if req.Code == "" || req.Format == "" {
		return replyTo(req, CodeBadRequest), true
	}
	format, err := ircode.ParseFormat(req.Format)
	if err != nil {
		return replyTo(req, CodeBadRequest), true
	}
	var id uint32
	if req.ID != nil {
		id = *req.ID
	}
	o := s.sender.Send(irsend.Request{
		Requester:     router.SessionRequester(sess.id),
		CorrelationID: id,
		Code:          req.Code,
		Format:        format,
		Repeat:        req.Repeat,
		Outputs:       req.Outputs(),
	})
	if o == irsend.Queued {
		return Reply{}, false
	}
	return replyTo(req, int(o)), true
}

package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"irgate/pkg/router"
)

// session is one websocket client. Only writeLoop writes to conn.
type session struct {
	id   string
	conn *websocket.Conn
	cfg  Config
	log  *slog.Logger

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, cfg Config, log *slog.Logger) *session {
	return &session{
		id:   id,
		conn: conn,
		cfg:  cfg,
		log:  log,
		out:  make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// Deliver queues a router event without blocking the hub.
func (s *session) Deliver(ev router.Event) {
	data, err := json.Marshal(EventReply(ev))
	if err != nil {
		s.log.Error("encode event", "error", err)
		return
	}
	select {
	case s.out <- data:
	case <-s.done:
	default:
		s.log.Warn("api session backlog full, event dropped", "session", s.id, "kind", ev.Kind.String())
	}
}

// reply queues a command reply. It waits for room since it runs on the
// session's own read goroutine.
func (s *session) reply(r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		s.log.Error("encode reply", "error", err)
		return
	}
	select {
	case s.out <- data:
	case <-s.done:
	}
}

func (s *session) writeLoop() {
	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("api write", "session", s.id, "error", err)
				s.close()
				return
			}
		case <-ping.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

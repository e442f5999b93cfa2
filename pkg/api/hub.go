package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"irgate/pkg/router"
)

// Endpoint receives events addressed to it or broadcast to everyone.
// Deliver is called from the hub goroutine and must not block.
type Endpoint interface {
	Deliver(ev router.Event)
}

// HubConfig configures a Hub.
type HubConfig struct {
	Interval time.Duration // Router poll cadence (default 20ms).
}

func (c *HubConfig) withDefaults() HubConfig {
	out := *c
	if out.Interval == 0 {
		out.Interval = 20 * time.Millisecond
	}
	return out
}

// Hub drains the response router and hands each event to its recipient:
// one registered endpoint for session events, all of them for broadcasts.
type Hub struct {
	cfg    HubConfig
	events *router.Router
	log    *slog.Logger

	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewHub creates a hub reading from events.
func NewHub(cfg HubConfig, events *router.Router, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		cfg:       cfg.withDefaults(),
		events:    events,
		log:       log,
		endpoints: make(map[string]Endpoint),
	}
}

// Register adds an endpoint under id, replacing any previous one.
func (h *Hub) Register(id string, ep Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endpoints[id] = ep
}

// Unregister removes the endpoint registered under id.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.endpoints, id)
}

// Len returns the number of registered endpoints.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

// Run polls the router until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.drain()
		}
	}
}

func (h *Hub) drain() {
	for {
		ev, ok := h.events.Poll()
		if !ok {
			return
		}
		h.dispatch(ev)
	}
}

func (h *Hub) dispatch(ev router.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch ev.Recipient.Kind {
	case router.Broadcast:
		for _, ep := range h.endpoints {
			ep.Deliver(ev)
		}
	case router.Session:
		ep, ok := h.endpoints[ev.Recipient.SessionID]
		if !ok {
			h.log.Debug("event recipient gone",
				"session", ev.Recipient.SessionID, "kind", ev.Kind.String(), "correlation_id", ev.CorrelationID)
			return
		}
		ep.Deliver(ev)
	case router.Gateway:
		h.log.Warn("gateway event in router", "correlation_id", ev.CorrelationID)
	}
}

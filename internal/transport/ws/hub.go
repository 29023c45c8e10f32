package ws

import (
	"log/slog"
	"sync"

	"github.com/cwrk-planet/whiteboard-service/internal/session"
	"github.com/cwrk-planet/whiteboard-service/pkg/logger"
)

// Hub maps participant ids to their live connections and fans outbound
// events out to them.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*client
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		conns: make(map[string]*client),
		log:   logger.Component(log, "ws.hub"),
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.id]; ok && cur == c {
		delete(h.conns, c.id)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

var _ session.Sink = (*Hub)(nil)

// Deliver queues every event for its recipients, in order. Each event is
// encoded once. A recipient whose queue is full is disconnected. The
// coordinator calls it with its locks held, so it never blocks.
func (h *Hub) Deliver(out []session.Outbound) {
	for _, o := range out {
		msg, err := Encode(o.Event)
		if err != nil {
			h.log.Error("encode event failed", slog.String("event", o.Event.Name()), logger.Err(err))
			continue
		}

		h.mu.RLock()
		for _, id := range o.To {
			c, ok := h.conns[id]
			if !ok {
				continue
			}
			if !c.enqueue(msg) {
				h.log.Warn("slow consumer disconnected", logger.Participant(id))
				c.close()
			}
		}
		h.mu.RUnlock()
	}
}

// CloseAll drops every connection; their read loops then run the usual
// disconnect flow.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.close()
	}
}

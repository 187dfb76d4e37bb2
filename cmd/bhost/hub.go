package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Comcast/bearings/core"
)

// Hub fans sink output out to connected WebSocket clients and reads
// events back in.  It is the daemon's RenderSink, NotifySink, and
// NavigateSink.
//
// The last render per slot is remembered, so a client that connects
// late still gets the current picture.
type Hub struct {
	sync.Mutex

	logger  *slog.Logger
	metrics *Metrics

	// OnEvent receives events sent by clients.
	OnEvent func(ctx context.Context, instanceID, eventKey string, payload interface{}) error

	upgrader websocket.Upgrader
	conns    map[string]chan interface{}
	slots    map[string]map[string]interface{}
	serial   int
}

func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		logger:  logger,
		metrics: metrics,
		conns:   make(map[string]chan interface{}),
		slots:   make(map[string]map[string]interface{}),
	}
}

var (
	_ core.RenderSink   = (*Hub)(nil)
	_ core.NotifySink   = (*Hub)(nil)
	_ core.NavigateSink = (*Hub)(nil)
)

// Render remembers the slot's props and broadcasts the update.  Nil
// props clear the slot.
func (h *Hub) Render(ctx context.Context, slot, component string, props map[string]interface{}) error {
	msg := map[string]interface{}{
		"type":      "render",
		"slot":      slot,
		"component": component,
		"props":     props,
	}

	h.Lock()
	if props == nil {
		delete(h.slots, slot)
	} else {
		h.slots[slot] = msg
	}
	h.send(msg)
	h.Unlock()

	return nil
}

func (h *Hub) Notify(ctx context.Context, level, message string, action interface{}) error {
	msg := map[string]interface{}{
		"type":    "notify",
		"level":   level,
		"message": message,
	}
	if action != nil {
		msg["action"] = action
	}

	h.Lock()
	h.send(msg)
	h.Unlock()

	return nil
}

func (h *Hub) Navigate(ctx context.Context, path string, params map[string]interface{}) error {
	msg := map[string]interface{}{
		"type": "navigate",
		"path": path,
	}
	if params != nil {
		msg["params"] = params
	}

	h.Lock()
	h.send(msg)
	h.Unlock()

	return nil
}

// send forwards a message to every connected client.  Callers hold
// the lock.  A client whose queue is full misses the message.
func (h *Hub) send(msg interface{}) {
	for id, c := range h.conns {
		select {
		case c <- msg:
		default:
			h.logger.Warn("client queue full", "client", id)
		}
	}
}

// clientEvent is what clients send: an event for an instance.
type clientEvent struct {
	ID      string      `json:"id"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// ServeHTTP upgrades the connection, replays remembered render
// state, then forwards broadcasts out and client events in.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "error", err)
		return
	}
	defer c.Close()

	in := make(chan interface{}, 64)

	h.Lock()
	h.serial++
	id := fmt.Sprintf("%s/%d", r.RemoteAddr, h.serial)
	h.conns[id] = in
	// Replay slots in name order so reconnecting clients see a
	// stable sequence.  Queued, not written: the writer below drains.
	slots := make([]string, 0, len(h.slots))
	for slot := range h.slots {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	for _, slot := range slots {
		select {
		case in <- h.slots[slot]:
		default:
			h.logger.Warn("replay dropped", "client", id, "slot", slot)
		}
	}
	h.Unlock()

	h.metrics.Clients.Inc()
	h.logger.Info("client connected", "client", id)

	defer func() {
		h.Lock()
		delete(h.conns, id)
		h.Unlock()
		h.metrics.Clients.Dec()
		h.logger.Info("client disconnected", "client", id)
	}()

	ctl := make(chan bool)
	defer close(ctl)

	go func() {
	LOOP:
		for {
			select {
			case <-ctl:
				break LOOP
			case <-ctx.Done():
				break LOOP
			case x := <-in:
				js, err := json.Marshal(&x)
				if err != nil {
					h.logger.Warn("marshal failed", "error", err)
					continue
				}
				if err = c.WriteMessage(websocket.TextMessage, js); err != nil {
					h.logger.Warn("write failed", "client", id, "error", err)
				}
			}
		}
	}()

	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			break
		}

		var ev clientEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			msg := fmt.Sprintf("can't parse: %v", err)
			if err = c.WriteMessage(mt, []byte(msg)); err != nil {
				h.logger.Warn("write failed", "client", id, "error", err)
			}
			continue
		}
		if h.OnEvent == nil {
			continue
		}
		if err := h.OnEvent(ctx, ev.ID, ev.Event, ev.Payload); err != nil {
			h.logger.Warn("client event failed", "client", id, "event", ev.Event, "error", err)
		}
	}
}

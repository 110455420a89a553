// Package viz streams visualization frames to browsers and serves the
// ownership JSON used by dashboards.
package viz

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/logging"
)

const watcherBuffer = 8

// Message is the envelope written on the websocket.
type Message struct {
	Type string     `json:"type"`
	Data core.Frame `json:"data"`
}

// Hub fans frames out to websocket watchers. It implements
// controller.FrameSink and is safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	last     []byte
	watchers map[uint64]chan []byte
	nextID   uint64
	log      logging.Logger
}

// NewHub returns an empty hub.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{
		watchers: make(map[uint64]chan []byte),
		log:      log,
	}
}

// PublishFrame encodes frame once and queues it for every watcher. A watcher
// whose buffer is full misses the frame.
func (h *Hub) PublishFrame(frame core.Frame) {
	payload, err := json.Marshal(Message{Type: "frame", Data: frame})
	if err != nil {
		h.log.Error(context.Background(), "encode frame failed", logging.Err(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = payload
	for id, ch := range h.watchers {
		select {
		case ch <- payload:
		default:
			h.log.Debug(context.Background(), "watcher lagging, frame dropped", logging.Int("watcher", int(id)))
		}
	}
}

// Latest returns the last encoded frame, or nil.
func (h *Hub) Latest() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Watchers returns the number of connected watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// watch registers a watcher. The last frame, if any, is queued first.
func (h *Hub) watch() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan []byte, watcherBuffer)
	if h.last != nil {
		ch <- h.last
	}
	h.watchers[id] = ch
	return id, ch
}

func (h *Hub) unwatch(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.watchers, id)
}

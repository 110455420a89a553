package radio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/territory-controller/model"
	"github.com/signalsfoundry/territory-controller/timectrl"
)

// ErrUnknownStation indicates a packet addressed to a station outside the arena.
var ErrUnknownStation = errors.New("unknown station")

// Packet is one received radio packet and the match time it arrived.
type Packet struct {
	Data       []byte
	ReceivedAt time.Duration
}

// Transport is what the controllers need from the radio: drain a station's
// receiver, and transmit on a station's emitter.
type Transport interface {
	Receive(station model.StationCode) []Packet
	Send(station model.StationCode, payload []byte) error
}

// PacketTracer observes every packet delivered to a station.
type PacketTracer interface {
	TracePacket(station model.StationCode, p Packet) error
}

// Hub is an in-memory Transport. Robots (simulated, UDP-bridged or tests)
// deliver into per-station FIFO queues; broadcasts fan out to listeners.
// Safe for concurrent use.
type Hub struct {
	mu        sync.Mutex
	clock     timectrl.SimClock
	queues    map[model.StationCode][]Packet
	listeners map[int]func(model.StationCode, []byte)
	nextID    int
	tracer    PacketTracer
}

// HubOption customises Hub construction.
type HubOption func(*Hub)

// WithTracer records every delivered packet.
func WithTracer(t PacketTracer) HubOption {
	return func(h *Hub) {
		h.tracer = t
	}
}

// NewHub creates a hub with an empty queue per station. clock stamps packets
// delivered without an explicit time.
func NewHub(clock timectrl.SimClock, stations []model.StationCode, opts ...HubOption) *Hub {
	h := &Hub{
		clock:     clock,
		queues:    make(map[model.StationCode][]Packet, len(stations)),
		listeners: make(map[int]func(model.StationCode, []byte)),
	}
	for _, s := range stations {
		h.queues[s] = nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Deliver queues data at station, stamped with the current match time.
func (h *Hub) Deliver(station model.StationCode, data []byte) error {
	var now time.Duration
	if h.clock != nil {
		now = h.clock.Elapsed()
	}
	return h.DeliverAt(station, data, now)
}

// DeliverAt queues data at station with an explicit receive time.
func (h *Hub) DeliverAt(station model.StationCode, data []byte, at time.Duration) error {
	p := Packet{Data: append([]byte(nil), data...), ReceivedAt: at}

	h.mu.Lock()
	q, ok := h.queues[station]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownStation, station)
	}
	h.queues[station] = append(q, p)
	tracer := h.tracer
	h.mu.Unlock()

	if tracer != nil {
		return tracer.TracePacket(station, p)
	}
	return nil
}

// Receive drains and returns every packet queued at station.
func (h *Hub) Receive(station model.StationCode) []Packet {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := h.queues[station]
	if len(q) == 0 {
		return nil
	}
	h.queues[station] = nil
	return q
}

// Pending returns the number of undrained packets at station.
func (h *Hub) Pending(station model.StationCode) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queues[station])
}

// Send hands payload to every listener as station's emitter output.
func (h *Hub) Send(station model.StationCode, payload []byte) error {
	h.mu.Lock()
	if _, ok := h.queues[station]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownStation, station)
	}
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(model.StationCode, []byte), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, h.listeners[id])
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(station, append([]byte(nil), payload...))
	}
	return nil
}

// Listen registers fn for every broadcast. The returned function removes it.
func (h *Hub) Listen(fn func(station model.StationCode, payload []byte)) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

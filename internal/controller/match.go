// Package controller runs the match: it drains station radio queues every
// tick, adjudicates claims against the claim log, persists match data,
// pushes visualization frames and re-broadcasts ownership.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/observability"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/kb"
	"github.com/signalsfoundry/territory-controller/model"
)

// ErrNilArena is returned when a controller is built without an arena.
var ErrNilArena = errors.New("arena is nil")

// match is the receive/recompute/persist/broadcast skeleton shared by the
// station-claiming controllers. It is owned by the runner goroutine.
type match struct {
	arena     *core.Arena
	graph     *core.TerritoryGraph
	stations  []model.StationCode
	claimants map[model.Claimant]struct{}
	ids       []model.Claimant
	transport radio.Transport
	claims    *kb.ClaimLog
	palette   core.Palette

	log       logging.Logger
	metrics   MetricsRecorder
	frames    FrameSink
	malformed *rate.Limiter

	broadcastEvery int
	ticks          int

	attached core.Attached
	frame    core.Frame
	entries  []model.ClaimLogEntry
	framed   bool

	snapshot atomic.Pointer[Snapshot]
}

func newMatch(arena *core.Arena, transport radio.Transport, lockThreshold int, s settings) (*match, error) {
	if arena == nil {
		return nil, ErrNilArena
	}
	if transport == nil {
		return nil, errors.New("transport is nil")
	}
	graph, err := arena.Graph()
	if err != nil {
		return nil, fmt.Errorf("build territory graph: %w", err)
	}

	m := &match{
		arena:          arena,
		graph:          graph,
		stations:       graph.Stations(),
		claimants:      claimantSet(arena.Claimants),
		ids:            arena.ClaimantIDs(),
		transport:      transport,
		palette:        core.PaletteFor(arena.Claimants),
		log:            s.log,
		metrics:        s.metrics,
		frames:         s.frames,
		malformed:      rate.NewLimiter(s.limit, s.burst),
		broadcastEvery: arena.Rules.BroadcastEveryTicks(),
	}
	if s.recording != nil && *s.recording && s.recorder == nil {
		return nil, kb.ErrNoRecorder
	}
	m.claims = kb.NewClaimLog(m.stations, s.claimLogOptions(lockThreshold)...)
	if s.onEvent != nil {
		m.claims.Subscribe(s.onEvent)
	}
	m.refresh(0)
	m.publish(0)
	return m, nil
}

func (m *match) isClaimant(c model.Claimant) bool {
	_, ok := m.claimants[c]
	return ok
}

// receive drains every station queue in sorted order. Malformed packets are
// counted, logged through the rate limiter and dropped.
func (m *match) receive(ctx context.Context, handle func(station model.StationCode, claim radio.ParsedClaim, p radio.Packet)) {
	for _, station := range m.stations {
		for _, p := range m.transport.Receive(station) {
			switch res := radio.ParseClaim(p.Data, m.isClaimant).(type) {
			case radio.Malformed:
				m.metrics.ObservePacket(observability.PacketMalformed)
				if m.malformed.Allow() {
					m.log.Warn(ctx, "discarding malformed packet",
						logging.Station(station),
						logging.String("reason", res.Reason),
						logging.Int("size", res.Size),
						logging.MatchTime(p.ReceivedAt),
					)
				}
			case radio.ParsedClaim:
				if res.Conclude {
					m.metrics.ObservePacket(observability.PacketConclude)
				} else {
					m.metrics.ObservePacket(observability.PacketBegin)
				}
				handle(station, res, p)
			}
		}
	}
}

// refresh recomputes attached territories and the visualization frame after
// ownership changed, and hands the frame to the sink.
func (m *match) refresh(now time.Duration) {
	if m.framed && !m.claims.IsDirty() {
		return
	}
	m.framed = true
	m.attached = m.graph.AttachedTerritories(m.claims, m.ids)
	m.frame = m.graph.ColourFrame(m.claims, m.claims, m.palette)
	m.frame.MatchTime = now.Seconds()
	m.entries = m.claims.Entries()

	locked := 0
	for _, s := range m.stations {
		if m.claims.IsLocked(s) {
			locked++
		}
	}
	for _, c := range m.ids {
		count := 0
		for _, s := range m.stations {
			if m.claims.Claimant(s) == c {
				count++
			}
		}
		m.metrics.SetStationsOwned(c.String(), count)
	}
	m.metrics.SetStationsLocked(locked)
	m.metrics.SetClaimLogEntries(len(m.entries))

	if m.frames != nil {
		m.frames.PublishFrame(m.frame)
	}
}

func (m *match) persist(ctx context.Context) error {
	if err := m.claims.RecordCaptures(ctx); err != nil {
		return fmt.Errorf("record captures: %w", err)
	}
	return nil
}

// broadcast sends (station, owner) on every station once every
// broadcastEvery ticks, starting with the first tick.
func (m *match) broadcast(ctx context.Context) {
	tick := m.ticks
	m.ticks++
	if tick%m.broadcastEvery != 0 {
		return
	}
	sent := 0
	for _, station := range m.stations {
		payload, err := radio.EncodeBroadcast(station, m.claims.Claimant(station))
		if err != nil {
			m.log.Error(ctx, "encode broadcast failed", logging.Station(station), logging.Err(err))
			continue
		}
		if err := m.transport.Send(station, payload); err != nil {
			m.log.Warn(ctx, "broadcast failed", logging.Station(station), logging.Err(err))
			continue
		}
		sent++
	}
	m.metrics.AddBroadcasts(sent)
}

func (m *match) publish(now time.Duration) {
	owners := m.claims.Owners()
	counts := make(map[model.StationCode]int, len(m.stations))
	for _, s := range m.stations {
		if n := m.claims.LockCount(s); n > 0 {
			counts[s] = n
		}
	}
	attached := make(map[model.Claimant][]model.StationCode, len(m.attached))
	for c, set := range m.attached {
		attached[c] = set.Sorted()
	}
	m.snapshot.Store(&Snapshot{
		Arena:         m.arena.Name,
		MatchTime:     now,
		Claimants:     m.arena.Claimants,
		Stations:      m.stations,
		Owners:        owners,
		LockCounts:    counts,
		LockThreshold: m.claims.LockThreshold(),
		Attached:      attached,
		Entries:       m.entries,
		Frame:         m.frame,
	})
}

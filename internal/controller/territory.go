package controller

import (
	"context"
	"time"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/internal/observability"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/kb"
	"github.com/signalsfoundry/territory-controller/model"
)

type claimKey struct {
	station  model.StationCode
	claimant model.Claimant
}

// TerritoryController adjudicates two-phase station claims. A claimant
// captures a station by sending a begin packet, holding for the claim window
// and sending a conclude packet, provided the station borders its connected
// territory and is not locked.
type TerritoryController struct {
	*match
	rules       core.Rules
	claimStarts map[claimKey]time.Duration
}

// NewTerritoryController builds a controller over arena's stations, reading
// and broadcasting through transport.
func NewTerritoryController(arena *core.Arena, transport radio.Transport, opts ...Option) (*TerritoryController, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	var threshold int
	if arena != nil {
		threshold = arena.Rules.LockedOutAfterClaim
	}
	m, err := newMatch(arena, transport, threshold, s)
	if err != nil {
		return nil, err
	}
	return &TerritoryController{
		match:       m,
		rules:       arena.Rules,
		claimStarts: make(map[claimKey]time.Duration),
	}, nil
}

// Tick runs one controller cycle at match time now. A persistence failure is
// returned and must stop the match.
func (c *TerritoryController) Tick(ctx context.Context, now time.Duration) error {
	start := time.Now()
	defer func() { c.metrics.ObserveTick(time.Since(start)) }()

	c.receive(ctx, func(station model.StationCode, claim radio.ParsedClaim, p radio.Packet) {
		key := claimKey{station: station, claimant: claim.Claimant}
		if !claim.Conclude {
			c.claimStarts[key] = p.ReceivedAt
			return
		}
		outcome := c.conclude(key, p.ReceivedAt)
		c.metrics.ObserveClaim(outcome)
		if outcome != observability.OutcomeCaptured {
			c.log.Debug(ctx, "claim rejected",
				logging.Station(station),
				logging.Claimant(claim.Claimant),
				logging.String("outcome", outcome),
				logging.MatchTime(p.ReceivedAt),
			)
		}
	})

	c.refresh(now)
	if err := c.persist(ctx); err != nil {
		return err
	}
	c.broadcast(ctx)
	c.publish(now)
	return nil
}

// conclude resolves a conclude packet received at t. The matching begin
// entry is consumed whatever the outcome.
func (c *TerritoryController) conclude(key claimKey, t time.Duration) string {
	started, ok := c.claimStarts[key]
	if !ok {
		return observability.OutcomeNoBegin
	}
	delete(c.claimStarts, key)

	elapsed := t - started
	switch {
	case elapsed < c.rules.ClaimWindowMin:
		return observability.OutcomeTooEarly
	case elapsed > c.rules.ClaimWindowMax:
		return observability.OutcomeTooLate
	case c.claims.IsLocked(key.station):
		return observability.OutcomeLocked
	case !c.graph.CanCaptureStation(key.station, key.claimant, c.attached):
		return observability.OutcomeNotAdjacent
	}
	if !c.claims.LogClaim(key.station, key.claimant, t) {
		return observability.OutcomeRedundant
	}
	return observability.OutcomeCaptured
}

// Snapshot returns the view published after the last tick.
func (c *TerritoryController) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// ClaimLog exposes the underlying claim log. Only the runner goroutine may
// use it.
func (c *TerritoryController) ClaimLog() *kb.ClaimLog {
	return c.claims
}

// PendingClaims returns the number of begin packets awaiting a conclude.
func (c *TerritoryController) PendingClaims() int {
	return len(c.claimStarts)
}

package controller

import (
	"context"
	"time"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/observability"
	"github.com/signalsfoundry/territory-controller/internal/radio"
	"github.com/signalsfoundry/territory-controller/kb"
	"github.com/signalsfoundry/territory-controller/model"
)

// TowerController is the single-phase variant: any valid claim packet hands
// the station to its sender at once. There is no claim window, adjacency
// rule or lockout.
type TowerController struct {
	*match
}

// NewTowerController builds a tower controller over arena's stations.
func NewTowerController(arena *core.Arena, transport radio.Transport, opts ...Option) (*TowerController, error) {
	s := defaultSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	m, err := newMatch(arena, transport, 0, s)
	if err != nil {
		return nil, err
	}
	return &TowerController{match: m}, nil
}

// Tick runs one tower cycle at match time now.
func (c *TowerController) Tick(ctx context.Context, now time.Duration) error {
	start := time.Now()
	defer func() { c.metrics.ObserveTick(time.Since(start)) }()

	c.receive(ctx, func(station model.StationCode, claim radio.ParsedClaim, p radio.Packet) {
		if c.claims.LogClaim(station, claim.Claimant, p.ReceivedAt) {
			c.metrics.ObserveClaim(observability.OutcomeCaptured)
			return
		}
		c.metrics.ObserveClaim(observability.OutcomeRedundant)
	})

	c.refresh(now)
	if err := c.persist(ctx); err != nil {
		return err
	}
	c.broadcast(ctx)
	c.publish(now)
	return nil
}

// Snapshot returns the view published after the last tick.
func (c *TowerController) Snapshot() *Snapshot {
	return c.snapshot.Load()
}

// ClaimLog exposes the underlying claim log. Only the runner goroutine may
// use it.
func (c *TowerController) ClaimLog() *kb.ClaimLog {
	return c.claims
}

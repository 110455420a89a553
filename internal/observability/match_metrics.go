package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Claim outcomes recorded by MatchCollector.ObserveClaim.
const (
	OutcomeCaptured    = "captured"
	OutcomeRedundant   = "redundant"
	OutcomeNoBegin     = "no_begin"
	OutcomeTooEarly    = "too_early"
	OutcomeTooLate     = "too_late"
	OutcomeNotAdjacent = "not_adjacent"
	OutcomeLocked      = "locked"
)

// Packet kinds recorded by MatchCollector.ObservePacket.
const (
	PacketBegin     = "begin"
	PacketConclude  = "conclude"
	PacketMalformed = "malformed"
)

// MatchCollector exposes controller-side Prometheus metrics.
type MatchCollector struct {
	gatherer prometheus.Gatherer

	ClaimOutcomes   *prometheus.CounterVec
	Packets         *prometheus.CounterVec
	StationsOwned   *prometheus.GaugeVec
	StationsLocked  prometheus.Gauge
	ClaimLogEntries prometheus.Gauge
	TickDuration    prometheus.Histogram
	Broadcasts      prometheus.Counter
	MatchDataWrites *prometheus.CounterVec
	MatchTime       prometheus.Gauge
}

// NewMatchCollector registers match metrics against the provided registerer.
func NewMatchCollector(reg prometheus.Registerer) (*MatchCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	outcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "territory_claim_attempts_total",
		Help: "Conclude-claim packets by outcome.",
	}, []string{"outcome"}), "territory_claim_attempts_total")
	if err != nil {
		return nil, err
	}

	packets, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "territory_radio_packets_total",
		Help: "Radio packets received by stations, by kind.",
	}, []string{"kind"}), "territory_radio_packets_total")
	if err != nil {
		return nil, err
	}

	owned, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "territory_stations_owned",
		Help: "Stations currently owned, by claimant.",
	}, []string{"claimant"}), "territory_stations_owned")
	if err != nil {
		return nil, err
	}

	locked, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "territory_stations_locked",
		Help: "Stations that reached the lockout threshold.",
	}), "territory_stations_locked")
	if err != nil {
		return nil, err
	}

	entries, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "territory_claim_log_entries",
		Help: "Entries in the claim log.",
	}), "territory_claim_log_entries")
	if err != nil {
		return nil, err
	}

	tick, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "territory_tick_duration_seconds",
		Help:    "Wall-clock time spent processing one controller tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	}), "territory_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	broadcasts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "territory_broadcasts_total",
		Help: "Ownership broadcasts transmitted, one per station per broadcast round.",
	}), "territory_broadcasts_total")
	if err != nil {
		return nil, err
	}

	writes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "territory_match_data_writes_total",
		Help: "Match data persistence attempts, by result.",
	}, []string{"result"}), "territory_match_data_writes_total")
	if err != nil {
		return nil, err
	}

	matchTime, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "territory_match_time_seconds",
		Help: "Simulated match time reached by the match clock.",
	}), "territory_match_time_seconds")
	if err != nil {
		return nil, err
	}

	return &MatchCollector{
		gatherer:        gatherer,
		ClaimOutcomes:   outcomes,
		Packets:         packets,
		StationsOwned:   owned,
		StationsLocked:  locked,
		ClaimLogEntries: entries,
		TickDuration:    tick,
		Broadcasts:      broadcasts,
		MatchDataWrites: writes,
		MatchTime:       matchTime,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MatchCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MatchCollector) Handler() http.Handler {
	if c == nil {
		return handlerFor(nil)
	}
	return handlerFor(c.gatherer)
}

// ObserveClaim counts one conclude-claim outcome.
func (c *MatchCollector) ObserveClaim(outcome string) {
	if c == nil || c.ClaimOutcomes == nil {
		return
	}
	c.ClaimOutcomes.WithLabelValues(outcome).Inc()
}

// ObservePacket counts one received packet.
func (c *MatchCollector) ObservePacket(kind string) {
	if c == nil || c.Packets == nil {
		return
	}
	c.Packets.WithLabelValues(kind).Inc()
}

// SetStationsOwned updates the owned-stations gauge for one claimant.
func (c *MatchCollector) SetStationsOwned(claimant string, count int) {
	if c == nil || c.StationsOwned == nil {
		return
	}
	c.StationsOwned.WithLabelValues(claimant).Set(float64(count))
}

// SetStationsLocked updates the locked-stations gauge.
func (c *MatchCollector) SetStationsLocked(count int) {
	if c == nil || c.StationsLocked == nil {
		return
	}
	c.StationsLocked.Set(float64(count))
}

// SetClaimLogEntries updates the claim log size gauge.
func (c *MatchCollector) SetClaimLogEntries(count int) {
	if c == nil || c.ClaimLogEntries == nil {
		return
	}
	c.ClaimLogEntries.Set(float64(count))
}

// ObserveTick records a tick processing duration.
func (c *MatchCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// AddBroadcasts counts transmitted broadcasts.
func (c *MatchCollector) AddBroadcasts(n int) {
	if c == nil || c.Broadcasts == nil {
		return
	}
	c.Broadcasts.Add(float64(n))
}

// SetMatchTime records the current match time.
func (c *MatchCollector) SetMatchTime(d time.Duration) {
	if c == nil || c.MatchTime == nil {
		return
	}
	c.MatchTime.Set(d.Seconds())
}

// ObserveMatchDataWrite counts a persistence attempt.
func (c *MatchCollector) ObserveMatchDataWrite(err error) {
	if c == nil || c.MatchDataWrites == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.MatchDataWrites.WithLabelValues(result).Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

package controller

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/signalsfoundry/territory-controller/core"
	"github.com/signalsfoundry/territory-controller/internal/logging"
	"github.com/signalsfoundry/territory-controller/kb"
	"github.com/signalsfoundry/territory-controller/model"
)

// MetricsRecorder receives controller-side counters and gauges.
// *observability.MatchCollector satisfies it.
type MetricsRecorder interface {
	ObserveClaim(outcome string)
	ObservePacket(kind string)
	SetStationsOwned(claimant string, count int)
	SetStationsLocked(count int)
	SetClaimLogEntries(count int)
	ObserveTick(d time.Duration)
	AddBroadcasts(n int)
}

// FrameSink is the visualization hook. It is handed a freshly computed frame
// whenever ownership changed during a tick.
type FrameSink interface {
	PublishFrame(frame core.Frame)
}

// FrameSinkFunc adapts a function to a FrameSink.
type FrameSinkFunc func(frame core.Frame)

// PublishFrame calls f.
func (f FrameSinkFunc) PublishFrame(frame core.Frame) { f(frame) }

type noopMetrics struct{}

func (noopMetrics) ObserveClaim(string)          {}
func (noopMetrics) ObservePacket(string)         {}
func (noopMetrics) SetStationsOwned(string, int) {}
func (noopMetrics) SetStationsLocked(int)        {}
func (noopMetrics) SetClaimLogEntries(int)       {}
func (noopMetrics) ObserveTick(time.Duration)    {}
func (noopMetrics) AddBroadcasts(int)            {}

type settings struct {
	log       logging.Logger
	metrics   MetricsRecorder
	frames    FrameSink
	recorder  kb.Recorder
	recording *bool
	limit     rate.Limit
	burst     int
	onEvent   func(kb.Event)
}

func defaultSettings() settings {
	return settings{
		log:     logging.Noop(),
		metrics: noopMetrics{},
		limit:   rate.Every(time.Second),
		burst:   5,
	}
}

// Option customises controller construction.
type Option func(*settings)

// WithLogger sets the controller logger.
func WithLogger(l logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithFrameSink attaches the visualization hook.
func WithFrameSink(f FrameSink) Option {
	return func(s *settings) {
		s.frames = f
	}
}

// WithRecorder sets the claim-log persistence sink and enables recording.
func WithRecorder(r kb.Recorder) Option {
	return func(s *settings) {
		s.recorder = r
	}
}

// WithRecording overrides whether captures are persisted.
func WithRecording(enabled bool) Option {
	return func(s *settings) {
		s.recording = &enabled
	}
}

// WithMalformedLogLimit throttles malformed-packet log lines. Packets are
// still counted in metrics when their log line is dropped.
func WithMalformedLogLimit(limit rate.Limit, burst int) Option {
	return func(s *settings) {
		s.limit = limit
		s.burst = burst
	}
}

// WithClaimEvents subscribes fn to claim-log events.
func WithClaimEvents(fn func(kb.Event)) Option {
	return func(s *settings) {
		s.onEvent = fn
	}
}

func (s settings) claimLogOptions(threshold int) []kb.Option {
	opts := []kb.Option{
		kb.WithLockThreshold(threshold),
		kb.WithLogger(s.log),
	}
	if s.recorder != nil {
		opts = append(opts, kb.WithRecorder(s.recorder))
	}
	if s.recording != nil {
		opts = append(opts, kb.WithRecording(*s.recording))
	}
	return opts
}

func claimantSet(infos []model.ClaimantInfo) map[model.Claimant]struct{} {
	res := make(map[model.Claimant]struct{}, len(infos))
	for _, c := range infos {
		res[c.ID] = struct{}{}
	}
	return res
}

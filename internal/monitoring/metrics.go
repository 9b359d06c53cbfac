package monitoring

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatcherMetrics holds the Prometheus collectors for one matcher. A nil
// *MatcherMetrics is valid and records nothing.
type MatcherMetrics struct {
	frames       prometheus.Counter
	frameErrors  prometheus.Counter
	runDuration  prometheus.Histogram
	active       prometheus.Gauge
	confirmed    prometheus.Gauge
	born         prometheus.Counter
	pruned       prometheus.Counter
	diverged     prometheus.Counter
	poolOverflow prometheus.Counter
}

// NewMatcherMetrics builds the collectors with a constant "strategy" label
// and registers them on reg. A nil reg leaves them unregistered.
func NewMatcherMetrics(reg prometheus.Registerer, strategy string) (*MatcherMetrics, error) {
	labels := prometheus.Labels{"strategy": strategy}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "motrack", Subsystem: "matcher", Name: name, Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "motrack", Subsystem: "matcher", Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &MatcherMetrics{
		frames:      counter("frames_total", "Frames processed."),
		frameErrors: counter("frame_errors_total", "Frames aborted by an inference or association error."),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "motrack",
			Subsystem:   "matcher",
			Name:        "run_duration_seconds",
			Help:        "Wall time of one Run call, inference included.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		active:       gauge("active_tracks", "Trackers alive after the last frame."),
		confirmed:    gauge("confirmed_tracks", "Tracks reported by the last frame."),
		born:         counter("tracks_born_total", "Trackers spawned from unmatched detections."),
		pruned:       counter("tracks_pruned_total", "Trackers released after too many misses."),
		diverged:     counter("tracks_diverged_total", "Trackers dropped for a diverged prediction."),
		poolOverflow: counter("pool_overflow_total", "Trackers allocated beyond the pool capacity."),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register matcher metrics: %w", err)
		}
	}
	return m, nil
}

func (m *MatcherMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.frames, m.frameErrors, m.runDuration, m.active, m.confirmed,
		m.born, m.pruned, m.diverged, m.poolOverflow,
	}
}

// ObserveFrame records a completed frame.
func (m *MatcherMetrics) ObserveFrame(elapsed time.Duration, active, confirmed int) {
	if m == nil {
		return
	}
	m.frames.Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.active.Set(float64(active))
	m.confirmed.Set(float64(confirmed))
}

// FrameError records a frame aborted by an inference or association error.
func (m *MatcherMetrics) FrameError() {
	if m == nil {
		return
	}
	m.frameErrors.Inc()
}

// Born adds n spawned trackers.
func (m *MatcherMetrics) Born(n int) {
	if m == nil || n == 0 {
		return
	}
	m.born.Add(float64(n))
}

// Pruned adds n trackers released for excess misses.
func (m *MatcherMetrics) Pruned(n int) {
	if m == nil || n == 0 {
		return
	}
	m.pruned.Add(float64(n))
}

// Diverged adds n trackers dropped during prediction.
func (m *MatcherMetrics) Diverged(n int) {
	if m == nil || n == 0 {
		return
	}
	m.diverged.Add(float64(n))
}

// PoolOverflow adds n overflow allocations.
func (m *MatcherMetrics) PoolOverflow(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.poolOverflow.Add(float64(n))
}

// Package matcher runs the per-frame tracking pipeline: detect, predict,
// associate, update, spawn, confirm, prune.
//
// Three strategies share the pipeline and differ only in the track slots
// they use and the association cost:
//
//   - SORT: motion only, cost = 1 - IoU(predicted, detected)
//   - Deep: appearance only, cost = cosine distance to the track summary
//   - DeepSORT: a weighted blend of the two
//
// Association is always solved optimally with the Hungarian algorithm and
// then gated by a similarity threshold. A Matcher starts empty; the first
// frame with detections spawns one tracker per detection and reports nothing.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/hungarian"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/monitoring"
	"github.com/banshee-data/motrack/internal/pool"
	"github.com/banshee-data/motrack/internal/timeutil"
	"github.com/banshee-data/motrack/internal/track"
	"github.com/banshee-data/motrack/internal/tracker"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("matcher: closed")

// Strategy names a matching variant.
type Strategy string

const (
	StrategySort     Strategy = "sort"
	StrategyDeep     Strategy = "deep"
	StrategyDeepSort Strategy = "deep_sort"
)

// Option customises a Matcher.
type Option func(*options)

type options struct {
	metrics     *monitoring.MatcherMetrics
	parallelism int
	clock       timeutil.Clock
}

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *monitoring.MatcherMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithParallelism bounds the goroutines building cost-matrix rows. Values
// below one select runtime.GOMAXPROCS(0).
func WithParallelism(n int) Option {
	return func(o *options) { o.parallelism = n }
}

// WithClock sets the clock used to time Run calls.
func WithClock(c timeutil.Clock) Option {
	return func(o *options) { o.clock = c }
}

// costRow fills out[j] with the cost of pairing tk with detection j.
type costRow func(tk *tracker.Tracker, dets []detect.Detection, descriptors []linalg.Vector, out []float64)

// variant is what a strategy contributes to the shared pipeline.
type variant struct {
	strategy     Strategy
	capability   track.Capability
	cost         costRow
	threshold    float64
	maxMisses    int
	minStreak    int
	poolCapacity int
	ringSize     int
	motion       tracker.MotionModel
}

// Matcher tracks objects across frames. Run calls are serialised; the other
// methods are safe to call concurrently with Run.
type Matcher struct {
	v        variant
	detector detect.Detector
	embedder detect.Embedder

	metrics     *monitoring.MatcherMetrics
	parallelism int
	clock       timeutil.Clock
	session     uuid.UUID
	logf        func(format string, v ...interface{})

	mu           sync.Mutex
	pool         *pool.Pool[*tracker.Tracker]
	active       []*pool.Handle[*tracker.Tracker]
	lastID       uint32
	lastOverflow int64
	closed       bool
	// dim is the descriptor length fixed by the first embedded frame.
	dim int
}

type pair struct {
	tracker   int
	detection int
}

func newMatcher(v variant, det detect.Detector, emb detect.Embedder, opts []Option) (*Matcher, error) {
	if det == nil {
		return nil, fmt.Errorf("%w: nil detector", ErrConfiguration)
	}
	if v.capability.HasAppearance() && emb == nil {
		return nil, fmt.Errorf("%w: %s needs an embedder", ErrConfiguration, v.strategy)
	}

	o := options{clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = timeutil.RealClock{}
	}
	if o.parallelism < 1 {
		o.parallelism = runtime.GOMAXPROCS(0)
	}

	motion := v.capability.HasMotion()
	if _, err := tracker.New(motion, v.motion); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	p, err := pool.New(v.poolCapacity,
		func() *tracker.Tracker {
			tk, err := tracker.New(motion, v.motion)
			if err != nil {
				panic(fmt.Sprintf("matcher: motion model rejected after validation: %v", err))
			}
			return tk
		},
		func(tk *tracker.Tracker) { tk.Reset() },
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	m := &Matcher{
		v:           v,
		detector:    det,
		embedder:    emb,
		metrics:     o.metrics,
		parallelism: o.parallelism,
		clock:       o.clock,
		session:     uuid.New(),
		logf:        monitoring.Component("matcher"),
		pool:        p,
	}
	m.logf("session %s: %s matcher, pool %d, threshold %.3f, min streak %d, max misses %d",
		m.session, v.strategy, v.poolCapacity, v.threshold, v.minStreak, v.maxMisses)
	return m, nil
}

// Run processes one frame and returns the confirmed tracks. Detector and
// embedder errors abort the frame before any tracker state changes. An
// association error aborts it after prediction, so that frame counts as a
// miss for every tracker.
func (m *Matcher) Run(ctx context.Context, frame image.Image, confidence float32, types ...detect.ObjectType) ([]track.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	start := m.clock.Now()

	dets, descriptors, err := m.observe(ctx, frame, confidence, types)
	if err != nil {
		m.metrics.FrameError()
		return nil, err
	}

	confirmed := []track.Snapshot{}
	if len(m.active) == 0 {
		for i := range dets {
			m.spawn(dets[i], descriptorAt(descriptors, i))
		}
	} else {
		m.predict()

		pairs, unmatched, err := m.associate(dets, descriptors)
		if err != nil {
			m.metrics.FrameError()
			return nil, err
		}
		m.updateMatched(pairs, dets, descriptors)
		for _, j := range unmatched {
			m.spawn(dets[j], descriptorAt(descriptors, j))
		}

		confirmed = m.confirm()
		m.prune()
	}

	overflow := m.pool.Overflow()
	m.metrics.PoolOverflow(overflow - m.lastOverflow)
	m.lastOverflow = overflow
	m.metrics.ObserveFrame(m.clock.Since(start), len(m.active), len(confirmed))
	return confirmed, nil
}

// observe runs inference and drops detections the motion model cannot
// represent.
func (m *Matcher) observe(ctx context.Context, frame image.Image, confidence float32, types []detect.ObjectType) ([]detect.Detection, []linalg.Vector, error) {
	raw, err := m.detector.Detect(ctx, frame, confidence, types)
	if err != nil {
		return nil, nil, fmt.Errorf("detect: %w", err)
	}

	// Detectors that ignore the filter arguments still get them applied.
	raw = detect.Filter(raw, confidence, types)
	dets := raw[:0]
	for _, d := range raw {
		if !d.Box.Finite() || d.Box.Empty() {
			m.logf("dropping degenerate %s box %+v", d.Type, d.Box)
			continue
		}
		dets = append(dets, d)
	}

	if m.embedder == nil || len(dets) == 0 {
		return dets, nil, nil
	}
	descriptors, err := m.embedder.Embed(ctx, frame, detect.Boxes(dets))
	if err != nil {
		return nil, nil, fmt.Errorf("embed: %w", err)
	}
	if len(descriptors) != len(dets) {
		return nil, nil, fmt.Errorf("embed: got %d descriptors for %d boxes", len(descriptors), len(dets))
	}
	want := m.dim
	if want == 0 {
		want = len(descriptors[0])
	}
	for i, d := range descriptors {
		if len(d) == 0 {
			return nil, nil, fmt.Errorf("embed: empty descriptor for box %d", i)
		}
		if len(d) != want {
			return nil, nil, fmt.Errorf("embed: descriptor %d has %d values, want %d", i, len(d), want)
		}
	}
	m.dim = want
	return dets, descriptors, nil
}

// predict advances every tracker and drops the ones that diverged.
func (m *Matcher) predict() {
	kept := m.active[:0]
	diverged := 0
	for _, h := range m.active {
		tk := h.Value()
		if box, ok := tk.Predict(); !ok {
			m.logf("track %d diverged (predicted %+v), dropping", tk.ID(), box)
			h.Release()
			diverged++
			continue
		}
		kept = append(kept, h)
	}
	clear(m.active[len(kept):])
	m.active = kept
	m.metrics.Diverged(diverged)
}

// associate solves the assignment and gates it. Every detection that is not
// part of an accepted pair is returned as unmatched exactly once.
func (m *Matcher) associate(dets []detect.Detection, descriptors []linalg.Vector) ([]pair, []int, error) {
	costs := make([][]float64, len(m.active))

	var g errgroup.Group
	g.SetLimit(m.parallelism)
	for i, h := range m.active {
		i, h := i, h
		g.Go(func() error {
			row := make([]float64, len(dets))
			m.v.cost(h.Value(), dets, descriptors, row)
			costs[i] = row
			return nil
		})
	}
	// Row builders never fail.
	_ = g.Wait()

	assignment, err := hungarian.Solve(costs)
	if err != nil {
		return nil, nil, fmt.Errorf("associate: %w", err)
	}

	matched := make([]bool, len(dets))
	pairs := make([]pair, 0, min(len(m.active), len(dets)))
	for i, j := range assignment {
		if j < 0 {
			continue
		}
		if 1-costs[i][j] < m.v.threshold {
			continue
		}
		matched[j] = true
		pairs = append(pairs, pair{tracker: i, detection: j})
	}

	var unmatched []int
	for j, ok := range matched {
		if !ok {
			unmatched = append(unmatched, j)
		}
	}
	return pairs, unmatched, nil
}

func (m *Matcher) updateMatched(pairs []pair, dets []detect.Detection, descriptors []linalg.Vector) {
	for _, p := range pairs {
		tk := m.active[p.tracker].Value()
		det := dets[p.detection]
		tk.Track().RegisterTracked(det.Box, descriptorAt(descriptors, p.detection))
		if err := tk.Update(det.Box); err != nil {
			m.logf("update skipped: %v", err)
		}
	}
}

func (m *Matcher) spawn(det detect.Detection, descriptor linalg.Vector) {
	h := m.pool.Get()
	tr, err := track.New(det.Box, det.Type, m.v.capability, descriptor, m.v.ringSize)
	if err != nil {
		m.logf("spawn skipped: %v", err)
		h.Release()
		return
	}
	if err := h.Value().Pin(tr, m.nextID()); err != nil {
		m.logf("spawn skipped: %v", err)
		h.Release()
		return
	}
	m.active = append(m.active, h)
	m.metrics.Born(1)
}

// nextID returns ids 1, 2, ... and wraps back to 1 instead of overflowing.
func (m *Matcher) nextID() uint32 {
	if m.lastID == math.MaxUint32 {
		m.lastID = 0
	}
	m.lastID++
	return m.lastID
}

func (m *Matcher) confirm() []track.Snapshot {
	out := []track.Snapshot{}
	for _, h := range m.active {
		tk := h.Value()
		if tk.Misses() < 1 && tk.HitStreak() >= m.v.minStreak {
			out = append(out, tk.Track().Snapshot())
		}
	}
	return out
}

func (m *Matcher) prune() {
	kept := m.active[:0]
	pruned := 0
	for _, h := range m.active {
		if h.Value().Misses() > m.v.maxMisses {
			h.Release()
			pruned++
			continue
		}
		kept = append(kept, h)
	}
	clear(m.active[len(kept):])
	m.active = kept
	m.metrics.Pruned(pruned)
}

func descriptorAt(descriptors []linalg.Vector, i int) linalg.Vector {
	if descriptors == nil {
		return nil
	}
	return descriptors[i]
}

// Close releases every tracker and closes the detector and embedder. Later
// Run calls fail with ErrClosed; Close itself is idempotent.
func (m *Matcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	for _, h := range m.active {
		h.Release()
	}
	m.active = nil

	var errs []error
	if err := m.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if m.embedder != nil {
		if err := m.embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close embedder: %w", err))
		}
	}
	m.logf("session %s closed", m.session)
	return errors.Join(errs...)
}

// Active returns the number of live trackers.
func (m *Matcher) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// PoolAvailable returns the number of idle pooled trackers.
func (m *Matcher) PoolAvailable() int {
	return m.pool.Available()
}

// Strategy returns the matching variant.
func (m *Matcher) Strategy() Strategy { return m.v.strategy }

// SessionID identifies this matcher instance in logs and stored output.
func (m *Matcher) SessionID() uuid.UUID { return m.session }

package matcher

import (
	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/track"
	"github.com/banshee-data/motrack/internal/tracker"
)

// NewSort returns a motion-only matcher. Costs are IoU losses between each
// tracker's predicted box and each detection.
func NewSort(det detect.Detector, cfg SortConfig, opts ...Option) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newMatcher(variant{
		strategy:     StrategySort,
		capability:   track.MotionOnly,
		cost:         iouCost,
		threshold:    cfg.IoUThreshold,
		maxMisses:    cfg.MaxMisses,
		minStreak:    cfg.MinStreak,
		poolCapacity: cfg.PoolCapacity,
		ringSize:     1,
		motion:       cfg.Motion,
	}, det, nil, opts)
}

func iouCost(tk *tracker.Tracker, dets []detect.Detection, _ []linalg.Vector, out []float64) {
	predicted := tk.Track().Predicted()
	for j, d := range dets {
		out[j] = geom.IoULoss(predicted, d.Box)
	}
}

package matcher

import (
	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/track"
	"github.com/banshee-data/motrack/internal/tracker"
)

// NewDeepSort returns a matcher that blends motion and appearance. Young
// trackers lean on AppearanceWeight; after SmoothAfter updates the summary
// is trusted more and SmoothAppearanceWeight applies.
func NewDeepSort(det detect.Detector, emb detect.Embedder, cfg DeepSortConfig, opts ...Option) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newMatcher(variant{
		strategy:     StrategyDeepSort,
		capability:   track.MotionAppearance,
		cost:         blendedCost(cfg.AppearanceWeight, cfg.SmoothAppearanceWeight, cfg.SmoothAfter),
		threshold:    cfg.Threshold,
		maxMisses:    cfg.MaxMisses,
		minStreak:    cfg.MinStreak,
		poolCapacity: cfg.PoolCapacity,
		ringSize:     max(cfg.SmoothAfter, 1),
		motion:       cfg.Motion,
	}, det, emb, opts)
}

func blendedCost(young, smooth float64, smoothAfter int) costRow {
	return func(tk *tracker.Tracker, dets []detect.Detection, descriptors []linalg.Vector, out []float64) {
		w := young
		if tk.Lifetime() >= smoothAfter {
			w = smooth
		}
		tr := tk.Track()
		predicted := tr.Predicted()
		summary := tr.Appearance().Summary()
		for j, d := range dets {
			out[j] = w*cosineCost(summary, descriptors[j]) + (1-w)*geom.IoULoss(predicted, d.Box)
		}
	}
}

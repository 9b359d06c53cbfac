package matcher

import (
	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/track"
	"github.com/banshee-data/motrack/internal/tracker"
)

// appearanceEpsilon is the float32 machine epsilon. Cosine distances below
// it count as exact matches.
const appearanceEpsilon = 1.1920929e-07

// NewDeep returns an appearance-only matcher. Costs are cosine distances
// between each track's appearance summary and each detection's descriptor.
func NewDeep(det detect.Detector, emb detect.Embedder, cfg DeepConfig, opts ...Option) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newMatcher(variant{
		strategy:     StrategyDeep,
		capability:   track.AppearanceOnly,
		cost:         appearanceCost,
		threshold:    cfg.AppearanceThreshold,
		maxMisses:    cfg.MaxMisses,
		minStreak:    cfg.MinStreak,
		poolCapacity: cfg.PoolCapacity,
		ringSize:     cfg.AppearanceHistory,
	}, det, emb, opts)
}

func appearanceCost(tk *tracker.Tracker, _ []detect.Detection, descriptors []linalg.Vector, out []float64) {
	summary := tk.Track().Appearance().Summary()
	for j, d := range descriptors {
		out[j] = cosineCost(summary, d)
	}
}

func cosineCost(a, b linalg.Vector) float64 {
	d := geom.CosineDistance(a, b)
	if d < appearanceEpsilon {
		return 0
	}
	return d
}

package matcher

import (
	"errors"
	"fmt"

	"github.com/banshee-data/motrack/internal/config"
	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/tracker"
)

// ErrConfiguration is wrapped by every construction-time validation error.
var ErrConfiguration = errors.New("matcher: invalid configuration")

// SortConfig tunes the motion-only matcher.
type SortConfig struct {
	IoUThreshold float64 // minimum IoU for a match
	MaxMisses    int     // misses tolerated before a tracker is pruned
	MinStreak    int     // hit streak required before a track is reported
	PoolCapacity int
	Motion       tracker.MotionModel
}

// DeepConfig tunes the appearance-only matcher.
type DeepConfig struct {
	AppearanceThreshold float64 // minimum cosine similarity for a match
	MaxMisses           int
	MinStreak           int
	PoolCapacity        int
	AppearanceHistory   int // descriptors kept in each track's summary ring
}

// DeepSortConfig tunes the combined matcher. Costs blend IoU loss and
// cosine distance; the appearance weight moves from AppearanceWeight to
// SmoothAppearanceWeight once a tracker has lived SmoothAfter updates. The
// IoU weight is always one minus the appearance weight.
type DeepSortConfig struct {
	AppearanceWeight       float64
	SmoothAppearanceWeight float64
	SmoothAfter            int // also the appearance ring size
	Threshold              float64
	MaxMisses              int
	MinStreak              int
	PoolCapacity           int
	Motion                 tracker.MotionModel
}

// DefaultSortConfig returns the stock SORT tuning.
func DefaultSortConfig() SortConfig {
	return SortConfigFromTuning(config.EmptyTuningConfig())
}

// DefaultDeepConfig returns the stock appearance-only tuning.
func DefaultDeepConfig() DeepConfig {
	return DeepConfigFromTuning(config.EmptyTuningConfig())
}

// DefaultDeepSortConfig returns the stock DeepSORT tuning.
func DefaultDeepSortConfig() DeepSortConfig {
	return DeepSortConfigFromTuning(config.EmptyTuningConfig())
}

// SortConfigFromTuning builds a SortConfig from a loaded TuningConfig.
func SortConfigFromTuning(cfg *config.TuningConfig) SortConfig {
	return SortConfig{
		IoUThreshold: cfg.GetSortIoUThreshold(),
		MaxMisses:    cfg.GetSortMaxMisses(),
		MinStreak:    cfg.GetSortMinStreak(),
		PoolCapacity: cfg.GetSortPoolCapacity(),
		Motion:       motionFromTuning(cfg),
	}
}

// DeepConfigFromTuning builds a DeepConfig from a loaded TuningConfig.
func DeepConfigFromTuning(cfg *config.TuningConfig) DeepConfig {
	return DeepConfig{
		AppearanceThreshold: cfg.GetDeepAppearanceThreshold(),
		MaxMisses:           cfg.GetDeepMaxMisses(),
		MinStreak:           cfg.GetDeepMinStreak(),
		PoolCapacity:        cfg.GetDeepPoolCapacity(),
		AppearanceHistory:   cfg.GetDeepAppearanceHistory(),
	}
}

// DeepSortConfigFromTuning builds a DeepSortConfig from a loaded TuningConfig.
func DeepSortConfigFromTuning(cfg *config.TuningConfig) DeepSortConfig {
	return DeepSortConfig{
		AppearanceWeight:       cfg.GetDeepSortAppearanceWeight(),
		SmoothAppearanceWeight: cfg.GetDeepSortSmoothAppearanceWeight(),
		SmoothAfter:            cfg.GetDeepSortSmoothAfter(),
		Threshold:              cfg.GetDeepSortThreshold(),
		MaxMisses:              cfg.GetDeepSortMaxMisses(),
		MinStreak:              cfg.GetDeepSortMinStreak(),
		PoolCapacity:           cfg.GetDeepSortPoolCapacity(),
		Motion:                 motionFromTuning(cfg),
	}
}

func motionFromTuning(cfg *config.TuningConfig) tracker.MotionModel {
	return tracker.MotionModel{
		InitialCovariance: cfg.GetInitialCovariance(),
		ProcessNoise:      cfg.GetProcessNoise(),
		MeasurementNoise:  cfg.GetMeasurementNoise(),
	}
}

// Validate checks the configuration.
func (c SortConfig) Validate() error {
	if err := checkUnit("iou threshold", c.IoUThreshold); err != nil {
		return err
	}
	if err := checkLifecycle(c.MaxMisses, c.MinStreak, c.PoolCapacity); err != nil {
		return err
	}
	if err := c.Motion.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

// Validate checks the configuration.
func (c DeepConfig) Validate() error {
	if err := checkUnit("appearance threshold", c.AppearanceThreshold); err != nil {
		return err
	}
	if c.AppearanceHistory <= 0 {
		return fmt.Errorf("%w: appearance history must be positive, got %d", ErrConfiguration, c.AppearanceHistory)
	}
	return checkLifecycle(c.MaxMisses, c.MinStreak, c.PoolCapacity)
}

// Validate checks the configuration.
func (c DeepSortConfig) Validate() error {
	for _, u := range []struct {
		name string
		v    float64
	}{
		{"appearance weight", c.AppearanceWeight},
		{"smooth appearance weight", c.SmoothAppearanceWeight},
		{"threshold", c.Threshold},
	} {
		if err := checkUnit(u.name, u.v); err != nil {
			return err
		}
	}
	if c.SmoothAfter < 0 {
		return fmt.Errorf("%w: smooth after must be non-negative, got %d", ErrConfiguration, c.SmoothAfter)
	}
	if err := checkLifecycle(c.MaxMisses, c.MinStreak, c.PoolCapacity); err != nil {
		return err
	}
	if err := c.Motion.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got %v", ErrConfiguration, name, v)
	}
	return nil
}

func checkLifecycle(maxMisses, minStreak, poolCapacity int) error {
	switch {
	case maxMisses < 0:
		return fmt.Errorf("%w: max misses must be non-negative, got %d", ErrConfiguration, maxMisses)
	case minStreak < 0:
		return fmt.Errorf("%w: min streak must be non-negative, got %d", ErrConfiguration, minStreak)
	case poolCapacity <= 0:
		return fmt.Errorf("%w: pool capacity must be positive, got %d", ErrConfiguration, poolCapacity)
	}
	return nil
}

// FromTuning builds the matcher selected by cfg's strategy. emb may be nil
// for the sort strategy.
func FromTuning(cfg *config.TuningConfig, det detect.Detector, emb detect.Embedder, opts ...Option) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if p := cfg.GetParallelism(); p > 0 {
		opts = append([]Option{WithParallelism(p)}, opts...)
	}
	switch cfg.GetStrategy() {
	case config.StrategySort:
		return NewSort(det, SortConfigFromTuning(cfg), opts...)
	case config.StrategyDeep:
		return NewDeep(det, emb, DeepConfigFromTuning(cfg), opts...)
	case config.StrategyDeepSort:
		return NewDeepSort(det, emb, DeepSortConfigFromTuning(cfg), opts...)
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", ErrConfiguration, cfg.GetStrategy())
}

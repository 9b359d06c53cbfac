package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/motrack/internal/detect"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Strategy names accepted by the "strategy" field.
const (
	StrategySort     = "sort"
	StrategyDeep     = "deep"
	StrategyDeepSort = "deep_sort"
)

// TuningConfig represents the root configuration for tracking parameters.
// Every field is optional; the Get* accessors supply the default for any
// field left out of the JSON.
type TuningConfig struct {
	// Pipeline params
	Strategy         *string   `json:"strategy,omitempty"` // sort | deep | deep_sort
	Parallelism      *int      `json:"parallelism,omitempty"`
	InferenceTimeout *string   `json:"inference_timeout,omitempty"` // duration string like "2s"
	Confidence       *float64  `json:"confidence,omitempty"`
	DetectionTypes   *[]string `json:"detection_types,omitempty"`

	// Motion model noise diagonals (optional)
	InitialCovariance *[]float64 `json:"initial_covariance,omitempty"`
	ProcessNoise      *[]float64 `json:"process_noise,omitempty"`
	MeasurementNoise  *[]float64 `json:"measurement_noise,omitempty"`

	// SORT matcher params
	SortIoUThreshold *float64 `json:"sort_iou_threshold,omitempty"`
	SortMaxMisses    *int     `json:"sort_max_misses,omitempty"`
	SortMinStreak    *int     `json:"sort_min_streak,omitempty"`
	SortPoolCapacity *int     `json:"sort_pool_capacity,omitempty"`

	// Deep (appearance-only) matcher params
	DeepAppearanceThreshold *float64 `json:"deep_appearance_threshold,omitempty"`
	DeepMaxMisses           *int     `json:"deep_max_misses,omitempty"`
	DeepMinStreak           *int     `json:"deep_min_streak,omitempty"`
	DeepPoolCapacity        *int     `json:"deep_pool_capacity,omitempty"`
	DeepAppearanceHistory   *int     `json:"deep_appearance_history,omitempty"`

	// DeepSORT matcher params
	DeepSortAppearanceWeight       *float64 `json:"deep_sort_appearance_weight,omitempty"`
	DeepSortSmoothAppearanceWeight *float64 `json:"deep_sort_smooth_appearance_weight,omitempty"`
	DeepSortSmoothAfter            *int     `json:"deep_sort_smooth_after,omitempty"`
	DeepSortThreshold              *float64 `json:"deep_sort_threshold,omitempty"`
	DeepSortMaxMisses              *int     `json:"deep_sort_max_misses,omitempty"`
	DeepSortMinStreak              *int     `json:"deep_sort_min_streak,omitempty"`
	DeepSortPoolCapacity           *int     `json:"deep_sort_pool_capacity,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,       // from cmd/
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Strategy != nil {
		switch *c.Strategy {
		case StrategySort, StrategyDeep, StrategyDeepSort:
		default:
			return fmt.Errorf("strategy must be one of %q, %q, %q, got %q", StrategySort, StrategyDeep, StrategyDeepSort, *c.Strategy)
		}
	}

	if c.Parallelism != nil && *c.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", *c.Parallelism)
	}

	if c.InferenceTimeout != nil && *c.InferenceTimeout != "" {
		if _, err := time.ParseDuration(*c.InferenceTimeout); err != nil {
			return fmt.Errorf("invalid inference_timeout '%s': %w", *c.InferenceTimeout, err)
		}
	}

	if c.DetectionTypes != nil {
		for _, name := range *c.DetectionTypes {
			if _, err := detect.ParseObjectType(name); err != nil {
				return fmt.Errorf("detection_types: %w", err)
			}
		}
	}

	unit := []struct {
		name string
		v    *float64
	}{
		{"confidence", c.Confidence},
		{"sort_iou_threshold", c.SortIoUThreshold},
		{"deep_appearance_threshold", c.DeepAppearanceThreshold},
		{"deep_sort_appearance_weight", c.DeepSortAppearanceWeight},
		{"deep_sort_smooth_appearance_weight", c.DeepSortSmoothAppearanceWeight},
		{"deep_sort_threshold", c.DeepSortThreshold},
	}
	for _, u := range unit {
		if u.v != nil && (*u.v < 0 || *u.v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", u.name, *u.v)
		}
	}

	nonNegative := []struct {
		name string
		v    *int
	}{
		{"sort_max_misses", c.SortMaxMisses},
		{"sort_min_streak", c.SortMinStreak},
		{"deep_max_misses", c.DeepMaxMisses},
		{"deep_min_streak", c.DeepMinStreak},
		{"deep_sort_max_misses", c.DeepSortMaxMisses},
		{"deep_sort_min_streak", c.DeepSortMinStreak},
		{"deep_sort_smooth_after", c.DeepSortSmoothAfter},
	}
	for _, n := range nonNegative {
		if n.v != nil && *n.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", n.name, *n.v)
		}
	}

	positive := []struct {
		name string
		v    *int
	}{
		{"sort_pool_capacity", c.SortPoolCapacity},
		{"deep_pool_capacity", c.DeepPoolCapacity},
		{"deep_appearance_history", c.DeepAppearanceHistory},
		{"deep_sort_pool_capacity", c.DeepSortPoolCapacity},
	}
	for _, p := range positive {
		if p.v != nil && *p.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, *p.v)
		}
	}

	return nil
}

// GetStrategy returns the strategy value or the default.
func (c *TuningConfig) GetStrategy() string {
	if c.Strategy == nil || *c.Strategy == "" {
		return StrategySort
	}
	return *c.Strategy
}

// GetParallelism returns the parallelism value or the default (0 = GOMAXPROCS).
func (c *TuningConfig) GetParallelism() int {
	if c.Parallelism == nil {
		return 0
	}
	return *c.Parallelism
}

// GetInferenceTimeout parses and returns the InferenceTimeout as a time.Duration.
// Zero means no per-frame deadline.
func (c *TuningConfig) GetInferenceTimeout() time.Duration {
	if c.InferenceTimeout == nil || *c.InferenceTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.InferenceTimeout)
	if err != nil {
		return 0
	}
	return d
}

// GetConfidence returns the detection confidence threshold or the default.
func (c *TuningConfig) GetConfidence() float64 {
	if c.Confidence == nil {
		return 0.25
	}
	return *c.Confidence
}

// GetDetectionTypes returns the class filter. Unknown names are skipped;
// Validate reports them.
func (c *TuningConfig) GetDetectionTypes() []detect.ObjectType {
	if c.DetectionTypes == nil {
		return []detect.ObjectType{detect.Person}
	}
	out := make([]detect.ObjectType, 0, len(*c.DetectionTypes))
	for _, name := range *c.DetectionTypes {
		if t, err := detect.ParseObjectType(name); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// GetInitialCovariance returns the P0 diagonal, or nil for the model default.
func (c *TuningConfig) GetInitialCovariance() []float64 {
	if c.InitialCovariance == nil {
		return nil
	}
	return *c.InitialCovariance
}

// GetProcessNoise returns the Q diagonal, or nil for the model default.
func (c *TuningConfig) GetProcessNoise() []float64 {
	if c.ProcessNoise == nil {
		return nil
	}
	return *c.ProcessNoise
}

// GetMeasurementNoise returns the R diagonal, or nil for the model default.
func (c *TuningConfig) GetMeasurementNoise() []float64 {
	if c.MeasurementNoise == nil {
		return nil
	}
	return *c.MeasurementNoise
}

// GetSortIoUThreshold returns the sort_iou_threshold value or the default.
func (c *TuningConfig) GetSortIoUThreshold() float64 {
	if c.SortIoUThreshold == nil {
		return 0.3
	}
	return *c.SortIoUThreshold
}

// GetSortMaxMisses returns the sort_max_misses value or the default.
func (c *TuningConfig) GetSortMaxMisses() int {
	if c.SortMaxMisses == nil {
		return 50
	}
	return *c.SortMaxMisses
}

// GetSortMinStreak returns the sort_min_streak value or the default.
func (c *TuningConfig) GetSortMinStreak() int {
	if c.SortMinStreak == nil {
		return 1
	}
	return *c.SortMinStreak
}

// GetSortPoolCapacity returns the sort_pool_capacity value or the default.
func (c *TuningConfig) GetSortPoolCapacity() int {
	if c.SortPoolCapacity == nil {
		return 20
	}
	return *c.SortPoolCapacity
}

// GetDeepAppearanceThreshold returns the deep_appearance_threshold value or the default.
func (c *TuningConfig) GetDeepAppearanceThreshold() float64 {
	if c.DeepAppearanceThreshold == nil {
		return 0.875
	}
	return *c.DeepAppearanceThreshold
}

// GetDeepMaxMisses returns the deep_max_misses value or the default.
func (c *TuningConfig) GetDeepMaxMisses() int {
	if c.DeepMaxMisses == nil {
		return 10
	}
	return *c.DeepMaxMisses
}

// GetDeepMinStreak returns the deep_min_streak value or the default.
func (c *TuningConfig) GetDeepMinStreak() int {
	if c.DeepMinStreak == nil {
		return 4
	}
	return *c.DeepMinStreak
}

// GetDeepPoolCapacity returns the deep_pool_capacity value or the default.
func (c *TuningConfig) GetDeepPoolCapacity() int {
	if c.DeepPoolCapacity == nil {
		return 20
	}
	return *c.DeepPoolCapacity
}

// GetDeepAppearanceHistory returns the deep_appearance_history value or the default.
func (c *TuningConfig) GetDeepAppearanceHistory() int {
	if c.DeepAppearanceHistory == nil {
		return 40
	}
	return *c.DeepAppearanceHistory
}

// GetDeepSortAppearanceWeight returns the deep_sort_appearance_weight value or the default.
func (c *TuningConfig) GetDeepSortAppearanceWeight() float64 {
	if c.DeepSortAppearanceWeight == nil {
		return 0.775
	}
	return *c.DeepSortAppearanceWeight
}

// GetDeepSortSmoothAppearanceWeight returns the deep_sort_smooth_appearance_weight value or the default.
func (c *TuningConfig) GetDeepSortSmoothAppearanceWeight() float64 {
	if c.DeepSortSmoothAppearanceWeight == nil {
		return 0.875
	}
	return *c.DeepSortSmoothAppearanceWeight
}

// GetDeepSortSmoothAfter returns the deep_sort_smooth_after value or the default.
func (c *TuningConfig) GetDeepSortSmoothAfter() int {
	if c.DeepSortSmoothAfter == nil {
		return 40
	}
	return *c.DeepSortSmoothAfter
}

// GetDeepSortThreshold returns the deep_sort_threshold value or the default.
func (c *TuningConfig) GetDeepSortThreshold() float64 {
	if c.DeepSortThreshold == nil {
		return 0.5
	}
	return *c.DeepSortThreshold
}

// GetDeepSortMaxMisses returns the deep_sort_max_misses value or the default.
func (c *TuningConfig) GetDeepSortMaxMisses() int {
	if c.DeepSortMaxMisses == nil {
		return 50
	}
	return *c.DeepSortMaxMisses
}

// GetDeepSortMinStreak returns the deep_sort_min_streak value or the default.
func (c *TuningConfig) GetDeepSortMinStreak() int {
	if c.DeepSortMinStreak == nil {
		return 8
	}
	return *c.DeepSortMinStreak
}

// GetDeepSortPoolCapacity returns the deep_sort_pool_capacity value or the default.
func (c *TuningConfig) GetDeepSortPoolCapacity() int {
	if c.DeepSortPoolCapacity == nil {
		return 50
	}
	return *c.DeepSortPoolCapacity
}

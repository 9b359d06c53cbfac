package tracker

import (
	"fmt"
	"math"

	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/kalman"
	"github.com/banshee-data/motrack/internal/linalg"
)

// State vector layout. The divergence guard in Predict reads idxArea and
// idxVArea directly; keep it in step with any change here.
const (
	idxCX = iota
	idxCY
	idxArea
	idxAspect
	idxVCX
	idxVCY
	idxVArea

	stateSize       = 7
	measurementSize = 4
)

// MotionModel holds the noise diagonals of the constant-velocity box model.
// Nil slices take the defaults.
type MotionModel struct {
	InitialCovariance []float64 `json:"initial_covariance,omitempty"` // P0, 7 values
	ProcessNoise      []float64 `json:"process_noise,omitempty"`      // Q, 7 values
	MeasurementNoise  []float64 `json:"measurement_noise,omitempty"`  // R, 4 values
}

// DefaultMotionModel returns the stock SORT noise settings.
func DefaultMotionModel() MotionModel {
	return MotionModel{
		InitialCovariance: []float64{10, 10, 10, 10, 1e4, 1e4, 1e4},
		ProcessNoise:      []float64{1, 1, 1, 1, 0.01, 0.01, 1e-4},
		MeasurementNoise:  []float64{1, 1, 10, 10},
	}
}

func (m MotionModel) withDefaults() MotionModel {
	def := DefaultMotionModel()
	if m.InitialCovariance == nil {
		m.InitialCovariance = def.InitialCovariance
	}
	if m.ProcessNoise == nil {
		m.ProcessNoise = def.ProcessNoise
	}
	if m.MeasurementNoise == nil {
		m.MeasurementNoise = def.MeasurementNoise
	}
	return m
}

// Validate checks lengths and signs of the noise diagonals.
func (m MotionModel) Validate() error {
	m = m.withDefaults()
	checks := []struct {
		name   string
		values []float64
		want   int
	}{
		{"initial_covariance", m.InitialCovariance, stateSize},
		{"process_noise", m.ProcessNoise, stateSize},
		{"measurement_noise", m.MeasurementNoise, measurementSize},
	}
	for _, c := range checks {
		if len(c.values) != c.want {
			return fmt.Errorf("%s must have %d values, got %d", c.name, c.want, len(c.values))
		}
		for i, v := range c.values {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s[%d] must be finite and non-negative, got %v", c.name, i, v)
			}
		}
	}
	return nil
}

// newFilter builds the 7-state/4-measurement constant-velocity filter.
func (m MotionModel) newFilter() (*kalman.Filter, error) {
	m = m.withDefaults()

	f := linalg.Identity(stateSize)
	f.Set(idxCX, idxVCX, 1)
	f.Set(idxCY, idxVCY, 1)
	f.Set(idxArea, idxVArea, 1)

	h := linalg.NewMatrix(measurementSize, stateSize, nil)
	for i := 0; i < measurementSize; i++ {
		h.Set(i, i, 1)
	}

	return kalman.New(kalman.Config{
		StateSize:        stateSize,
		MeasurementSize:  measurementSize,
		Transition:       f,
		Measurement:      h,
		ProcessNoise:     linalg.Diagonal(m.ProcessNoise...),
		MeasurementNoise: linalg.Diagonal(m.MeasurementNoise...),
		Covariance:       linalg.Diagonal(m.InitialCovariance...),
	})
}

// toMeasurement converts a box to (cx, cy, area, aspect).
func toMeasurement(b geom.Box) linalg.Vector {
	cx, cy := b.Center()
	return linalg.Vector{cx, cy, b.W * b.H, b.W / b.H}
}

// toBox converts a state back to a box. Negative area or aspect produce a
// non-finite box.
func toBox(x linalg.Vector) geom.Box {
	w := math.Sqrt(x[idxArea] * x[idxAspect])
	h := x[idxArea] / w
	return geom.Box{X: x[idxCX] - w/2, Y: x[idxCY] - h/2, W: w, H: h}
}

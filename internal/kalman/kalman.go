// Package kalman implements a generic linear Kalman filter.
//
// The filter knows nothing about boxes or tracks: callers describe the model
// with F (transition), H (measurement), Q (process noise), R (measurement
// noise) and an initial covariance P. Every matrix is validated against the
// declared state and measurement sizes when the filter is built, so a
// mis-shaped model fails at construction rather than mid-stream.
package kalman

import (
	"errors"
	"fmt"

	"github.com/banshee-data/motrack/internal/linalg"
)

// ErrConfiguration is wrapped by every dimension or shape error.
var ErrConfiguration = errors.New("kalman: invalid configuration")

// Config describes a linear model.
type Config struct {
	StateSize       int
	MeasurementSize int

	Transition       linalg.Matrix // F, StateSize×StateSize
	Measurement      linalg.Matrix // H, MeasurementSize×StateSize
	ProcessNoise     linalg.Matrix // Q, StateSize×StateSize
	MeasurementNoise linalg.Matrix // R, MeasurementSize×MeasurementSize
	Covariance       linalg.Matrix // initial P, StateSize×StateSize

	// Alpha is the fading-memory factor applied as α² to the predicted
	// covariance. Zero means 1 (standard filter).
	Alpha float64
}

// Filter is a single linear estimator. It is not safe for concurrent use.
type Filter struct {
	n, m int

	f, h, q, r linalg.Matrix
	ft, ht     linalg.Matrix
	identity   linalg.Matrix
	alphaSq    float64

	x linalg.Vector
	p linalg.Matrix
}

// New validates cfg and returns a filter with a zero state. Missing F, Q, R
// or P default to identity; a missing H defaults to zero.
func New(cfg Config) (*Filter, error) {
	n, m := cfg.StateSize, cfg.MeasurementSize
	if n <= 0 || m <= 0 {
		return nil, fmt.Errorf("%w: state size %d, measurement size %d", ErrConfiguration, n, m)
	}

	f := orDefault(cfg.Transition, linalg.Identity(n))
	h := orDefault(cfg.Measurement, linalg.NewMatrix(m, n, nil))
	q := orDefault(cfg.ProcessNoise, linalg.Identity(n))
	r := orDefault(cfg.MeasurementNoise, linalg.Identity(m))
	p := orDefault(cfg.Covariance, linalg.Identity(n))

	checks := []struct {
		name       string
		mat        linalg.Matrix
		rows, cols int
	}{
		{"transition", f, n, n},
		{"measurement", h, m, n},
		{"process noise", q, n, n},
		{"measurement noise", r, m, m},
		{"covariance", p, n, n},
	}
	for _, c := range checks {
		if err := checkDims(c.name, c.mat, c.rows, c.cols); err != nil {
			return nil, err
		}
	}

	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = 1
	}

	return &Filter{
		n:        n,
		m:        m,
		f:        f.Clone(),
		h:        h.Clone(),
		q:        q.Clone(),
		r:        r.Clone(),
		ft:       f.T(),
		ht:       h.T(),
		identity: linalg.Identity(n),
		alphaSq:  alpha * alpha,
		x:        linalg.NewVector(n),
		p:        p.Clone(),
	}, nil
}

func orDefault(m, def linalg.Matrix) linalg.Matrix {
	if m.IsZero() {
		return def
	}
	return m
}

func checkDims(name string, m linalg.Matrix, rows, cols int) error {
	r, c := m.Dims()
	if r != rows || c != cols {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrConfiguration, name, r, c, rows, cols)
	}
	return nil
}

// StateSize returns the dimension of the state vector.
func (f *Filter) StateSize() int { return f.n }

// MeasurementSize returns the dimension of a measurement.
func (f *Filter) MeasurementSize() int { return f.m }

// State returns a copy of the current state estimate.
func (f *Filter) State() linalg.Vector { return f.x.Clone() }

// SetState replaces the state estimate.
func (f *Filter) SetState(x linalg.Vector) error {
	if len(x) != f.n {
		return fmt.Errorf("%w: state has %d elements, want %d", ErrConfiguration, len(x), f.n)
	}
	f.x = x.Clone()
	return nil
}

// Covariance returns a copy of the current covariance.
func (f *Filter) Covariance() linalg.Matrix { return f.p.Clone() }

// SetCovariance replaces the covariance.
func (f *Filter) SetCovariance(p linalg.Matrix) error {
	if err := checkDims("covariance", p, f.n, f.n); err != nil {
		return err
	}
	f.p = p.Clone()
	return nil
}

// Predict advances the state one step:
//
//	x ← F·x
//	P ← α²·F·P·Fᵗ + Q
func (f *Filter) Predict() {
	f.x = f.f.MulVec(f.x)
	f.p = f.f.Mul(f.p).Mul(f.ft).Scale(f.alphaSq).Add(f.q)
}

// Update folds a measurement into the estimate. The covariance is updated in
// Joseph form, (I−KH)·P·(I−KH)ᵗ + K·R·Kᵗ, which keeps P symmetric positive
// semi-definite under rounding. On error the state is left unchanged.
func (f *Filter) Update(z linalg.Vector) error {
	if len(z) != f.m {
		return fmt.Errorf("%w: measurement has %d elements, want %d", ErrConfiguration, len(z), f.m)
	}

	y := z.Sub(f.h.MulVec(f.x))
	pht := f.p.Mul(f.ht)
	s := f.h.Mul(pht).Add(f.r)

	si, err := s.Inverse()
	if err != nil {
		return fmt.Errorf("kalman: innovation covariance: %w", err)
	}
	k := pht.Mul(si)

	f.x = f.x.Add(k.MulVec(y))

	ikh := f.identity.Sub(k.Mul(f.h))
	f.p = ikh.Mul(f.p).Mul(ikh.T()).Add(k.Mul(f.r).Mul(k.T()))
	return nil
}

// Project returns the predicted measurement H·x.
func (f *Filter) Project() linalg.Vector {
	return f.h.MulVec(f.x)
}

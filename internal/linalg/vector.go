// Package linalg provides the small dense vector and matrix types used by the
// Kalman filter and the appearance summaries. Storage and kernels are
// delegated to gonum; the wrappers keep call sites short and value-like.
package linalg

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Vector is a dense column vector.
type Vector []float64

// NewVector returns a zero vector of length n.
func NewVector(n int) Vector {
	return make(Vector, n)
}

// Len returns the number of elements.
func (v Vector) Len() int { return len(v) }

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Dot returns the inner product. It panics if the lengths differ.
func (v Vector) Dot(o Vector) float64 {
	return floats.Dot(v, o)
}

// Norm returns the Euclidean length.
func (v Vector) Norm() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Normalize scales v in place to unit length. A zero vector is left as is.
func (v Vector) Normalize() Vector {
	n := v.Norm()
	if n == 0 {
		return v
	}
	floats.Scale(1/n, v)
	return v
}

// Add returns v + o as a new vector.
func (v Vector) Add(o Vector) Vector {
	out := v.Clone()
	floats.Add(out, o)
	return out
}

// Sub returns v - o as a new vector.
func (v Vector) Sub(o Vector) Vector {
	out := v.Clone()
	floats.Sub(out, o)
	return out
}

// Scale returns s*v as a new vector.
func (v Vector) Scale(s float64) Vector {
	out := v.Clone()
	floats.Scale(s, out)
	return out
}

// AddInPlace accumulates o into v.
func (v Vector) AddInPlace(o Vector) {
	floats.Add(v, o)
}

// Append returns a new vector with extra elements appended.
func (v Vector) Append(extra ...float64) Vector {
	out := make(Vector, 0, len(v)+len(extra))
	out = append(out, v...)
	return append(out, extra...)
}

// Equal reports element-wise equality within tol.
func (v Vector) Equal(o Vector, tol float64) bool {
	if len(v) != len(o) {
		return false
	}
	return floats.EqualApprox(v, o, tol)
}

func (v Vector) vec() *mat.VecDense {
	return mat.NewVecDense(len(v), v)
}

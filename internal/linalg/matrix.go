package linalg

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a matrix cannot be inverted.
var ErrSingular = errors.New("linalg: matrix is singular")

// maxCondition is the largest LU condition number accepted before a matrix is
// treated as singular.
const maxCondition = 1e15

// Matrix is a dense row-major matrix. The zero value is an empty matrix.
type Matrix struct {
	d *mat.Dense
}

// NewMatrix builds an r×c matrix from row-major data. A nil data slice gives
// a zero matrix. It panics if len(data) != r*c.
func NewMatrix(r, c int, data []float64) Matrix {
	if data != nil {
		data = append([]float64(nil), data...)
	}
	return Matrix{d: mat.NewDense(r, c, data)}
}

// FromRows builds a matrix from a slice of equal-length rows.
func FromRows(rows [][]float64) (Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Matrix{}, fmt.Errorf("linalg: empty rows")
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return Matrix{}, fmt.Errorf("linalg: row %d has %d columns, want %d", i, len(row), c)
		}
		data = append(data, row...)
	}
	return Matrix{d: mat.NewDense(len(rows), c, data)}, nil
}

// Identity returns the n×n identity matrix.
func Identity(n int) Matrix {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return Matrix{d: d}
}

// Diagonal returns a square matrix with the given diagonal.
func Diagonal(values ...float64) Matrix {
	n := len(values)
	d := mat.NewDense(n, n, nil)
	for i, v := range values {
		d.Set(i, i, v)
	}
	return Matrix{d: d}
}

// Dims returns the row and column counts.
func (m Matrix) Dims() (int, int) {
	if m.d == nil {
		return 0, 0
	}
	return m.d.Dims()
}

// IsZero reports whether the matrix is the empty zero value.
func (m Matrix) IsZero() bool { return m.d == nil }

// At returns element (i, j).
func (m Matrix) At(i, j int) float64 { return m.d.At(i, j) }

// Set writes element (i, j) in place.
func (m Matrix) Set(i, j int, v float64) { m.d.Set(i, j, v) }

// Clone returns an independent copy.
func (m Matrix) Clone() Matrix {
	if m.d == nil {
		return Matrix{}
	}
	return Matrix{d: mat.DenseCopyOf(m.d)}
}

// T returns the transpose as a new matrix.
func (m Matrix) T() Matrix {
	return Matrix{d: mat.DenseCopyOf(m.d.T())}
}

// Mul returns m·o.
func (m Matrix) Mul(o Matrix) Matrix {
	var out mat.Dense
	out.Mul(m.d, o.d)
	return Matrix{d: &out}
}

// Add returns m + o.
func (m Matrix) Add(o Matrix) Matrix {
	var out mat.Dense
	out.Add(m.d, o.d)
	return Matrix{d: &out}
}

// Sub returns m - o.
func (m Matrix) Sub(o Matrix) Matrix {
	var out mat.Dense
	out.Sub(m.d, o.d)
	return Matrix{d: &out}
}

// Scale returns s·m.
func (m Matrix) Scale(s float64) Matrix {
	var out mat.Dense
	out.Scale(s, m.d)
	return Matrix{d: &out}
}

// MulVec returns m·v.
func (m Matrix) MulVec(v Vector) Vector {
	r, _ := m.Dims()
	out := mat.NewVecDense(r, nil)
	out.MulVec(m.d, v.vec())
	return Vector(out.RawVector().Data)
}

// Inverse returns m⁻¹ computed from an LU decomposition with partial
// pivoting. ErrSingular is returned for singular or ill-conditioned input.
func (m Matrix) Inverse() (Matrix, error) {
	r, c := m.Dims()
	if r == 0 || r != c {
		return Matrix{}, fmt.Errorf("linalg: inverse of %dx%d matrix", r, c)
	}

	var lu mat.LU
	lu.Factorize(m.d)
	if cond := lu.Cond(); math.IsInf(cond, 1) || math.IsNaN(cond) || cond > maxCondition {
		return Matrix{}, ErrSingular
	}

	var inv mat.Dense
	if err := lu.SolveTo(&inv, false, Identity(r).d); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return Matrix{}, ErrSingular
		}
		return Matrix{}, err
	}
	return Matrix{d: &inv}, nil
}

// Equal reports element-wise equality within tol.
func (m Matrix) Equal(o Matrix, tol float64) bool {
	if m.d == nil || o.d == nil {
		return m.d == o.d
	}
	return mat.EqualApprox(m.d, o.d, tol)
}

// Row returns a copy of row i.
func (m Matrix) Row(i int) Vector {
	_, c := m.Dims()
	return Vector(mat.Row(make([]float64, c), i, m.d))
}

// Diag returns a copy of the main diagonal.
func (m Matrix) Diag() Vector {
	r, c := m.Dims()
	n := min(r, c)
	out := make(Vector, n)
	for i := 0; i < n; i++ {
		out[i] = m.d.At(i, i)
	}
	return out
}

package linalg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector(t *testing.T) {
	t.Parallel()

	v := Vector{3, 4}
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, 5.0, v.Norm())
	assert.Equal(t, 11.0, v.Dot(Vector{1, 2}))
	assert.Equal(t, Vector{4, 6}, v.Add(Vector{1, 2}))
	assert.Equal(t, Vector{2, 2}, v.Sub(Vector{1, 2}))
	assert.Equal(t, Vector{6, 8}, v.Scale(2))
	assert.Equal(t, Vector{3, 4}, v, "arithmetic must not mutate the receiver")
	assert.Equal(t, Vector{3, 4, 5}, v.Append(5))

	n := v.Clone().Normalize()
	assert.True(t, n.Equal(Vector{0.6, 0.8}, 1e-12))
	assert.InDelta(t, 1.0, n.Norm(), 1e-12)

	zero := NewVector(3)
	assert.Equal(t, Vector{0, 0, 0}, zero.Normalize())

	acc := NewVector(2)
	acc.AddInPlace(v)
	acc.AddInPlace(v)
	assert.Equal(t, Vector{6, 8}, acc)

	assert.False(t, v.Equal(Vector{3}, 1))
	assert.Nil(t, Vector(nil).Clone())
}

func TestMatrixArithmetic(t *testing.T) {
	t.Parallel()

	a, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	b := Identity(2).Scale(2)

	assert.True(t, a.Mul(b).Equal(NewMatrix(2, 2, []float64{2, 4, 6, 8}), 0))
	assert.True(t, a.Add(b).Equal(NewMatrix(2, 2, []float64{3, 2, 3, 6}), 0))
	assert.True(t, a.Sub(b).Equal(NewMatrix(2, 2, []float64{-1, 2, 3, 2}), 0))
	assert.True(t, a.T().Equal(NewMatrix(2, 2, []float64{1, 3, 2, 4}), 0))
	assert.Equal(t, Vector{5, 11}, a.MulVec(Vector{1, 2}))
	assert.Equal(t, Vector{3, 4}, a.Row(1))
	assert.Equal(t, Vector{1, 4}, a.Diag())
	assert.Equal(t, Vector{1, 2, 3}, Diagonal(1, 2, 3).Diag())

	c := a.Clone()
	c.Set(0, 0, 100)
	assert.Equal(t, 1.0, a.At(0, 0), "clone must be independent")

	r, cols := NewMatrix(2, 3, nil).Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, cols)

	var zero Matrix
	assert.True(t, zero.IsZero())
	r, cols = zero.Dims()
	assert.Zero(t, r)
	assert.Zero(t, cols)
}

func TestFromRowsErrors(t *testing.T) {
	t.Parallel()

	_, err := FromRows(nil)
	assert.Error(t, err)
	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestInverse(t *testing.T) {
	t.Parallel()

	t.Run("well conditioned", func(t *testing.T) {
		t.Parallel()
		a, err := FromRows([][]float64{{4, 7}, {2, 6}})
		require.NoError(t, err)
		inv, err := a.Inverse()
		require.NoError(t, err)
		assert.True(t, a.Mul(inv).Equal(Identity(2), 1e-12))
	})

	t.Run("singular", func(t *testing.T) {
		t.Parallel()
		a, err := FromRows([][]float64{{1, 2}, {2, 4}})
		require.NoError(t, err)
		_, err = a.Inverse()
		assert.True(t, errors.Is(err, ErrSingular), "got %v", err)
	})

	t.Run("not square", func(t *testing.T) {
		t.Parallel()
		_, err := NewMatrix(2, 3, nil).Inverse()
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrSingular))
	})
}

package hungarian

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteForce returns the minimum total cost over every assignment of
// min(rows, cols) pairs.
func bruteForce(costs [][]float64) float64 {
	rows := len(costs)
	cols := len(costs[0])
	used := make([]bool, cols)
	best := math.Inf(1)

	var walk func(i, assigned int, total float64)
	walk = func(i, assigned int, total float64) {
		if i == rows {
			if assigned == min(rows, cols) && total < best {
				best = total
			}
			return
		}
		// Leave row i unassigned only when rows outnumber columns.
		if rows-i > min(rows, cols)-assigned {
			walk(i+1, assigned, total)
		}
		for j := 0; j < cols; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			walk(i+1, assigned+1, total+costs[i][j])
			used[j] = false
		}
	}
	walk(0, 0, 0)
	return best
}

func checkCardinality(t *testing.T, result []int, rows, cols int) {
	t.Helper()
	require.Len(t, result, rows)
	seen := make(map[int]bool)
	assigned := 0
	for i, j := range result {
		if j < 0 {
			assert.Equal(t, -1, j, "row %d", i)
			continue
		}
		assert.Less(t, j, cols)
		assert.False(t, seen[j], "column %d assigned twice", j)
		seen[j] = true
		assigned++
	}
	assert.Equal(t, min(rows, cols), assigned)
}

func TestSolveSquareOptimal(t *testing.T) {
	t.Parallel()

	costs := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result, err := Solve(costs)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, result)
	assert.Equal(t, 10.0, TotalCost(costs, result))
}

func TestSolveRectangular(t *testing.T) {
	t.Parallel()

	t.Run("more rows than columns", func(t *testing.T) {
		t.Parallel()
		costs := [][]float64{
			{1, 10},
			{10, 1},
			{5, 5},
		}
		result, err := Solve(costs)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1, -1}, result)
	})

	t.Run("more columns than rows", func(t *testing.T) {
		t.Parallel()
		costs := [][]float64{
			{10, 1, 5},
			{5, 10, 1},
		}
		result, err := Solve(costs)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, result)
	})
}

func TestSolveMatchesBruteForce(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 300; trial++ {
		rows := 1 + rng.Intn(6)
		cols := 1 + rng.Intn(6)
		costs := make([][]float64, rows)
		for i := range costs {
			costs[i] = make([]float64, cols)
			for j := range costs[i] {
				// Coarse values produce plenty of ties.
				costs[i][j] = float64(rng.Intn(10)) / 4
			}
		}

		result, err := Solve(costs)
		require.NoError(t, err)
		checkCardinality(t, result, rows, cols)
		assert.InDelta(t, bruteForce(costs), TotalCost(costs, result), 1e-9, "trial %d: %v -> %v", trial, costs, result)
	}
}

func TestSolveIntegerKinds(t *testing.T) {
	t.Parallel()

	ints := [][]int{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	result, err := Solve(ints)
	require.NoError(t, err)
	assert.Equal(t, 5, TotalCost(ints, result))

	uints := [][]uint8{
		{7, 3},
		{2, 9},
	}
	ur, err := Solve(uints)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, ur)
}

func TestSolveFloat32(t *testing.T) {
	t.Parallel()

	costs := [][]float32{
		{0.1, 0.9},
		{0.8, 0.2},
	}
	result, err := Solve(costs)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, result)
}

func TestDefaultEpsilon(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, DefaultEpsilon[int]())
	assert.Equal(t, uint16(0), DefaultEpsilon[uint16]())
	assert.Equal(t, float32(1e-6), DefaultEpsilon[float32]())
	assert.Equal(t, 1e-9, DefaultEpsilon[float64]())
}

func TestSolveInvalidArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		costs [][]float64
	}{
		{"nil", nil},
		{"ragged", [][]float64{{1, 2}, {3}}},
		{"nan", [][]float64{{1, math.NaN()}}},
		{"inf", [][]float64{{math.Inf(1), 1}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Solve(tt.costs)
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
		})
	}

	_, err := SolveWithEpsilon([][]float64{{1}}, -1)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestSolveEmpty(t *testing.T) {
	t.Parallel()

	result, err := Solve([][]float64{})
	require.NoError(t, err)
	assert.Empty(t, result)

	result, err = Solve([][]float64{{}, {}})
	require.NoError(t, err)
	assert.Equal(t, []int{-1, -1}, result)
}

func TestSolveDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	costs := [][]float64{{3, 1}, {2, 7}, {4, 4}}
	snapshot := [][]float64{{3, 1}, {2, 7}, {4, 4}}
	_, err := Solve(costs)
	require.NoError(t, err)
	assert.Equal(t, snapshot, costs)
}

// Package hungarian implements the Kuhn–Munkres (Hungarian) algorithm for
// optimal row-to-column assignment over a numeric cost matrix.
//
// Unlike a greedy nearest-neighbour pass, the solver always returns an
// assignment of minimum total cost. Rectangular matrices are supported:
// when there are more rows than columns the matrix is transposed internally
// and the surplus rows come back unassigned (-1).
package hungarian

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// ErrInvalidArgument is wrapped by every input validation error.
var ErrInvalidArgument = errors.New("hungarian: invalid cost matrix")

// Scalar is the set of numeric kinds a cost matrix may hold.
type Scalar interface {
	constraints.Integer | constraints.Float
}

const (
	float64Epsilon = 1e-9
	float32Epsilon = 1e-6
)

// DefaultEpsilon returns the zero tolerance used by Solve for T: exact zero
// for integer kinds, 1e-6 for float32 and 1e-9 for float64.
func DefaultEpsilon[T Scalar]() T {
	var one T = 1
	if one/2 == 0 {
		return 0
	}
	// float32 cannot represent 1+1e-9, float64 can.
	probe, eps32, eps64 := 1+float64Epsilon, float64(float32Epsilon), float64(float64Epsilon)
	if T(probe) == one {
		return T(eps32)
	}
	return T(eps64)
}

// Solve returns assignment[i] = column assigned to row i, or -1 when row i is
// left unassigned (only possible when rows outnumber columns).
func Solve[T Scalar](costs [][]T) ([]int, error) {
	return SolveWithEpsilon(costs, DefaultEpsilon[T]())
}

// SolveWithEpsilon is Solve with an explicit zero tolerance: a reduced cost v
// is treated as zero when |v| <= eps.
func SolveWithEpsilon[T Scalar](costs [][]T, eps T) ([]int, error) {
	if costs == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrInvalidArgument)
	}
	if eps < 0 {
		return nil, fmt.Errorf("%w: negative epsilon", ErrInvalidArgument)
	}
	rows := len(costs)
	if rows == 0 {
		return []int{}, nil
	}
	cols := len(costs[0])
	for i, row := range costs {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidArgument, i, len(row), cols)
		}
		for j, v := range row {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: non-finite cost at (%d,%d)", ErrInvalidArgument, i, j)
			}
		}
	}

	result := make([]int, rows)
	if cols == 0 {
		for i := range result {
			result[i] = -1
		}
		return result, nil
	}

	s := newSolver(costs, eps)
	s.run()

	if s.transposed {
		for i := range result {
			result[i] = -1
		}
		for i := 0; i < s.h; i++ {
			if j := s.starInRow(i); j >= 0 {
				result[j] = i
			}
		}
		return result, nil
	}
	for i := 0; i < s.h; i++ {
		result[i] = s.starInRow(i)
	}
	return result, nil
}

// TotalCost sums costs[i][assignment[i]] over assigned rows.
func TotalCost[T Scalar](costs [][]T, assignment []int) T {
	var total T
	for i, j := range assignment {
		if j >= 0 {
			total += costs[i][j]
		}
	}
	return total
}

type mark uint8

const (
	unmarked mark = iota
	starred
	primed
)

// solver holds the working state. The working matrix always has h <= w.
type solver[T Scalar] struct {
	c          [][]T
	h, w       int
	eps        T
	transposed bool

	marks      [][]mark
	rowCovered []bool
	colCovered []bool
	path       [][2]int
}

func newSolver[T Scalar](costs [][]T, eps T) *solver[T] {
	rows, cols := len(costs), len(costs[0])
	s := &solver[T]{eps: eps}

	if rows > cols {
		s.transposed = true
		s.h, s.w = cols, rows
		s.c = make([][]T, cols)
		for j := 0; j < cols; j++ {
			s.c[j] = make([]T, rows)
			for i := 0; i < rows; i++ {
				s.c[j][i] = costs[i][j]
			}
		}
	} else {
		s.h, s.w = rows, cols
		s.c = make([][]T, rows)
		for i := range costs {
			s.c[i] = append([]T(nil), costs[i]...)
		}
	}

	s.marks = make([][]mark, s.h)
	for i := range s.marks {
		s.marks[i] = make([]mark, s.w)
	}
	s.rowCovered = make([]bool, s.h)
	s.colCovered = make([]bool, s.w)
	s.path = make([][2]int, 0, 2*s.h+1)
	return s
}

func (s *solver[T]) isZero(v T) bool {
	return v <= s.eps && v >= -s.eps
}

func (s *solver[T]) run() {
	s.reduceRows()
	s.starGreedy()

	for {
		if s.coverStarredColumns() == s.h {
			return
		}
		s.primeAndAugment()
	}
}

// reduceRows subtracts each row's minimum from the row.
func (s *solver[T]) reduceRows() {
	for i := 0; i < s.h; i++ {
		minV := s.c[i][0]
		for _, v := range s.c[i][1:] {
			if v < minV {
				minV = v
			}
		}
		for j := range s.c[i] {
			s.c[i][j] -= minV
		}
	}
}

// starGreedy stars zeros with no other star in their row or column.
func (s *solver[T]) starGreedy() {
	for i := 0; i < s.h; i++ {
		for j := 0; j < s.w; j++ {
			if s.isZero(s.c[i][j]) && !s.rowCovered[i] && !s.colCovered[j] {
				s.marks[i][j] = starred
				s.rowCovered[i] = true
				s.colCovered[j] = true
			}
		}
	}
	s.clearCovers()
}

func (s *solver[T]) coverStarredColumns() int {
	covered := 0
	for j := 0; j < s.w; j++ {
		if s.colCovered[j] {
			covered++
			continue
		}
		for i := 0; i < s.h; i++ {
			if s.marks[i][j] == starred {
				s.colCovered[j] = true
				covered++
				break
			}
		}
	}
	return covered
}

// primeAndAugment primes uncovered zeros until one has no star in its row,
// then flips stars along the alternating path that starts there. When no
// uncovered zero exists the duals are adjusted to create one.
func (s *solver[T]) primeAndAugment() {
	for {
		r, c, ok := s.findUncoveredZero()
		if !ok {
			s.adjustDuals()
			continue
		}
		s.marks[r][c] = primed

		if sc := s.starInRow(r); sc >= 0 {
			s.rowCovered[r] = true
			s.colCovered[sc] = false
			continue
		}

		s.augment(r, c)
		s.clearCovers()
		s.erasePrimes()
		return
	}
}

func (s *solver[T]) findUncoveredZero() (int, int, bool) {
	for i := 0; i < s.h; i++ {
		if s.rowCovered[i] {
			continue
		}
		for j := 0; j < s.w; j++ {
			if !s.colCovered[j] && s.isZero(s.c[i][j]) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

// adjustDuals adds the smallest uncovered value to covered rows and subtracts
// it from uncovered columns.
func (s *solver[T]) adjustDuals() {
	var minV T
	found := false
	for i := 0; i < s.h; i++ {
		if s.rowCovered[i] {
			continue
		}
		for j := 0; j < s.w; j++ {
			if s.colCovered[j] {
				continue
			}
			if v := s.c[i][j]; !found || v < minV {
				minV = v
				found = true
			}
		}
	}

	for i := 0; i < s.h; i++ {
		for j := 0; j < s.w; j++ {
			if s.rowCovered[i] {
				s.c[i][j] += minV
			}
			if !s.colCovered[j] {
				s.c[i][j] -= minV
			}
		}
	}
}

func (s *solver[T]) augment(r, c int) {
	s.path = append(s.path[:0], [2]int{r, c})
	for {
		col := s.path[len(s.path)-1][1]
		sr := s.starInCol(col)
		if sr < 0 {
			break
		}
		s.path = append(s.path, [2]int{sr, col})
		pc := s.primeInRow(sr)
		s.path = append(s.path, [2]int{sr, pc})
	}

	for _, p := range s.path {
		if s.marks[p[0]][p[1]] == starred {
			s.marks[p[0]][p[1]] = unmarked
		} else {
			s.marks[p[0]][p[1]] = starred
		}
	}
}

func (s *solver[T]) starInRow(r int) int {
	for j := 0; j < s.w; j++ {
		if s.marks[r][j] == starred {
			return j
		}
	}
	return -1
}

func (s *solver[T]) starInCol(c int) int {
	for i := 0; i < s.h; i++ {
		if s.marks[i][c] == starred {
			return i
		}
	}
	return -1
}

func (s *solver[T]) primeInRow(r int) int {
	for j := 0; j < s.w; j++ {
		if s.marks[r][j] == primed {
			return j
		}
	}
	return -1
}

func (s *solver[T]) clearCovers() {
	clear(s.rowCovered)
	clear(s.colCovered)
}

func (s *solver[T]) erasePrimes() {
	for i := range s.marks {
		for j := range s.marks[i] {
			if s.marks[i][j] == primed {
				s.marks[i][j] = unmarked
			}
		}
	}
}

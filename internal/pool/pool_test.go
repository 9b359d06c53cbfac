package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	hits  int
	owner atomic.Int64
}

func newCounterPool(t *testing.T, capacity int) *Pool[*counter] {
	t.Helper()
	p, err := New(capacity, func() *counter { return &counter{} }, func(c *counter) { c.hits = 0 })
	require.NoError(t, err)
	return p
}

func TestNewRejectsBadArguments(t *testing.T) {
	t.Parallel()

	_, err := New(0, func() int { return 0 }, nil)
	assert.True(t, errors.Is(err, ErrCapacity))
	_, err = New(-3, func() int { return 0 }, nil)
	assert.True(t, errors.Is(err, ErrCapacity))
	_, err = New[int](1, nil, nil)
	assert.Error(t, err)
}

func TestGetReleaseReuses(t *testing.T) {
	t.Parallel()

	p := newCounterPool(t, 2)
	assert.Equal(t, 2, p.Capacity())
	assert.Equal(t, 2, p.Available())

	h := p.Get()
	assert.True(t, h.Pooled())
	assert.Equal(t, 1, p.Available())
	h.Value().hits = 7

	h.Release()
	assert.Equal(t, 2, p.Available())
	assert.Zero(t, h.Value().hits, "release must reset the value")

	again := p.Get()
	assert.NotSame(t, h, again, "every Get is a new lease")
	assert.Same(t, h.Value(), again.Value(), "most recently released value is reused first")
	assert.True(t, h.Released())
	assert.False(t, again.Released())
}

func TestOverflow(t *testing.T) {
	t.Parallel()

	p := newCounterPool(t, 1)
	first := p.Get()
	extra := p.Get()

	assert.False(t, extra.Pooled())
	assert.Equal(t, int64(1), p.Overflow())
	assert.Equal(t, 0, p.Available())

	extra.Value().hits = 3
	extra.Release()
	assert.Equal(t, 0, p.Available(), "overflow values are not pooled")
	assert.Zero(t, extra.Value().hits)

	first.Release()
	assert.Equal(t, 1, p.Available())
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	t.Parallel()

	p := newCounterPool(t, 3)
	h := p.Get()
	h.Release()
	h.Release()
	p.Release(h)
	assert.Equal(t, 3, p.Available())

	other := newCounterPool(t, 1)
	other.Release(p.Get())
	assert.Equal(t, 1, other.Available(), "foreign handles are ignored")
	p.Release(nil)
}

func TestStaleReleaseKeepsLiveLease(t *testing.T) {
	t.Parallel()

	p := newCounterPool(t, 1)
	first := p.Get()
	first.Release()

	second := p.Get()
	second.Value().hits = 42
	first.Release()
	assert.Equal(t, 42, second.Value().hits, "stale release must not reset the live value")
	assert.Equal(t, 0, p.Available())

	third := p.Get()
	assert.False(t, third.Pooled(), "the live value must not be handed out twice")
	assert.NotSame(t, second.Value(), third.Value())
	assert.Equal(t, int64(1), p.Overflow())

	second.Release()
	assert.Equal(t, 1, p.Available())
}

func TestConcurrentGetIsExclusive(t *testing.T) {
	t.Parallel()

	const (
		workers = 16
		rounds  = 500
	)
	p := newCounterPool(t, 4)

	var wg sync.WaitGroup
	var conflicts atomic.Int64
	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				h := p.Get()
				if !h.Value().owner.CompareAndSwap(0, id) {
					conflicts.Add(1)
				}
				h.Value().owner.Store(0)
				h.Release()
			}
		}(int64(w))
	}
	wg.Wait()

	assert.Zero(t, conflicts.Load())
	assert.Equal(t, 4, p.Available())
}

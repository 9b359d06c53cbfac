package geom

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoxGeometry(t *testing.T) {
	t.Parallel()

	b := FromXYXY(2, 4, 12, 24)
	assert.Equal(t, Box{X: 2, Y: 4, W: 10, H: 20}, b)
	assert.Equal(t, 12.0, b.Right())
	assert.Equal(t, 24.0, b.Bottom())
	cx, cy := b.Center()
	assert.Equal(t, 7.0, cx)
	assert.Equal(t, 14.0, cy)
	assert.Equal(t, 200.0, b.Area())
	assert.False(t, b.Empty())
	assert.Equal(t, image.Rect(2, 4, 12, 24), b.Rect())
	assert.Equal(t, b, FromRect(b.Rect()))
}

func TestBoxIntersectEnclose(t *testing.T) {
	t.Parallel()

	a := Box{X: 0, Y: 0, W: 10, H: 10}
	b := Box{X: 5, Y: 5, W: 10, H: 10}

	assert.Equal(t, Box{X: 5, Y: 5, W: 5, H: 5}, a.Intersect(b))
	assert.Equal(t, Box{X: 0, Y: 0, W: 15, H: 15}, a.Enclose(b))
	assert.Equal(t, Box{}, a.Intersect(Box{X: 50, Y: 50, W: 1, H: 1}))
}

func TestBoxEmptyAndFinite(t *testing.T) {
	t.Parallel()

	assert.True(t, Box{W: 0, H: 5}.Empty())
	assert.True(t, Box{W: -1, H: 5}.Empty())
	assert.Equal(t, 0.0, Box{W: -1, H: 5}.Area())

	assert.True(t, Box{X: 1, Y: 1, W: 1, H: 1}.Finite())
	assert.False(t, Box{X: math.NaN(), W: 1, H: 1}.Finite())
	assert.False(t, Box{Y: math.Inf(-1), W: 1, H: 1}.Finite())
}

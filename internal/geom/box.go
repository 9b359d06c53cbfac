// Package geom holds the box type shared by the tracking layers and the
// distance functions used to build association costs.
package geom

import (
	"image"
	"math"
)

// Box is an axis-aligned rectangle in image coordinates: (X, Y) is the
// top-left corner, W and H are the extents in pixels.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FromXYXY builds a Box from corner coordinates.
func FromXYXY(x1, y1, x2, y2 float64) Box {
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// FromRect converts an integer image rectangle.
func FromRect(r image.Rectangle) Box {
	return Box{X: float64(r.Min.X), Y: float64(r.Min.Y), W: float64(r.Dx()), H: float64(r.Dy())}
}

// Right returns the x coordinate of the right edge.
func (b Box) Right() float64 { return b.X + b.W }

// Bottom returns the y coordinate of the bottom edge.
func (b Box) Bottom() float64 { return b.Y + b.H }

// Center returns the box centre.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns W*H, or 0 for an empty box.
func (b Box) Area() float64 {
	if b.Empty() {
		return 0
	}
	return b.W * b.H
}

// Empty reports whether the box encloses no area.
func (b Box) Empty() bool {
	return b.W <= 0 || b.H <= 0
}

// Finite reports whether every component is a finite number.
func (b Box) Finite() bool {
	for _, v := range [4]float64{b.X, b.Y, b.W, b.H} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Intersect returns the overlap of b and o. The zero Box is returned when
// they do not overlap.
func (b Box) Intersect(o Box) Box {
	x1 := math.Max(b.X, o.X)
	y1 := math.Max(b.Y, o.Y)
	x2 := math.Min(b.Right(), o.Right())
	y2 := math.Min(b.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Box{}
	}
	return FromXYXY(x1, y1, x2, y2)
}

// Enclose returns the smallest box containing both b and o.
func (b Box) Enclose(o Box) Box {
	return FromXYXY(
		math.Min(b.X, o.X),
		math.Min(b.Y, o.Y),
		math.Max(b.Right(), o.Right()),
		math.Max(b.Bottom(), o.Bottom()),
	)
}

// Rect rounds the box to an integer image rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X)),
		int(math.Round(b.Y)),
		int(math.Round(b.Right())),
		int(math.Round(b.Bottom())),
	)
}

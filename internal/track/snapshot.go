package track

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
)

// Snapshot is the reported view of a confirmed track.
type Snapshot struct {
	ID      uint32            `json:"id"`
	Color   color.NRGBA       `json:"-"`
	Class   detect.ObjectType `json:"class"`
	Box     geom.Box          `json:"box"`
	History []geom.Box        `json:"history"`
}

// ColorHex returns the display color as "#rrggbb".
func (s Snapshot) ColorHex() string { return Hex(s.Color) }

// goldenRatioConjugate spreads consecutive ids around the hue circle.
const goldenRatioConjugate = 0.618033988749895

// Color returns the display color for id. Equal ids always map to the same
// color and consecutive ids land far apart in hue.
func Color(id uint32) color.NRGBA {
	_, frac := math.Modf(float64(id) * goldenRatioConjugate)
	c := colorful.Hsv(frac*360, 0.65, 0.95).Clamped()
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

// Hex formats c as "#rrggbb".
func Hex(c color.Color) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

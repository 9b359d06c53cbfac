package track

import "github.com/banshee-data/motrack/internal/linalg"

// Appearance keeps the latest descriptor and a ring of recent ones. The
// summary is the unit-length sum of the ring and is recomputed on every Add.
type Appearance struct {
	latest  linalg.Vector
	ring    []linalg.Vector
	next    int
	filled  int
	summary linalg.Vector
}

// NewAppearance seeds a ring of the given size with first. A size below one
// is treated as one.
func NewAppearance(first linalg.Vector, size int) *Appearance {
	a := &Appearance{ring: make([]linalg.Vector, max(size, 1))}
	a.Add(first)
	return a
}

// Add records a descriptor, evicting the oldest once the ring is full.
func (a *Appearance) Add(v linalg.Vector) {
	a.latest = v.Clone()
	a.ring[a.next] = a.latest
	a.next = (a.next + 1) % len(a.ring)
	if a.filled < len(a.ring) {
		a.filled++
	}

	sum := linalg.NewVector(len(v))
	for i := 0; i < a.filled; i++ {
		if len(a.ring[i]) != len(sum) {
			continue
		}
		sum.AddInPlace(a.ring[i])
	}
	a.summary = sum.Normalize()
}

// Latest returns the most recent descriptor.
func (a *Appearance) Latest() linalg.Vector { return a.latest.Clone() }

// Summary returns the normalised running summary.
func (a *Appearance) Summary() linalg.Vector { return a.summary.Clone() }

// Len returns how many descriptors the summary is built from.
func (a *Appearance) Len() int { return a.filled }

// Size returns the ring capacity.
func (a *Appearance) Size() int { return len(a.ring) }

// Package track holds the identity and geometric history of one followed
// object. A Track carries optional slots selected by its Capability: a
// predicted box for motion-based matching and an appearance summary for
// re-identification.
package track

import (
	"errors"
	"fmt"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
)

// ErrPinned is returned when changing the id of a pinned track.
var ErrPinned = errors.New("track: id is pinned")

// Capability selects which optional slots a Track carries.
type Capability uint8

const (
	MotionOnly Capability = iota
	MotionAppearance
	AppearanceOnly
)

// HasMotion reports whether tracks of this kind carry a predicted box.
func (c Capability) HasMotion() bool { return c == MotionOnly || c == MotionAppearance }

// HasAppearance reports whether tracks of this kind carry an appearance.
func (c Capability) HasAppearance() bool { return c == MotionAppearance || c == AppearanceOnly }

func (c Capability) String() string {
	switch c {
	case MotionOnly:
		return "motion"
	case MotionAppearance:
		return "motion+appearance"
	case AppearanceOnly:
		return "appearance"
	default:
		return fmt.Sprintf("Capability(%d)", uint8(c))
	}
}

// Track is one object's identity and box history. It is owned by a single
// tracker and is not safe for concurrent use.
type Track struct {
	id     uint32
	pinned bool

	class      detect.ObjectType
	capability Capability
	history    []geom.Box

	predicted    geom.Box
	hasPredicted bool
	appearance   *Appearance
}

// New starts a track at box. For capabilities with an appearance slot,
// descriptor seeds the summary and ringSize bounds the number of recent
// descriptors it is built from.
func New(box geom.Box, class detect.ObjectType, capability Capability, descriptor linalg.Vector, ringSize int) (*Track, error) {
	t := &Track{
		class:      class,
		capability: capability,
		history:    []geom.Box{box},
	}
	if capability.HasAppearance() {
		if len(descriptor) == 0 {
			return nil, fmt.Errorf("track: %s track needs an appearance descriptor", capability)
		}
		t.appearance = NewAppearance(descriptor, ringSize)
	}
	return t, nil
}

// ID returns the track id. Zero means no id has been assigned yet.
func (t *Track) ID() uint32 { return t.id }

// SetID assigns the id. It fails once the track is pinned.
func (t *Track) SetID(id uint32) error {
	if t.pinned {
		return fmt.Errorf("%w: track %d", ErrPinned, t.id)
	}
	t.id = id
	return nil
}

// Pin freezes the id.
func (t *Track) Pin() { t.pinned = true }

// Pinned reports whether the id is frozen.
func (t *Track) Pinned() bool { return t.pinned }

// Class returns the detector class the track was born with.
func (t *Track) Class() detect.ObjectType { return t.class }

// Capability returns the slot layout of the track.
func (t *Track) Capability() Capability { return t.capability }

// Box returns the most recently registered box.
func (t *Track) Box() geom.Box { return t.history[len(t.history)-1] }

// History returns a copy of every registered box, oldest first.
func (t *Track) History() []geom.Box {
	return append([]geom.Box(nil), t.history...)
}

// Len returns the number of registered boxes.
func (t *Track) Len() int { return len(t.history) }

// RegisterTracked appends box to the history. descriptor is folded into the
// appearance summary when the track has one; it is ignored otherwise.
func (t *Track) RegisterTracked(box geom.Box, descriptor linalg.Vector) {
	t.history = append(t.history, box)
	if t.appearance != nil && len(descriptor) > 0 {
		t.appearance.Add(descriptor)
	}
}

// SetPredicted stores the motion model's box for this frame. It is a no-op
// for appearance-only tracks.
func (t *Track) SetPredicted(box geom.Box) {
	if !t.capability.HasMotion() {
		return
	}
	t.predicted = box
	t.hasPredicted = true
}

// Predicted returns this frame's predicted box, falling back to the current
// box before the first prediction.
func (t *Track) Predicted() geom.Box {
	if !t.hasPredicted {
		return t.Box()
	}
	return t.predicted
}

// Appearance returns the appearance slot, or nil for motion-only tracks.
func (t *Track) Appearance() *Appearance { return t.appearance }

// Snapshot returns an immutable copy for reporting.
func (t *Track) Snapshot() Snapshot {
	return Snapshot{
		ID:      t.id,
		Color:   Color(t.id),
		Class:   t.class,
		Box:     t.Box(),
		History: t.History(),
	}
}

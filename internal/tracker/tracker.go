// Package tracker binds a track to its motion model and keeps the
// hit/miss counters that drive the track lifecycle.
//
// A Tracker is reusable: Reset clears it so it can be handed back to a pool
// and pinned to a new track later. Appearance-only trackers skip the Kalman
// filter entirely and only count.
package tracker

import (
	"fmt"

	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/kalman"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/track"
)

// Tracker owns one Track. It is not safe for concurrent use.
type Tracker struct {
	motion bool
	model  MotionModel
	filter *kalman.Filter
	p0     linalg.Matrix

	id    uint32
	track *track.Track

	misses    int
	hitStreak int
	lifetime  int
}

// New returns an unpinned tracker. Motion trackers carry a Kalman filter
// built from model.
func New(motion bool, model MotionModel) (*Tracker, error) {
	t := &Tracker{motion: motion, model: model.withDefaults()}
	if !motion {
		return t, nil
	}
	if err := t.model.Validate(); err != nil {
		return nil, fmt.Errorf("motion model: %w", err)
	}
	f, err := t.model.newFilter()
	if err != nil {
		return nil, err
	}
	t.filter = f
	t.p0 = f.Covariance()
	return t, nil
}

// Pin binds tr to the tracker under id. The track's id is frozen, the
// counters restart and the birth observation counts as the first hit. For
// motion trackers the filter is seeded from the track's current box with zero
// velocity.
func (t *Tracker) Pin(tr *track.Track, id uint32) error {
	if err := tr.SetID(id); err != nil {
		return err
	}
	tr.Pin()

	t.id = id
	t.track = tr
	t.misses = 0
	t.hitStreak = 1
	t.lifetime = 0

	if !t.motion {
		return nil
	}
	x := toMeasurement(tr.Box()).Append(0, 0, 0)
	if err := t.filter.SetState(x); err != nil {
		return err
	}
	return t.filter.SetCovariance(t.p0)
}

// Predict advances the tracker one frame and returns the predicted box.
// ok is false when the prediction has diverged: a non-finite box or one
// with a negative corner coordinate. Non-motion trackers return the current
// box.
func (t *Tracker) Predict() (box geom.Box, ok bool) {
	if t.misses > 0 {
		t.hitStreak = 0
	}
	t.misses++

	if !t.motion {
		return t.track.Box(), true
	}

	x := t.filter.State()
	if x[idxArea]+x[idxVArea] <= 0 {
		x[idxVArea] = 0
		// Length always matches; SetState cannot fail here.
		_ = t.filter.SetState(x)
	}
	t.filter.Predict()

	box = toBox(t.filter.State())
	if !box.Finite() || box.X < 0 || box.Y < 0 {
		return box, false
	}
	t.track.SetPredicted(box)
	return box, true
}

// Update records a hit with the observed box. The counters always advance;
// a filter error leaves the motion state as it was for this frame.
func (t *Tracker) Update(box geom.Box) error {
	t.misses = 0
	t.hitStreak++
	t.lifetime++

	if !t.motion {
		return nil
	}
	if err := t.filter.Update(toMeasurement(box)); err != nil {
		return fmt.Errorf("tracker %d: %w", t.id, err)
	}
	return nil
}

// Reset clears the tracker so it can be pinned again.
func (t *Tracker) Reset() {
	t.id = 0
	t.track = nil
	t.misses = 0
	t.hitStreak = 0
	t.lifetime = 0
}

// ID returns the pinned id, or 0 when unpinned.
func (t *Tracker) ID() uint32 { return t.id }

// Track returns the pinned track.
func (t *Tracker) Track() *track.Track { return t.track }

// Motion reports whether the tracker runs a Kalman filter.
func (t *Tracker) Motion() bool { return t.motion }

// Misses returns consecutive frames without a match.
func (t *Tracker) Misses() int { return t.misses }

// HitStreak returns consecutive matched frames.
func (t *Tracker) HitStreak() int { return t.hitStreak }

// Lifetime returns the number of successful updates since pinning.
func (t *Tracker) Lifetime() int { return t.lifetime }

// State returns the filter state, or nil for non-motion trackers.
func (t *Tracker) State() linalg.Vector {
	if !t.motion {
		return nil
	}
	return t.filter.State()
}

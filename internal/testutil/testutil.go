// Package testutil provides shared test utilities and fixtures.
//
// The scripted detector and embedder stand in for real inference so the
// tracking pipeline can be driven frame by frame from plain Go values.
package testutil

import (
	"context"
	"image"
	"math"
	"sync"
	"testing"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertBoxNear fails the test if any component of got differs from want by
// more than tol.
func AssertBoxNear(t testing.TB, got, want geom.Box, tol float64) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol ||
		math.Abs(got.W-want.W) > tol || math.Abs(got.H-want.H) > tol {
		t.Errorf("box = %+v, want %+v (tol %g)", got, want, tol)
	}
}

// BlankFrame returns a small image to pass where a frame is required.
func BlankFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

// Person returns a full-confidence person detection.
func Person(x, y, w, h float64) detect.Detection {
	return detect.Detection{Type: detect.Person, Box: geom.Box{X: x, Y: y, W: w, H: h}, Confidence: 1}
}

// Repeat returns n frames each holding dets.
func Repeat(n int, dets ...detect.Detection) [][]detect.Detection {
	frames := make([][]detect.Detection, n)
	for i := range frames {
		frames[i] = append([]detect.Detection(nil), dets...)
	}
	return frames
}

// ScriptedDetector replays one slice of detections per Detect call. Calls
// past the end of the script return no detections.
type ScriptedDetector struct {
	// Err, when set, is returned by every Detect call.
	Err error
	// CloseErr is returned by Close.
	CloseErr error

	mu     sync.Mutex
	frames [][]detect.Detection
	calls  int
	closed bool
}

// NewScriptedDetector builds a detector from per-frame detections.
func NewScriptedDetector(frames ...[]detect.Detection) *ScriptedDetector {
	return &ScriptedDetector{frames: frames}
}

// Push appends frames to the script.
func (d *ScriptedDetector) Push(frames ...[]detect.Detection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frames...)
}

// Detect returns the next scripted frame after applying the filters.
func (d *ScriptedDetector) Detect(ctx context.Context, _ image.Image, confidence float32, types []detect.ObjectType) ([]detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var frame []detect.Detection
	if d.calls < len(d.frames) {
		frame = d.frames[d.calls]
	}
	d.calls++
	return detect.Filter(frame, confidence, types), nil
}

// Close marks the detector closed.
func (d *ScriptedDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.CloseErr
}

// Calls returns how many times Detect ran.
func (d *ScriptedDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Closed reports whether Close was called.
func (d *ScriptedDetector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// ScriptedEmbedder maps each box to a descriptor with Fn.
type ScriptedEmbedder struct {
	Fn       func(geom.Box) linalg.Vector
	Err      error
	CloseErr error
	// Drop, when positive, removes that many descriptors from every result.
	Drop int

	mu     sync.Mutex
	calls  int
	closed bool
}

// Embed returns Fn(box) for every box.
func (e *ScriptedEmbedder) Embed(ctx context.Context, _ image.Image, boxes []geom.Box) ([]linalg.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([]linalg.Vector, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, e.Fn(b))
	}
	if e.Drop > 0 {
		out = out[:max(0, len(out)-e.Drop)]
	}
	return out, nil
}

// Close marks the embedder closed.
func (e *ScriptedEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return e.CloseErr
}

// Calls returns how many times Embed ran.
func (e *ScriptedEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Closed reports whether Close was called.
func (e *ScriptedEmbedder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// HueEmbedder returns an embedder whose descriptor depends only on the box's
// horizontal position, bucketed into bins of the given width. Boxes in the
// same bin look identical; boxes in different bins are orthogonal.
func HueEmbedder(binWidth float64, dims int) *ScriptedEmbedder {
	return &ScriptedEmbedder{Fn: func(b geom.Box) linalg.Vector {
		v := linalg.NewVector(dims)
		bin := int(math.Floor(b.X/binWidth)) % dims
		if bin < 0 {
			bin += dims
		}
		v[bin] = 1
		return v
	}}
}

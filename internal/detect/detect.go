// Package detect declares the external inference collaborators the tracker
// depends on: a Detector that finds boxes in a frame and an Embedder that turns
// boxes into appearance descriptors. Neither is implemented here.
package detect

import (
	"context"
	"image"
	"slices"

	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
)

// Detection is one object found in a frame.
type Detection struct {
	Type       ObjectType `json:"type"`
	Box        geom.Box   `json:"box"`
	Confidence float32    `json:"confidence"`
}

// Detector finds objects in an image. Only detections with confidence at or
// above the threshold and, when types is non-empty, of one of the listed
// classes are returned. Result order only needs to be consistent within one
// call.
type Detector interface {
	Detect(ctx context.Context, img image.Image, confidence float32, types []ObjectType) ([]Detection, error)
	Close() error
}

// Embedder computes one appearance descriptor per box, in box order.
type Embedder interface {
	Embed(ctx context.Context, img image.Image, boxes []geom.Box) ([]linalg.Vector, error)
	Close() error
}

// Filter returns the detections passing the confidence threshold and type
// filter. The input slice is not modified.
func Filter(dets []Detection, confidence float32, types []ObjectType) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < confidence {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, d.Type) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Boxes extracts the boxes of dets in order.
func Boxes(dets []Detection) []geom.Box {
	out := make([]geom.Box, len(dets))
	for i, d := range dets {
		out[i] = d.Box
	}
	return out
}

package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/linalg"
)

// Record is one line of a replay log: the detections of one frame and,
// optionally, one descriptor per detection in the same order.
type Record struct {
	Frame       int                `json:"frame"`
	Detections  []detect.Detection `json:"detections"`
	Descriptors []linalg.Vector    `json:"descriptors,omitempty"`
}

// Replay serves recorded inference results. Each Detect call advances to the
// next record; Embed answers for the record most recently returned by
// Detect. Replay ignores the image argument.
type Replay struct {
	mu      sync.Mutex
	records []Record
	next    int
	current *Record
	closed  bool
}

// Ensure Replay satisfies both collaborator interfaces.
var (
	_ detect.Detector = (*Replay)(nil)
	_ detect.Embedder = (*Replay)(nil)
)

// OpenReplay reads a JSON-lines replay log from path.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer f.Close()
	r, err := ReadReplay(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logf("loaded %d frames from %s", r.Len(), path)
	return r, nil
}

// ReadReplay decodes a stream of Records.
func ReadReplay(r io.Reader) (*Replay, error) {
	dec := json.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("record %d: %w", len(records)+1, err)
		}
		if rec.Descriptors != nil && len(rec.Descriptors) != len(rec.Detections) {
			return nil, fmt.Errorf("record %d: %d descriptors for %d detections",
				len(records)+1, len(rec.Descriptors), len(rec.Detections))
		}
		records = append(records, rec)
	}
	return &Replay{records: records}, nil
}

// WriteRecord appends rec to w as one JSON line.
func WriteRecord(w io.Writer, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int { return len(r.records) }

// Done reports whether every frame has been served.
func (r *Replay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next >= len(r.records)
}

// Detect returns the next recorded frame, filtered by confidence and types.
// Past the end it returns io.EOF.
func (r *Replay) Detect(ctx context.Context, _ image.Image, confidence float32, types []detect.ObjectType) ([]detect.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("replay: closed")
	}
	if r.next >= len(r.records) {
		r.current = nil
		return nil, io.EOF
	}
	r.current = &r.records[r.next]
	r.next++
	return detect.Filter(r.current.Detections, confidence, types), nil
}

// Embed returns the recorded descriptor of each box. Boxes must come from
// the current frame's detections; identical boxes take their descriptors in
// recorded order.
func (r *Replay) Embed(ctx context.Context, _ image.Image, boxes []geom.Box) ([]linalg.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, errors.New("replay: embed before detect")
	}
	rec := r.current
	if rec.Descriptors == nil {
		return nil, fmt.Errorf("replay: frame %d has no descriptors", rec.Frame)
	}
	out := make([]linalg.Vector, len(boxes))
	used := make([]bool, len(rec.Detections))
	for i, b := range boxes {
		j := indexOfBox(rec.Detections, b, used)
		if j < 0 {
			return nil, fmt.Errorf("replay: frame %d has no detection at %+v", rec.Frame, b)
		}
		used[j] = true
		out[i] = rec.Descriptors[j].Clone()
	}
	return out, nil
}

func indexOfBox(dets []detect.Detection, b geom.Box, used []bool) int {
	for i, d := range dets {
		if !used[i] && d.Box == b {
			return i
		}
	}
	return -1
}

// Close stops the replay.
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/inference"
	"github.com/banshee-data/motrack/internal/linalg"
	"github.com/banshee-data/motrack/internal/testutil"
	"github.com/banshee-data/motrack/internal/trackstore"
)

// writeLog records a person walking right and a car that appears once.
func writeLog(t *testing.T, frames int) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 1; i <= frames; i++ {
		rec := inference.Record{
			Frame:       i,
			Detections:  []detect.Detection{testutil.Person(100+float64(i)*2, 50, 30, 80)},
			Descriptors: []linalg.Vector{{1, 0, 0}},
		}
		if i == 2 {
			car := detect.Detection{Type: detect.Car, Box: geom.Box{X: 400, Y: 300, W: 90, H: 40}, Confidence: 0.9}
			rec.Detections = append(rec.Detections, car)
			rec.Descriptors = append(rec.Descriptors, linalg.Vector{0, 1, 0})
		}
		require.NoError(t, inference.WriteRecord(&buf, rec))
	}
	path := filepath.Join(t.TempDir(), "detections.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func readLines(t *testing.T, out *bytes.Buffer) []frameLine {
	t.Helper()
	var lines []frameLine
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var l frameLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &l))
		lines = append(lines, l)
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestRunSortReplay(t *testing.T) {
	logPath := writeLog(t, 5)
	dbPath := filepath.Join(t.TempDir(), "tracks.db")

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-detections", logPath,
		"-strategy", "sort",
		"-db", dbPath,
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	lines := readLines(t, &out)
	require.Len(t, lines, 5)
	// Only people are tracked by default; the first frame never reports.
	assert.Empty(t, lines[0].Tracks)
	for _, l := range lines[1:] {
		require.Len(t, l.Tracks, 1, "frame %d", l.Frame)
		assert.Equal(t, uint32(1), l.Tracks[0].ID)
		assert.Equal(t, detect.Person, l.Tracks[0].Class)
		assert.Regexp(t, `^#[0-9a-f]{6}$`, l.Tracks[0].Color)
	}

	store, err := trackstore.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()
	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sort", sessions[0].Strategy)
	obs, err := store.TrackHistory(context.Background(), sessions[0].ID, 1)
	require.NoError(t, err)
	assert.Len(t, obs, 4)
}

func TestRunDeepSortWithTypesOverride(t *testing.T) {
	logPath := writeLog(t, 4)
	cfgPath := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"strategy":"deep_sort","deep_sort_min_streak":2}`), 0o600))

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-detections", logPath,
		"-config", cfgPath,
		"-types", "person,car",
		"-conf", "0.5",
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	lines := readLines(t, &out)
	require.Len(t, lines, 4)
	assert.Empty(t, lines[0].Tracks)
	// The car is born on frame 2 and never confirmed.
	for _, l := range lines[1:] {
		require.Len(t, l.Tracks, 1, "frame %d", l.Frame)
		assert.Equal(t, uint32(1), l.Tracks[0].ID)
	}
}

func TestRunRemoteInference(t *testing.T) {
	r, err := inference.OpenReplay(writeLog(t, 3))
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	inference.RegisterService(srv, inference.NewServer(r, r))
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	var out bytes.Buffer
	err = run(context.Background(), []string{
		"-inference", lis.Addr().String(),
		"-strategy", "deep",
		"-config", "../../config/tuning.defaults.json",
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	lines := readLines(t, &out)
	assert.Len(t, lines, 3)
}

func TestFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no source", nil},
		{"two sources", []string{"-detections", "a.jsonl", "-inference", "localhost:1"}},
		{"serve without log", []string{"-inference", "localhost:1", "-serve", ":0"}},
		{"unknown flag", []string{"-bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, &bytes.Buffer{})
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(options{strategy: "deep", confidence: 0.7, types: "car,truck"})
	require.NoError(t, err)
	assert.Equal(t, "deep", cfg.GetStrategy())
	assert.Equal(t, 0.7, cfg.GetConfidence())
	assert.Equal(t, []detect.ObjectType{detect.Car, detect.Truck}, cfg.GetDetectionTypes())

	_, err = loadConfig(options{strategy: "bytetrack", confidence: -1})
	assert.Error(t, err)
	_, err = loadConfig(options{types: "dragon", confidence: -1})
	assert.Error(t, err)
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-version"}, &out, &bytes.Buffer{}))
	assert.Equal(t, "mot-replay dev (unknown, built unknown)\n", out.String())
}

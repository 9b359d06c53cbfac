// Command mot-replay runs a tracking matcher over recorded or remote
// inference and prints the confirmed tracks of every frame as JSON lines.
//
// Usage:
//
//	go run ./cmd/mot-replay [flags]
//
// Flags:
//
//	-detections    JSON-lines replay log to track (see inference.Record)
//	-inference     address of a remote inference service, instead of -detections
//	-serve         serve -detections as an inference service on this address
//	-config        tuning config JSON (default: built-in defaults)
//	-strategy      sort, deep or deep_sort (overrides the config)
//	-conf          detection confidence threshold (overrides the config)
//	-types         comma-separated object types (overrides the config)
//	-db            SQLite file to record confirmed tracks in
//	-metrics-addr  serve Prometheus metrics on this address
//	-version       print the version and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/banshee-data/motrack/internal/config"
	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/inference"
	"github.com/banshee-data/motrack/internal/matcher"
	"github.com/banshee-data/motrack/internal/monitoring"
	"github.com/banshee-data/motrack/internal/trackstore"
	"github.com/banshee-data/motrack/internal/version"
)

// trackLine is one confirmed track in the output.
type trackLine struct {
	ID    uint32            `json:"id"`
	Class detect.ObjectType `json:"class"`
	Color string            `json:"color"`
	Box   geom.Box          `json:"box"`
}

// frameLine is one output line.
type frameLine struct {
	Frame  int         `json:"frame"`
	Tracks []trackLine `json:"tracks"`
}

type options struct {
	detections  string
	remote      string
	serve       string
	configPath  string
	strategy    string
	confidence  float64
	types       string
	dbPath      string
	metricsAddr string
	notes       string
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("mot-replay", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.detections, "detections", "", "JSON-lines replay log to track")
	fs.StringVar(&o.remote, "inference", "", "address of a remote inference service")
	fs.StringVar(&o.serve, "serve", "", "serve -detections as an inference service on this address")
	fs.StringVar(&o.configPath, "config", "", "tuning config JSON")
	fs.StringVar(&o.strategy, "strategy", "", "sort, deep or deep_sort (overrides the config)")
	fs.Float64Var(&o.confidence, "conf", -1, "detection confidence threshold (overrides the config)")
	fs.StringVar(&o.types, "types", "", "comma-separated object types (overrides the config)")
	fs.StringVar(&o.dbPath, "db", "", "SQLite file to record confirmed tracks in")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&o.notes, "notes", "", "free-form notes stored with the session")
	fs.BoolVar(&o.version, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.version {
		return o, nil
	}

	switch {
	case o.detections == "" && o.remote == "":
		return o, errors.New("one of -detections or -inference is required")
	case o.detections != "" && o.remote != "":
		return o, errors.New("-detections and -inference are mutually exclusive")
	case o.serve != "" && o.detections == "":
		return o, errors.New("-serve needs -detections")
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("mot-replay: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.version {
		_, err := fmt.Fprintf(stdout, "mot-replay %s\n", version.String())
		return err
	}
	log.Printf("mot-replay %s", version.String())

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	if o.serve != "" {
		return serve(ctx, o)
	}

	var (
		det detect.Detector
		emb detect.Embedder
	)
	if o.remote != "" {
		c, err := inference.Dial(o.remote)
		if err != nil {
			return err
		}
		det, emb = c, c
	} else {
		r, err := inference.OpenReplay(o.detections)
		if err != nil {
			return err
		}
		det, emb = r, r
	}
	if cfg.GetStrategy() == config.StrategySort {
		emb = nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics, err := monitoring.NewMatcherMetrics(reg, cfg.GetStrategy())
	if err != nil {
		return err
	}
	if o.metricsAddr != "" {
		shutdown, err := serveMetrics(o.metricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	m, err := matcher.FromTuning(cfg, det, emb, matcher.WithMetrics(metrics))
	if err != nil {
		_ = det.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Printf("close matcher: %v", err)
		}
	}()

	var store *trackstore.Store
	if o.dbPath != "" {
		if store, err = trackstore.Open(o.dbPath); err != nil {
			return err
		}
		defer store.Close()
		if err := store.StartSession(ctx, m.SessionID(), cfg.GetStrategy(), o.notes); err != nil {
			return err
		}
	}

	return track(ctx, m, cfg, store, stdout)
}

func loadConfig(o options) (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.strategy != "" {
		cfg.Strategy = &o.strategy
	}
	if o.confidence >= 0 {
		cfg.Confidence = &o.confidence
	}
	if o.types != "" {
		types, err := detect.ParseObjectTypes(o.types)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = t.String()
		}
		cfg.DetectionTypes = &names
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// track runs the matcher until the source is exhausted or ctx is done.
func track(ctx context.Context, m *matcher.Matcher, cfg *config.TuningConfig, store *trackstore.Store, stdout io.Writer) error {
	// Replay logs carry no pixels; remote services receive a placeholder.
	frame := image.NewGray(image.Rect(0, 0, 1, 1))
	confidence := float32(cfg.GetConfidence())
	types := cfg.GetDetectionTypes()
	timeout := cfg.GetInferenceTimeout()
	enc := json.NewEncoder(stdout)

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		snaps, err := m.Run(runCtx, frame, confidence, types...)
		cancel()
		if errors.Is(err, io.EOF) {
			log.Printf("replay finished after %d frames", n-1)
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}

		line := frameLine{Frame: n, Tracks: make([]trackLine, len(snaps))}
		for i, s := range snaps {
			line.Tracks[i] = trackLine{ID: s.ID, Class: s.Class, Color: s.ColorHex(), Box: s.Box}
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
		if store != nil {
			if err := store.RecordFrame(ctx, m.SessionID(), n, snaps); err != nil {
				return err
			}
		}
	}
}

// serve exposes the replay log as an inference service until ctx is done.
func serve(ctx context.Context, o options) error {
	r, err := inference.OpenReplay(o.detections)
	if err != nil {
		return err
	}
	defer r.Close()

	lis, err := net.Listen("tcp", o.serve)
	if err != nil {
		return fmt.Errorf("listen %s: %w", o.serve, err)
	}
	srv := grpc.NewServer()
	inference.RegisterService(srv, inference.NewServer(r, r))

	go func() {
		<-ctx.Done()
		log.Printf("Shutting down...")
		srv.GracefulStop()
	}()
	log.Printf("serving %d frames on %s", r.Len(), lis.Addr())
	return srv.Serve(lis)
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()
	log.Printf("metrics on http://%s/metrics", lis.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

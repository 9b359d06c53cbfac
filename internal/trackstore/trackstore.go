// Package trackstore records confirmed tracks per frame in SQLite.
//
// The schema is managed by golang-migrate from the embedded migrations
// directory; Open always brings the database to the latest version.
package trackstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/motrack/internal/detect"
	"github.com/banshee-data/motrack/internal/geom"
	"github.com/banshee-data/motrack/internal/monitoring"
	"github.com/banshee-data/motrack/internal/timeutil"
	"github.com/banshee-data/motrack/internal/track"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var logf = monitoring.Component("trackstore")

// ErrUnknownSession is returned when recording into a session that was never
// started.
var ErrUnknownSession = errors.New("trackstore: unknown session")

// Session describes one matcher run.
type Session struct {
	ID       uuid.UUID
	Strategy string
	Started  time.Time
	Notes    string
}

// Observation is one confirmed track in one frame.
type Observation struct {
	Frame   int
	TrackID uint32
	Class   detect.ObjectType
	Box     geom.Box
	Color   string
}

// Store wraps the SQLite database.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option customises a Store.
type Option func(*Store)

// WithClock sets the clock that stamps session start times.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens or creates the database at path and migrates it to the latest
// schema. Use ":memory:" for a throwaway store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection keeps the pragmas and an in-memory database alive.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// MigrateUp runs all pending migrations. Already being at the latest
// version is not an error.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the schema version and dirty flag. A database with
// no migrations applied reports 0, false.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

// StartSession registers a matcher run.
func (s *Store) StartSession(ctx context.Context, id uuid.UUID, strategy, notes string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, strategy, started_unix, notes) VALUES (?, ?, ?, ?)`,
		id.String(), strategy, s.clock.Now().Unix(), notes)
	if err != nil {
		return fmt.Errorf("failed to start session %s: %w", id, err)
	}
	logf("session %s started (%s)", id, strategy)
	return nil
}

// Sessions lists recorded sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, strategy, started_unix, notes FROM sessions ORDER BY started_unix, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			id      string
			started int64
			sess    Session
		)
		if err := rows.Scan(&id, &sess.Strategy, &started, &sess.Notes); err != nil {
			return nil, err
		}
		if sess.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("session %q: %w", id, err)
		}
		sess.Started = time.Unix(started, 0)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RecordFrame stores the confirmed tracks of one frame in a single
// transaction. An empty frame writes nothing.
func (s *Store) RecordFrame(ctx context.Context, session uuid.UUID, frame int, tracks []track.Snapshot) error {
	if len(tracks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var known int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, session.String()).Scan(&known); err != nil {
		return err
	}
	if known == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO track_observations (session_id, frame, track_id, class, x, y, w, h, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range tracks {
		if _, err := stmt.ExecContext(ctx, session.String(), frame, int64(t.ID), t.Class.String(),
			t.Box.X, t.Box.Y, t.Box.W, t.Box.H, t.ColorHex()); err != nil {
			return fmt.Errorf("failed to record track %d in frame %d: %w", t.ID, frame, err)
		}
	}
	return tx.Commit()
}

// TrackHistory returns every recorded observation of a track, by frame.
func (s *Store) TrackHistory(ctx context.Context, session uuid.UUID, trackID uint32) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, track_id, class, x, y, w, h, color
		FROM track_observations
		WHERE session_id = ? AND track_id = ?
		ORDER BY frame`, session.String(), int64(trackID))
	if err != nil {
		return nil, fmt.Errorf("failed to query track %d: %w", trackID, err)
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			o     Observation
			id    int64
			class string
		)
		if err := rows.Scan(&o.Frame, &id, &class, &o.Box.X, &o.Box.Y, &o.Box.W, &o.Box.H, &o.Color); err != nil {
			return nil, err
		}
		o.TrackID = uint32(id)
		if o.Class, err = detect.ParseObjectType(class); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// FrameCount returns the number of frames with at least one recorded track.
func (s *Store) FrameCount(ctx context.Context, session uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT frame) FROM track_observations WHERE session_id = ?`, session.String()).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Package store records finished exploration runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gwillem/mazebot/pkg/nav"
)

// DefaultPath is the database file used by the CLI.
const DefaultPath = "mazebot.db"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one recorded exploration.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Outcome       nav.Outcome
	Path          string
	Intersections int
	Ticks         int
	TickStats     nav.TickStats
	BatteryMV     int
	Error         string
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunFromResult builds a record from an explorer result and its error.
func RunFromResult(res *nav.Result, runErr error) Run {
	r := Run{
		ID:            NewRunID(),
		StartedAt:     res.Started,
		FinishedAt:    res.Finished,
		Outcome:       res.Outcome,
		Intersections: res.Intersections,
		Ticks:         res.Ticks,
		TickStats:     res.TickStats,
	}
	if res.Path != nil {
		r.Path = res.Path.String()
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}
	return r
}

// Store is a run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts r, assigning an ID if it has none.
func (s *Store) SaveRun(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = NewRunID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, started_at, finished_at, outcome, path, intersections, ticks,
			tick_mean_ns, tick_stddev_ns, tick_p99_ns, tick_max_ns, battery_mv, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UnixNano(), r.FinishedAt.UnixNano(), string(r.Outcome), r.Path,
		r.Intersections, r.Ticks,
		int64(r.TickStats.Mean), int64(r.TickStats.StdDev), int64(r.TickStats.P99), int64(r.TickStats.Max),
		r.BatteryMV, r.Error,
	)
	if err != nil {
		return r, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

const runColumns = `run_id, started_at, finished_at, outcome, path, intersections, ticks,
	tick_mean_ns, tick_stddev_ns, tick_p99_ns, tick_max_ns, battery_mv, error`

// Run returns the run with the given ID.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Runs returns up to limit runs, newest first. A limit of 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                       Run
		started, finished       int64
		outcome                 string
		mean, std, p99, maxTick int64
	)
	err := sc.Scan(&r.ID, &started, &finished, &outcome, &r.Path, &r.Intersections, &r.Ticks,
		&mean, &std, &p99, &maxTick, &r.BatteryMV, &r.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	r.FinishedAt = time.Unix(0, finished)
	r.Outcome = nav.Outcome(outcome)
	r.TickStats = nav.TickStats{
		Count:  r.Ticks,
		Mean:   time.Duration(mean),
		StdDev: time.Duration(std),
		P99:    time.Duration(p99),
		Max:    time.Duration(maxTick),
	}
	return r, nil
}

// MigrateVersion returns the current schema version and dirty state.
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

func (s *Store) migrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: that would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Printf("[migrate] "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return false
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"squash/internal/convergence"
)

var (
	// ErrNotFound is returned when no run matches an ID or prefix.
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned when a prefix matches more than one run.
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// Run is one stored invocation.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	InputPath      string
	OutputPath     string
	InputBytes     int64
	SizeBytes      int64
	TargetBytes    int64
	State          string
	Success        bool
	IterationsUsed int
	MaxIterations  int
	FinalKbps      float64
	AudioKbps      int
	Quality        int
	Elapsed        time.Duration
	Reason         string
}

// Iteration is one stored encode attempt.
type Iteration struct {
	RunID       string
	Number      int
	BitrateKbps float64
	SizeBytes   int64
	Elapsed     time.Duration
	Decision    string
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Open creates or connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, now: time.Now}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes a finished report and its iterations in one transaction.
func (s *Store) Save(ctx context.Context, report convergence.Report) error {
	if strings.TrimSpace(report.RunID) == "" {
		return errors.New("report has no run id")
	}
	finished := s.now().UTC()
	started := finished.Add(-report.Elapsed)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (
            id, started_at, finished_at, input_path, output_path, input_bytes,
            size_bytes, target_bytes, state, success, iterations_used,
            max_iterations, final_kbps, audio_kbps, quality, elapsed_ms, reason
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		started.Format(time.RFC3339Nano),
		finished.Format(time.RFC3339Nano),
		report.InputPath,
		nullableString(report.OutputPath),
		report.InputSizeBytes,
		report.SizeBytes,
		report.TargetSizeBytes,
		report.State.String(),
		boolToInt(report.Success),
		report.IterationsUsed,
		report.MaxIterations,
		report.FinalBitrateKbps,
		report.AudioKbps,
		int(report.Tier),
		report.Elapsed.Milliseconds(),
		nullableString(report.Reason),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, it := range report.Iterations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO iterations (run_id, number, bitrate_kbps, size_bytes, elapsed_ms, decision)
             VALUES (?, ?, ?, ?, ?, ?)`,
			report.RunID, it.Number, it.BitrateKbps, it.SizeBytes, it.Elapsed.Milliseconds(), it.Decision.String(),
		); err != nil {
			return fmt.Errorf("insert iteration %d: %w", it.Number, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

const runColumns = `id, started_at, finished_at, input_path, output_path, input_bytes,
    size_bytes, target_bytes, state, success, iterations_used, max_iterations,
    final_kbps, audio_kbps, quality, elapsed_ms, reason`

// List returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Find returns the run whose ID equals or uniquely starts with idOrPrefix.
func (s *Store) Find(ctx context.Context, idOrPrefix string) (Run, error) {
	key := strings.ToLower(strings.TrimSpace(idOrPrefix))
	if key == "" {
		return Run{}, ErrNotFound
	}
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(key)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+` FROM runs WHERE id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		escaped+"%",
	)
	if err != nil {
		return Run{}, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if run.ID == key {
			return run, nil
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguous, idOrPrefix)
	}
}

// Iterations returns the stored iterations of one run in order.
func (s *Store) Iterations(ctx context.Context, runID string) ([]Iteration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, number, bitrate_kbps, size_bytes, elapsed_ms, decision
         FROM iterations WHERE run_id = ? ORDER BY number`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var out []Iteration
	for rows.Next() {
		var it Iteration
		var elapsedMS int64
		if err := rows.Scan(&it.RunID, &it.Number, &it.BitrateKbps, &it.SizeBytes, &elapsedMS, &it.Decision); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		it.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run               Run
		started, finished string
		output, reason    sql.NullString
		success           int
		elapsedMS         int64
	)
	if err := scanner.Scan(
		&run.ID, &started, &finished, &run.InputPath, &output, &run.InputBytes,
		&run.SizeBytes, &run.TargetBytes, &run.State, &success, &run.IterationsUsed,
		&run.MaxIterations, &run.FinalKbps, &run.AudioKbps, &run.Quality, &elapsedMS, &reason,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.StartedAt, err = parseTimeString(started); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTimeString(finished); err != nil {
		return Run{}, err
	}
	run.OutputPath = output.String
	run.Reason = reason.String
	run.Success = success != 0
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	return run, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t, nil
}

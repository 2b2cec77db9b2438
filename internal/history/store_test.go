package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"squash/internal/convergence"
	"squash/internal/media/ffprobe"
	"squash/internal/testsupport"
	"squash/internal/transcode"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReport(id string) convergence.Report {
	return convergence.Report{
		RunID:            id,
		State:            convergence.StateConverged,
		Success:          true,
		InputPath:        "/videos/in.mp4",
		OutputPath:       "/videos/out.mp4",
		InputSizeBytes:   500 << 20,
		SizeBytes:        98 << 20,
		TargetSizeBytes:  100 << 20,
		IterationsUsed:   2,
		MaxIterations:    15,
		FinalBitrateKbps: 6400,
		AudioKbps:        128,
		Tier:             transcode.TierFast,
		Elapsed:          90 * time.Second,
		Iterations: []convergence.IterationRecord{
			{Number: 1, BitrateKbps: 7000, SizeBytes: 110 << 20, Elapsed: 40 * time.Second, Decision: convergence.DecisionLower},
			{Number: 2, BitrateKbps: 6400, SizeBytes: 98 << 20, Elapsed: 50 * time.Second, Decision: convergence.DecisionConverged},
		},
	}
}

func TestSaveAndReadBack(t *testing.T) {
	store := openTestStore(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	id := NewRunID()
	if err := store.Save(context.Background(), sampleReport(id)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	run, err := store.Find(context.Background(), id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if run.State != "converged" || !run.Success || run.OutputPath != "/videos/out.mp4" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !run.FinishedAt.Equal(fixed) || !run.StartedAt.Equal(fixed.Add(-90*time.Second)) {
		t.Fatalf("unexpected timestamps: %v %v", run.StartedAt, run.FinishedAt)
	}
	if run.Quality != 1 || run.Elapsed != 90*time.Second || run.IterationsUsed != 2 {
		t.Fatalf("unexpected run fields: %+v", run)
	}

	iterations, err := store.Iterations(context.Background(), id)
	if err != nil {
		t.Fatalf("Iterations: %v", err)
	}
	if len(iterations) != 2 {
		t.Fatalf("expected 2 iterations, got %d", len(iterations))
	}
	if iterations[0].Decision != "lower" || iterations[1].Decision != "converged" {
		t.Fatalf("unexpected decisions: %+v", iterations)
	}
	if iterations[1].SizeBytes != 98<<20 || iterations[1].Elapsed != 50*time.Second {
		t.Fatalf("unexpected iteration: %+v", iterations[1])
	}
}

func TestSaveRejectsDuplicateAndMissingID(t *testing.T) {
	store := openTestStore(t)
	if err := store.Save(context.Background(), sampleReport("")); err == nil {
		t.Fatal("expected error for empty run id")
	}
	report := sampleReport("dup")
	if err := store.Save(context.Background(), report); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(context.Background(), report); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	iterations, err := store.Iterations(context.Background(), "dup")
	if err != nil || len(iterations) != 2 {
		t.Fatalf("failed save must not add iterations: %v %d", err, len(iterations))
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"aaa", "bbb", "ccc"} {
		finished := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return finished }
		if err := store.Save(context.Background(), sampleReport(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	runs, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "ccc" || runs[1].ID != "bbb" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	all, err := store.List(context.Background(), 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all runs, got %d (%v)", len(all), err)
	}
}

func TestFindByPrefix(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []string{"abc-1", "abd-2", "x_1"} {
		if err := store.Save(context.Background(), sampleReport(id)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	run, err := store.Find(context.Background(), "abc")
	if err != nil || run.ID != "abc-1" {
		t.Fatalf("Find(abc) = %v, %v", run.ID, err)
	}
	if _, err := store.Find(context.Background(), "ab"); !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
	if _, err := store.Find(context.Background(), "zzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Find(context.Background(), "x%"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wildcards must be literal, got %v", err)
	}
	if run, err := store.Find(context.Background(), "X_"); err != nil || run.ID != "x_1" {
		t.Fatalf("Find(X_) = %v, %v", run.ID, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = store.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	if _, err := Open(context.Background(), path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

type fixedProber struct{ probe ffprobe.Probe }

func (p fixedProber) Probe(context.Context, string) (ffprobe.Probe, error) { return p.probe, nil }

func TestRecorderSavesFinishedRun(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "movie.mp4")
	testsupport.WriteSparse(t, input, 500<<20)

	ctx, cancel := context.WithCancel(context.Background())
	recorder := NewRecorder(ctx, store, nil)
	engine := &transcode.Synthetic{Size: transcode.LinearSize(120)}
	controller := convergence.NewController(fixedProber{ffprobe.Probe{DurationSeconds: 120}}, engine, convergence.Options{Sink: recorder})

	target, err := convergence.NewTarget(100, 2, 15, transcode.TierFast)
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	id := NewRunID()
	report, err := controller.Run(ctx, convergence.Job{
		RunID:      id,
		InputPath:  input,
		OutputPath: filepath.Join(dir, "out.mp4"),
		Target:     target,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	cancel()
	if err := recorder.Err(); err != nil {
		t.Fatalf("recorder: %v", err)
	}

	run, err := store.Find(context.Background(), id)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if run.State != report.State.String() || run.IterationsUsed != report.IterationsUsed {
		t.Fatalf("stored run %+v does not match report %+v", run, report)
	}
	iterations, err := store.Iterations(context.Background(), id)
	if err != nil || len(iterations) != report.IterationsUsed {
		t.Fatalf("expected %d iterations, got %d (%v)", report.IterationsUsed, len(iterations), err)
	}

	recorder.Handle(convergence.Event{Kind: convergence.EventProgress})
	if err := recorder.Err(); err != nil {
		t.Fatalf("non-finished events must be ignored: %v", err)
	}
}

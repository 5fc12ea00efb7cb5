package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/quizlint/internal/model"
)

func testReport(runID string, started time.Time) *model.RunReport {
	byMethod := model.NewMethodCounts()
	byMethod[model.MethodEditDistance] = 2
	return &model.RunReport{
		RunID:      runID,
		Source:     "problems.json",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Counts: model.CorpusMeta{
			OriginalCount: 10,
			FinalCount:    7,
			RemovedCount:  3,
			FixedCount:    1,
		},
		Duplicates: model.DuplicateCounts{Total: 2, ByMethod: byMethod, Removed: 2},
		Quality:    model.QualitySummary{AverageScore: 81.5},
	}
}

func TestSchemaCreationIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := initSchema(ctx, db); err != nil {
			t.Fatalf("initSchema iteration %d: %v", i, err)
		}
	}

	var count int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&count)
	if err != nil {
		t.Fatalf("Count tables: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 tables, got %d", count)
	}
}

func TestStore_RecordRun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger", "history.db")

	st, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	removals := []Removal{
		{RecordID: "7", Reason: ReasonDuplicate, Detail: "editDistance"},
		{RecordID: "12", Reason: ReasonDuplicate, Detail: "oppositeAnswer"},
		{RecordID: "9", Reason: ReasonExcluded},
	}
	if err := st.RecordRun(ctx, testReport("run-a", start), removals); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if err := st.RecordRun(ctx, testReport("run-b", start.Add(time.Hour)), removals[:1]); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := st.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-b" {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	r := runs[1]
	if r.OriginalCount != 10 || r.FinalCount != 7 || r.Duplicates != 2 || r.AverageScore != 81.5 {
		t.Errorf("unexpected run row %+v", r)
	}
	if !r.StartedAt.Equal(start) {
		t.Errorf("started_at = %v, want %v", r.StartedAt, start)
	}

	limited, err := st.Runs(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("limit 1: got %d runs, err %v", len(limited), err)
	}

	got, err := st.Removals(ctx, "run-a")
	if err != nil {
		t.Fatalf("Removals: %v", err)
	}
	if len(got) != 3 || got[0].RecordID != "12" || got[2].Detail != "" {
		t.Errorf("unexpected removals %+v", got)
	}

	n, err := st.RemovalCount(ctx, "7")
	if err != nil || n != 2 {
		t.Errorf("RemovalCount = %d, %v; want 2", n, err)
	}
}

func TestStore_DuplicateRunIDRollsBack(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	rep := testReport("run-a", time.Now())
	if err := st.RecordRun(ctx, rep, nil); err != nil {
		t.Fatal(err)
	}
	if err := st.RecordRun(ctx, rep, []Removal{{RecordID: "1", Reason: ReasonDuplicate}}); err == nil {
		t.Fatal("expected error for duplicate run id")
	}

	got, err := st.Removals(ctx, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("failed run should not leave removals, got %+v", got)
	}
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	st, err := Open(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.RecordRun(ctx, testReport("run-a", time.Now()), nil); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	runs, err := st.Runs(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Errorf("expected 1 run after reopen, got %d (%v)", len(runs), err)
	}
}

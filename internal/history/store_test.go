package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartRun(ctx, "incremental")
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != StatusRunning || run.Mode != "incremental" {
		t.Errorf("run = %+v, want running incremental", run)
	}
	if run.CompletedAt != nil {
		t.Error("running run should have no completion time")
	}

	if err := s.CompleteRun(ctx, id, StatusCompleted, 45000, 3, nil); err != nil {
		t.Fatalf("CompleteRun: %v", err)
	}

	run, err = s.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusCompleted || run.RecordsSynced != 45000 || run.TablesCreated != 3 {
		t.Errorf("completed run = %+v", run)
	}
	if run.CompletedAt == nil {
		t.Error("completed run should have a completion time")
	}
	if run.Error != "" {
		t.Errorf("error = %q, want empty", run.Error)
	}
}

func TestFailedRunKeepsError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.StartRun(ctx, "full")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CompleteRun(ctx, id, StatusFailed, 1000, 1, errors.New("sink rejected batch")); err != nil {
		t.Fatal(err)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != StatusFailed || run.Error != "sink rejected batch" {
		t.Errorf("failed run = %+v", run)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.StartRun(ctx, "incremental")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
}

func TestGetMissingRun(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetRun(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

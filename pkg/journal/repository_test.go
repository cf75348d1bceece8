package journal

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_RecordAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	run := &Run{
		RunID:         "4f1c2b3a-0000-4000-8000-000000000001",
		Volume:        "DataDisk",
		TablePath:     "/etc/fstab",
		Action:        "updated",
		Outcome:       OutcomeOK,
		OldIdentifier: "AAAA-1111",
		NewIdentifier: "BBBB-2222",
	}
	if err := repo.Record(ctx, run); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}
	if run.ID == 0 {
		t.Error("expected ID to be assigned")
	}

	got, err := repo.GetByRunID(ctx, run.RunID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got == nil {
		t.Fatal("run not found")
	}
	if got.Volume != run.Volume || got.OldIdentifier != run.OldIdentifier || got.NewIdentifier != run.NewIdentifier {
		t.Errorf("retrieved run mismatch: got %+v, want %+v", got, run)
	}
	if got.CreatedAt == "" {
		t.Error("expected created_at to be set")
	}

	missing, err := repo.GetByRunID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing run, got %+v, %v", missing, err)
	}
}

func TestRepository_RecordFailure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	run := &Run{
		RunID:        "run-failed",
		Volume:       "Backup",
		TablePath:    "/etc/fstab",
		Action:       "none",
		Outcome:      OutcomeFailed,
		ExitCode:     3,
		ErrorMessage: "ambiguous volume name",
	}
	if err := repo.Record(ctx, run); err != nil {
		t.Fatalf("failed to record run: %v", err)
	}

	got, _ := repo.GetByRunID(ctx, "run-failed")
	if got.ExitCode != 3 || got.ErrorMessage != "ambiguous volume name" {
		t.Errorf("unexpected run: %+v", got)
	}
}

func TestRepository_RejectsUnknownOutcome(t *testing.T) {
	repo := newTestRepository(t)
	err := repo.Record(context.Background(), &Run{RunID: "x", Volume: "v", TablePath: "/etc/fstab", Action: "updated", Outcome: "maybe"})
	if err == nil {
		t.Error("expected check constraint violation")
	}
}

func TestRepository_List(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, r := range []*Run{
		{RunID: "1", Volume: "DataDisk", TablePath: "/etc/fstab", Action: "updated", Outcome: OutcomeOK},
		{RunID: "2", Volume: "Work HD", TablePath: "/etc/fstab", Action: "unchanged", Outcome: OutcomeOK},
		{RunID: "3", Volume: "DataDisk", TablePath: "/etc/fstab", Action: "unchanged", Outcome: OutcomeDryRun},
	} {
		if err := repo.Record(ctx, r); err != nil {
			t.Fatalf("failed to record run: %v", err)
		}
	}

	all, err := repo.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].RunID != "3" {
		t.Errorf("expected newest run first, got %s", all[0].RunID)
	}

	data, _ := repo.List(ctx, "DataDisk", 0)
	if len(data) != 2 {
		t.Errorf("expected 2 DataDisk runs, got %d", len(data))
	}

	limited, _ := repo.List(ctx, "", 1)
	if len(limited) != 1 {
		t.Errorf("expected 1 run with limit, got %d", len(limited))
	}
}

package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"xpdash/internal/core"
	"xpdash/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func sampleSnapshot(userID int64) core.Snapshot {
	return core.Snapshot{
		UserID:    userID,
		Login:     "alice",
		Email:     "alice@example.com",
		FetchedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Transactions: []core.TransactionRecord{
			{Type: "xp", Amount: 100, CreatedAt: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Path: "/gr/div-01/a", Object: core.ObjectRef{Name: "a", Type: "project"}},
			{Type: "xp", Amount: 50, Path: "/gr/div-01/b"},
		},
		Skills: []core.SkillScore{{Name: core.SkillGo, Value: 55}, {Name: core.SkillGit, Value: 10}},
		Audit:  core.AuditSummary{Up: 300, Down: 200, Ratio: "1.5"},
	}
}

func newSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "xpdash.db"), testLogger())
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func stores(t *testing.T) map[string]SnapshotStore {
	return map[string]SnapshotStore{
		"memory": NewMemoryStore(),
		"sqlite": newSQLite(t),
	}
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleSnapshot(7)

			version, err := store.SaveSnapshot(ctx, want)
			if err != nil {
				t.Fatalf("SaveSnapshot: %v", err)
			}
			if version != 1 {
				t.Errorf("version = %d, want 1", version)
			}

			got, err := store.LoadSnapshot(ctx, 7)
			if err != nil {
				t.Fatalf("LoadSnapshot: %v", err)
			}
			if got.Login != want.Login || got.Email != want.Email || got.Version != 1 || got.SyncStatus != core.SyncPending {
				t.Errorf("snapshot = %+v", got)
			}
			if !got.FetchedAt.Equal(want.FetchedAt) {
				t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, want.FetchedAt)
			}
			if got.Audit != want.Audit {
				t.Errorf("Audit = %+v", got.Audit)
			}
			if len(got.Transactions) != 2 {
				t.Fatalf("transactions = %d", len(got.Transactions))
			}
			first := got.Transactions[0]
			if first.Amount != 100 || first.Object != want.Transactions[0].Object || !first.CreatedAt.Equal(want.Transactions[0].CreatedAt) {
				t.Errorf("first transaction = %+v", first)
			}
			if got.Transactions[1].HasTimestamp() {
				t.Errorf("missing timestamp came back as %v", got.Transactions[1].CreatedAt)
			}
			if len(got.Skills) != 2 || got.Skills[0] != want.Skills[0] {
				t.Errorf("skills = %+v", got.Skills)
			}
		})
	}
}

func TestSnapshotStore_NotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.LoadSnapshot(context.Background(), 404); !errors.Is(err, ErrSnapshotNotFound) {
				t.Errorf("err = %v, want ErrSnapshotNotFound", err)
			}
		})
	}
}

func TestSnapshotStore_SyncLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.SaveSnapshot(ctx, sampleSnapshot(1)); err != nil {
				t.Fatal(err)
			}
			if _, err := store.SaveSnapshot(ctx, sampleSnapshot(2)); err != nil {
				t.Fatal(err)
			}

			pending, err := store.GetPendingSync(ctx, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(pending) != 2 {
				t.Fatalf("pending = %+v", pending)
			}

			if err := store.MarkSynced(ctx, 1, 1); err != nil {
				t.Fatal(err)
			}
			if err := store.MarkSyncError(ctx, 2, 1, "sheets down"); err != nil {
				t.Fatal(err)
			}
			pending, _ = store.GetPendingSync(ctx, 10)
			if len(pending) != 0 {
				t.Errorf("pending after marks = %+v", pending)
			}

			// a new save supersedes the synced version and re-queues it
			v, err := store.SaveSnapshot(ctx, sampleSnapshot(1))
			if err != nil {
				t.Fatal(err)
			}
			if v != 2 {
				t.Errorf("version = %d, want 2", v)
			}
			if err := store.MarkSynced(ctx, 1, 1); err != nil {
				t.Fatal(err)
			}
			pending, _ = store.GetPendingSync(ctx, 1)
			if len(pending) != 1 || pending[0].UserID != 1 || pending[0].Version != 2 {
				t.Errorf("pending = %+v, want user 1 version 2", pending)
			}
		})
	}
}

func TestSnapshotStore_ReplacesChildRows(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.SaveSnapshot(ctx, sampleSnapshot(3)); err != nil {
				t.Fatal(err)
			}
			next := sampleSnapshot(3)
			next.Transactions = next.Transactions[:1]
			next.Skills = nil
			if _, err := store.SaveSnapshot(ctx, next); err != nil {
				t.Fatal(err)
			}
			got, err := store.LoadSnapshot(ctx, 3)
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Transactions) != 1 || len(got.Skills) != 0 {
				t.Errorf("got %d transactions, %d skills", len(got.Transactions), len(got.Skills))
			}
		})
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
	v, dirty, err := MigrationVersion(path)
	if err != nil || dirty || v != 1 {
		t.Errorf("version = %d dirty=%v err=%v", v, dirty, err)
	}
}

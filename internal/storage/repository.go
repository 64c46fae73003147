package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xpdash/internal/core"
	"xpdash/internal/log"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer keeps upserts and their child rows consistent
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveSnapshot implements SnapshotStore.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s core.Snapshot) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	fetchedAt := s.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = r.now()
	}

	version, err := q.UpsertSnapshot(ctx, UpsertSnapshotParams{
		UserID:     s.UserID,
		Login:      s.Login,
		Email:      s.Email,
		FetchedAt:  fetchedAt.UTC().Format(timeLayout),
		AuditUp:    s.Audit.Up,
		AuditDown:  s.Audit.Down,
		AuditRatio: s.Audit.Ratio,
		UpdatedAt:  r.now().UTC().Format(timeLayout),
	})
	if err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}

	if err := q.DeleteSnapshotTransactions(ctx, s.UserID); err != nil {
		return 0, fmt.Errorf("clear snapshot transactions: %w", err)
	}
	if err := q.DeleteSnapshotSkills(ctx, s.UserID); err != nil {
		return 0, fmt.Errorf("clear snapshot skills: %w", err)
	}

	for i, t := range s.Transactions {
		row := SnapshotTransaction{
			Position:   int64(i),
			Type:       t.Type,
			Amount:     t.Amount,
			Path:       t.Path,
			ObjectName: t.Object.Name,
			ObjectType: t.Object.Type,
		}
		if t.HasTimestamp() {
			row.CreatedAt = t.CreatedAt.Format(timeLayout)
		}
		if err := q.InsertSnapshotTransaction(ctx, s.UserID, row); err != nil {
			return 0, fmt.Errorf("insert snapshot transaction %d: %w", i, err)
		}
	}
	for i, sk := range s.Skills {
		if err := q.InsertSnapshotSkill(ctx, s.UserID, SnapshotSkill{Position: int64(i), Name: sk.Name, Value: sk.Value}); err != nil {
			return 0, fmt.Errorf("insert snapshot skill %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot saved",
		log.FieldUserID, s.UserID,
		log.FieldVersion, version,
		"transactions", len(s.Transactions))

	return version, nil
}

// LoadSnapshot implements SnapshotStore.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, userID int64) (core.Snapshot, error) {
	row, err := r.queries.GetSnapshot(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	txs, err := r.queries.ListSnapshotTransactions(ctx, userID)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("list snapshot transactions: %w", err)
	}
	skills, err := r.queries.ListSnapshotSkills(ctx, userID)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("list snapshot skills: %w", err)
	}

	s := core.Snapshot{
		UserID:       row.UserID,
		Login:        row.Login,
		Email:        row.Email,
		Version:      row.Version,
		FetchedAt:    core.ParseTimestamp(row.FetchedAt),
		SyncStatus:   row.SyncStatus,
		Audit:        core.AuditSummary{Up: row.AuditUp, Down: row.AuditDown, Ratio: row.AuditRatio},
		Transactions: make([]core.TransactionRecord, 0, len(txs)),
		Skills:       make([]core.SkillScore, 0, len(skills)),
	}
	for _, t := range txs {
		s.Transactions = append(s.Transactions, core.TransactionRecord{
			Type:      t.Type,
			Amount:    t.Amount,
			CreatedAt: core.ParseTimestamp(t.CreatedAt),
			Path:      t.Path,
			Object:    core.ObjectRef{Name: t.ObjectName, Type: t.ObjectType},
		})
	}
	for _, sk := range skills {
		s.Skills = append(s.Skills, core.SkillScore{Name: sk.Name, Value: sk.Value})
	}
	return s, nil
}

// GetPendingSync implements SnapshotStore.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.queries.GetPendingSync(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync snapshots: %w", err)
	}
	out := make([]PendingSync, len(rows))
	for i, row := range rows {
		out[i] = PendingSync{
			UserID:    row.UserID,
			Version:   row.Version,
			UpdatedAt: core.ParseTimestamp(row.UpdatedAt),
		}
	}
	return out, nil
}

// MarkSynced implements SnapshotStore.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, userID, version int64) error {
	n, err := r.queries.MarkSnapshotSynced(ctx, r.now().UTC().Format(timeLayout), userID, version)
	if err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}
	if n == 0 {
		r.logger.DebugContext(ctx, "Snapshot superseded before sync completed", log.FieldUserID, userID, log.FieldVersion, version)
		return nil
	}
	r.logger.InfoContext(ctx, "Snapshot marked as synced", log.FieldUserID, userID, log.FieldVersion, version)
	return nil
}

// MarkSyncError implements SnapshotStore.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, userID, version int64, reason string) error {
	if _, err := r.queries.MarkSnapshotSyncError(ctx, reason, userID, version); err != nil {
		return fmt.Errorf("mark snapshot sync error: %w", err)
	}
	r.logger.WarnContext(ctx, "Snapshot marked with sync error", log.FieldUserID, userID, log.FieldVersion, version, log.FieldError, reason)
	return nil
}

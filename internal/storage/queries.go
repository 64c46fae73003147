package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Snapshot struct {
	UserID     int64
	Login      string
	Email      string
	Version    int64
	FetchedAt  string
	AuditUp    int64
	AuditDown  int64
	AuditRatio string
	SyncStatus string
	SyncError  string
	SyncedAt   sql.NullString
	UpdatedAt  string
}

type SnapshotTransaction struct {
	Position   int64
	Type       string
	Amount     int64
	CreatedAt  string
	Path       string
	ObjectName string
	ObjectType string
}

type SnapshotSkill struct {
	Position int64
	Name     string
	Value    float64
}

const upsertSnapshot = `
INSERT INTO snapshots (user_id, login, email, version, fetched_at, audit_up, audit_down, audit_ratio, sync_status, sync_error, synced_at, updated_at)
VALUES (?, ?, ?, 1, ?, ?, ?, ?, 'pending', '', NULL, ?)
ON CONFLICT(user_id) DO UPDATE SET
    login = excluded.login,
    email = excluded.email,
    version = snapshots.version + 1,
    fetched_at = excluded.fetched_at,
    audit_up = excluded.audit_up,
    audit_down = excluded.audit_down,
    audit_ratio = excluded.audit_ratio,
    sync_status = 'pending',
    sync_error = '',
    synced_at = NULL,
    updated_at = excluded.updated_at
RETURNING version
`

type UpsertSnapshotParams struct {
	UserID     int64
	Login      string
	Email      string
	FetchedAt  string
	AuditUp    int64
	AuditDown  int64
	AuditRatio string
	UpdatedAt  string
}

func (q *Queries) UpsertSnapshot(ctx context.Context, arg UpsertSnapshotParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, upsertSnapshot,
		arg.UserID, arg.Login, arg.Email, arg.FetchedAt,
		arg.AuditUp, arg.AuditDown, arg.AuditRatio, arg.UpdatedAt)
	var version int64
	err := row.Scan(&version)
	return version, err
}

const deleteSnapshotTransactions = `DELETE FROM snapshot_transactions WHERE user_id = ?`

func (q *Queries) DeleteSnapshotTransactions(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteSnapshotTransactions, userID)
	return err
}

const deleteSnapshotSkills = `DELETE FROM snapshot_skills WHERE user_id = ?`

func (q *Queries) DeleteSnapshotSkills(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteSnapshotSkills, userID)
	return err
}

const insertSnapshotTransaction = `
INSERT INTO snapshot_transactions (user_id, position, type, amount, created_at, path, object_name, object_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertSnapshotTransaction(ctx context.Context, userID int64, t SnapshotTransaction) error {
	_, err := q.db.ExecContext(ctx, insertSnapshotTransaction,
		userID, t.Position, t.Type, t.Amount, t.CreatedAt, t.Path, t.ObjectName, t.ObjectType)
	return err
}

const insertSnapshotSkill = `INSERT INTO snapshot_skills (user_id, position, name, value) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertSnapshotSkill(ctx context.Context, userID int64, s SnapshotSkill) error {
	_, err := q.db.ExecContext(ctx, insertSnapshotSkill, userID, s.Position, s.Name, s.Value)
	return err
}

const getSnapshot = `
SELECT user_id, login, email, version, fetched_at, audit_up, audit_down, audit_ratio, sync_status, sync_error, synced_at, updated_at
FROM snapshots WHERE user_id = ?
`

func (q *Queries) GetSnapshot(ctx context.Context, userID int64) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, getSnapshot, userID)
	var s Snapshot
	err := row.Scan(&s.UserID, &s.Login, &s.Email, &s.Version, &s.FetchedAt,
		&s.AuditUp, &s.AuditDown, &s.AuditRatio, &s.SyncStatus, &s.SyncError, &s.SyncedAt, &s.UpdatedAt)
	return s, err
}

const listSnapshotTransactions = `
SELECT position, type, amount, created_at, path, object_name, object_type
FROM snapshot_transactions WHERE user_id = ? ORDER BY position
`

func (q *Queries) ListSnapshotTransactions(ctx context.Context, userID int64) ([]SnapshotTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotTransactions, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotTransaction
	for rows.Next() {
		var t SnapshotTransaction
		if err := rows.Scan(&t.Position, &t.Type, &t.Amount, &t.CreatedAt, &t.Path, &t.ObjectName, &t.ObjectType); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const listSnapshotSkills = `SELECT position, name, value FROM snapshot_skills WHERE user_id = ? ORDER BY position`

func (q *Queries) ListSnapshotSkills(ctx context.Context, userID int64) ([]SnapshotSkill, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotSkills, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SnapshotSkill
	for rows.Next() {
		var s SnapshotSkill
		if err := rows.Scan(&s.Position, &s.Name, &s.Value); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getPendingSync = `
SELECT user_id, version, updated_at FROM snapshots
WHERE sync_status = 'pending'
ORDER BY updated_at ASC, user_id ASC
LIMIT ?
`

type PendingSyncRow struct {
	UserID    int64
	Version   int64
	UpdatedAt string
}

func (q *Queries) GetPendingSync(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSync, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var r PendingSyncRow
		if err := rows.Scan(&r.UserID, &r.Version, &r.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const markSnapshotSynced = `
UPDATE snapshots SET sync_status = 'synced', sync_error = '', synced_at = ?
WHERE user_id = ? AND version = ?
`

func (q *Queries) MarkSnapshotSynced(ctx context.Context, syncedAt string, userID, version int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSnapshotSynced, syncedAt, userID, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markSnapshotSyncError = `
UPDATE snapshots SET sync_status = 'error', sync_error = ?
WHERE user_id = ? AND version = ?
`

func (q *Queries) MarkSnapshotSyncError(ctx context.Context, reason string, userID, version int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markSnapshotSyncError, reason, userID, version)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

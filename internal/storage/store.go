// Package storage persists the last good dashboard snapshot of each user.
package storage

import (
	"context"
	"errors"
	"time"

	"xpdash/internal/core"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore is implemented by the SQLite repository and the in-memory store.
type SnapshotStore interface {
	// SaveSnapshot replaces the user's snapshot, marks it pending export and
	// returns the new version.
	SaveSnapshot(ctx context.Context, s core.Snapshot) (int64, error)
	LoadSnapshot(ctx context.Context, userID int64) (core.Snapshot, error)
	GetPendingSync(ctx context.Context, limit int) ([]PendingSync, error)
	// MarkSynced and MarkSyncError are no-ops when version is no longer current.
	MarkSynced(ctx context.Context, userID, version int64) error
	MarkSyncError(ctx context.Context, userID, version int64, reason string) error
	Close() error
}

// PendingSync is the minimal data needed to queue an export.
type PendingSync struct {
	UserID    int64
	Version   int64
	UpdatedAt time.Time
}

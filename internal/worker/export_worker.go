// Package worker exports stored snapshots to the progress sheet.
package worker

import (
	"context"
	"errors"
	"fmt"

	"xpdash/internal/amqp"
	"xpdash/internal/core"
	"xpdash/internal/log"
	"xpdash/internal/storage"
)

// SnapshotExporter turns a snapshot into an external export and returns its reference.
type SnapshotExporter interface {
	Export(ctx context.Context, s core.Snapshot) (ref string, err error)
}

// ExportWorker reacts to snapshot sync messages and sweeps pending snapshots.
type ExportWorker struct {
	store     storage.SnapshotStore
	exporter  SnapshotExporter
	logger    *log.Logger
	batchSize int
}

func NewExportWorker(store storage.SnapshotStore, exporter SnapshotExporter, logger *log.Logger, batchSize int) *ExportWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &ExportWorker{
		store:     store,
		exporter:  exporter,
		logger:    logger.WithComponent(log.ComponentWorker),
		batchSize: batchSize,
	}
}

// HandleSyncMessage exports the snapshot named by msg. Messages for a
// superseded version are acknowledged without work; a newer message follows.
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SnapshotSyncMessage) error {
	snap, err := w.store.LoadSnapshot(ctx, msg.UserID)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		w.logger.WarnContext(ctx, "Dropping sync message for unknown snapshot", log.FieldUserID, msg.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if snap.Version > msg.Version {
		w.logger.DebugContext(ctx, "Skipping superseded snapshot version",
			log.FieldUserID, msg.UserID,
			log.FieldVersion, msg.Version,
			"current_version", snap.Version)
		return nil
	}
	if snap.SyncStatus == core.SyncSynced {
		return nil
	}

	return w.export(ctx, snap)
}

// ProcessPending exports up to one batch of pending snapshots. It covers
// messages lost while the broker or worker was down.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.sweep(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker starts.
func (w *ExportWorker) StartupSyncCheck(ctx context.Context) error {
	n, err := w.sweep(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if n == 0 {
		w.logger.InfoContext(ctx, "No pending snapshots found on startup")
	}
	return nil
}

func (w *ExportWorker) sweep(ctx context.Context, limit int) (int, error) {
	pending, err := w.store.GetPendingSync(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending snapshots: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	synced, failed := 0, 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		snap, err := w.store.LoadSnapshot(ctx, p.UserID)
		if err != nil {
			w.logger.ErrorContext(ctx, "Failed to load pending snapshot", log.FieldUserID, p.UserID, log.FieldError, err)
			failed++
			continue
		}
		if err := w.export(ctx, snap); err != nil {
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Pending snapshot sweep completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)
	return synced, nil
}

func (w *ExportWorker) export(ctx context.Context, snap core.Snapshot) error {
	ref, err := w.exporter.Export(ctx, snap)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, snap.UserID, snap.Version, err.Error()); markErr != nil {
			w.logger.ErrorContext(ctx, "Failed to mark sync error", log.FieldUserID, snap.UserID, log.FieldError, markErr)
		}
		w.logger.ErrorContext(ctx, "Snapshot export failed",
			log.FieldUserID, snap.UserID,
			log.FieldVersion, snap.Version,
			log.FieldError, err)
		return fmt.Errorf("export snapshot: %w", err)
	}

	// the export happened even if recording it fails
	if err := w.store.MarkSynced(ctx, snap.UserID, snap.Version); err != nil {
		w.logger.ErrorContext(ctx, "Failed to mark as synced", log.FieldUserID, snap.UserID, log.FieldError, err)
	}

	w.logger.InfoContext(ctx, "Snapshot exported",
		log.FieldUserID, snap.UserID,
		log.FieldLogin, snap.Login,
		log.FieldVersion, snap.Version,
		log.FieldSheetsRef, ref)
	return nil
}

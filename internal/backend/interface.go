// Package backend builds the snapshot store, progress exporter and sync
// publisher selected by configuration.
package backend

import (
	"context"

	"xpdash/internal/sheets"
	"xpdash/internal/storage"
)

// SyncPublisher announces a saved snapshot version to the export worker.
type SyncPublisher interface {
	PublishSnapshotSync(ctx context.Context, userID, version int64) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// StoreResult contains the snapshot store and its cleanup function
type StoreResult struct {
	Store   storage.SnapshotStore
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreateExporter(ctx context.Context, config Config) (sheets.ProgressExporter, error)
	// CreatePublisher returns nil when no broker is configured.
	CreatePublisher(ctx context.Context, config Config) (SyncPublisher, error)
}

// Config holds configuration for backend creation
type Config struct {
	Store  StoreType
	Export ExportType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string
}

// StoreType selects the snapshot store.
type StoreType string

const (
	SQLiteStore StoreType = "sqlite"
	MemoryStore StoreType = "memory"
)

func (t StoreType) String() string {
	return string(t)
}

func (t StoreType) IsValid() bool {
	switch t {
	case SQLiteStore, MemoryStore:
		return true
	default:
		return false
	}
}

// ExportType selects where progress exports go.
type ExportType string

const (
	SheetsExport ExportType = "sheets"
	MemoryExport ExportType = "memory"
)

func (t ExportType) String() string {
	return string(t)
}

func (t ExportType) IsValid() bool {
	switch t {
	case SheetsExport, MemoryExport:
		return true
	default:
		return false
	}
}

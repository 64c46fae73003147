// Package adapters connects the export worker to the progress sheet.
package adapters

import (
	"context"

	"xpdash/internal/aggregate"
	"xpdash/internal/core"
	"xpdash/internal/sheets"
)

// ProgressAdapter aggregates a snapshot into monthly buckets and hands them
// to a ProgressExporter.
type ProgressAdapter struct {
	exporter   sheets.ProgressExporter
	aggregator aggregate.Aggregator
}

func NewProgressAdapter(exporter sheets.ProgressExporter, aggregator aggregate.Aggregator) *ProgressAdapter {
	return &ProgressAdapter{exporter: exporter, aggregator: aggregator}
}

// Export implements worker.SnapshotExporter.
func (a *ProgressAdapter) Export(ctx context.Context, s core.Snapshot) (string, error) {
	return a.exporter.ExportMonthly(ctx, s.Login, a.aggregator.AggregateMonthly(s.Transactions))
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"xpdash/internal/core"
	ports "xpdash/internal/sheets"
)

// Exporter keeps the latest export of every login in memory.
type Exporter struct {
	mu      sync.Mutex
	exports map[string][]core.MonthlyBucket
	count   int
}

var _ ports.ProgressExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{exports: make(map[string][]core.MonthlyBucket)}
}

// ExportMonthly stores a copy of buckets and returns a synthetic reference.
func (e *Exporter) ExportMonthly(_ context.Context, login string, buckets []core.MonthlyBucket) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exports[login] = append([]core.MonthlyBucket(nil), buckets...)
	e.count++
	return fmt.Sprintf("mem:%s:%d", login, e.count), nil
}

// Exported returns the last export for login.
func (e *Exporter) Exported(login string) ([]core.MonthlyBucket, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.exports[login]
	return append([]core.MonthlyBucket(nil), b...), ok
}

// Count returns the number of exports performed.
func (e *Exporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

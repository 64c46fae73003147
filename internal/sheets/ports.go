// Package sheets defines where monthly progress is exported to.
package sheets

import (
	"context"

	"xpdash/internal/core"
)

// ProgressExporter writes a user's monthly XP buckets to an external sheet.
// Exports replace previous content for the same login.
type ProgressExporter interface {
	ExportMonthly(ctx context.Context, login string, buckets []core.MonthlyBucket) (ref string, err error)
}

// Header is the first row of every exported table.
var Header = []string{"Month", "Label", "XP", "Cumulative XP"}

// Rows renders buckets as table rows below Header.
func Rows(buckets []core.MonthlyBucket) [][]any {
	rows := make([][]any, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []any{b.Key, b.Label, b.PeriodTotal, b.CumulativeTotal})
	}
	return rows
}

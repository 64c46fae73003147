package memory

import (
	"context"
	"testing"

	"xpdash/internal/core"
)

func TestExporter(t *testing.T) {
	e := New()
	buckets := []core.MonthlyBucket{{Key: "2024-01", PeriodTotal: 5, CumulativeTotal: 5}}

	ref, err := e.ExportMonthly(context.Background(), "alice", buckets)
	if err != nil {
		t.Fatal(err)
	}
	if ref != "mem:alice:1" {
		t.Errorf("ref = %q", ref)
	}

	buckets[0].PeriodTotal = 99
	got, ok := e.Exported("alice")
	if !ok || len(got) != 1 || got[0].PeriodTotal != 5 {
		t.Errorf("exported = %+v, %v", got, ok)
	}

	if _, ok := e.Exported("bob"); ok {
		t.Error("bob should have no export")
	}

	_, _ = e.ExportMonthly(context.Background(), "alice", nil)
	if e.Count() != 2 {
		t.Errorf("count = %d", e.Count())
	}
	if got, _ := e.Exported("alice"); len(got) != 0 {
		t.Errorf("re-export should replace, got %+v", got)
	}
}

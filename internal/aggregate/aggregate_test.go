package aggregate

import (
	"testing"
	"time"

	"xpdash/internal/core"
)

func at(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func xp(path, objType string, amount int64, createdAt time.Time) core.TransactionRecord {
	return core.TransactionRecord{
		Type:      "xp",
		Amount:    amount,
		CreatedAt: createdAt,
		Path:      path,
		Object:    core.ObjectRef{Type: objType},
	}
}

func TestAggregateMonthly_FilterExample(t *testing.T) {
	records := []core.TransactionRecord{
		xp("/piscine-go/ex1", "exercise", 50, at(2024, 1, 3)),
		xp("/piscine-go/final", "project", 300, at(2024, 1, 20)),
		xp("/div-01/ex2", "exercise", 20, at(2024, 2, 1)),
	}

	buckets := AggregateMonthly(records)
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if got := buckets[len(buckets)-1].CumulativeTotal; got != 320 {
		t.Errorf("last cumulative = %d, want 320", got)
	}
	if got := TotalXP(records); got != 320 {
		t.Errorf("TotalXP = %d, want 320", got)
	}
	if buckets[0].PeriodTotal != 300 || buckets[1].PeriodTotal != 20 {
		t.Errorf("period totals = %d, %d", buckets[0].PeriodTotal, buckets[1].PeriodTotal)
	}
}

func TestAggregateMonthly(t *testing.T) {
	tests := []struct {
		name    string
		records []core.TransactionRecord
		want    []core.MonthlyBucket
	}{
		{
			name:    "empty input",
			records: nil,
			want:    []core.MonthlyBucket{},
		},
		{
			name:    "single bucket",
			records: []core.TransactionRecord{xp("/a", "project", 10, at(2023, 11, 2)), xp("/b", "project", 5, at(2023, 11, 28))},
			want: []core.MonthlyBucket{
				{Key: "2023-11", Label: "Nov 2023", ShortLabel: "Nov 23", PeriodTotal: 15, CumulativeTotal: 15},
			},
		},
		{
			name: "sorted with gaps and no synthesized months",
			records: []core.TransactionRecord{
				xp("/c", "project", 7, at(2024, 4, 1)),
				xp("/a", "project", 1, at(2023, 12, 31)),
				xp("/b", "project", 2, at(2024, 1, 15)),
			},
			want: []core.MonthlyBucket{
				{Key: "2023-12", Label: "Dec 2023", ShortLabel: "Dec 23", PeriodTotal: 1, CumulativeTotal: 1},
				{Key: "2024-01", Label: "Jan 2024", ShortLabel: "Jan 24", PeriodTotal: 2, CumulativeTotal: 3},
				{Key: "2024-04", Label: "Apr 2024", ShortLabel: "Apr 24", PeriodTotal: 7, CumulativeTotal: 10},
			},
		},
		{
			name: "records without timestamp are skipped",
			records: []core.TransactionRecord{
				xp("/a", "project", 100, time.Time{}),
				xp("/b", "project", 4, at(2024, 6, 6)),
			},
			want: []core.MonthlyBucket{
				{Key: "2024-06", Label: "Jun 2024", ShortLabel: "Jun 24", PeriodTotal: 4, CumulativeTotal: 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AggregateMonthly(tt.records)
			if got == nil {
				t.Fatal("AggregateMonthly returned nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d buckets, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("bucket %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAggregateMonthly_CumulativeInvariant(t *testing.T) {
	var records []core.TransactionRecord
	for i := 0; i < 40; i++ {
		records = append(records, xp("/div-01/p", "project", int64(i*13%7), at(2022, time.Month(i%12+1), i%27+1).AddDate(i/12, 0, 0)))
	}
	buckets := AggregateMonthly(records)

	var prev, sum int64
	for i, b := range buckets {
		if b.CumulativeTotal != prev+b.PeriodTotal {
			t.Fatalf("bucket %d cumulative %d != %d + %d", i, b.CumulativeTotal, prev, b.PeriodTotal)
		}
		if b.CumulativeTotal < prev {
			t.Fatalf("bucket %d decreased", i)
		}
		if i > 0 && buckets[i-1].Key >= b.Key {
			t.Fatalf("buckets not ordered at %d", i)
		}
		prev = b.CumulativeTotal
		sum += b.PeriodTotal
	}
	if prev != TotalXP(records) || prev != sum {
		t.Fatalf("last cumulative %d, TotalXP %d, sum %d", prev, TotalXP(records), sum)
	}
}

func TestAggregator_Location(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2024-01-31 20:00 UTC is already February in Tokyo.
	records := []core.TransactionRecord{xp("/a", "project", 1, time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC))}

	if got := AggregateMonthly(records)[0].Key; got != "2024-01" {
		t.Errorf("UTC key = %q", got)
	}
	if got := New(tokyo).AggregateMonthly(records)[0].Key; got != "2024-02" {
		t.Errorf("JST key = %q", got)
	}
}

func TestSkillScores(t *testing.T) {
	records := []core.TransactionRecord{
		{Type: "skill_go", Amount: 40},
		{Type: "skill_go", Amount: 65},
		{Type: "skill_go", Amount: 50},
		{Type: "skill_js", Amount: 150},
		{Type: "skill_sql", Amount: 90},
		{Type: "xp", Amount: 1000},
	}
	got := SkillScores(records)
	if len(got) != core.SkillAxisCount {
		t.Fatalf("len = %d", len(got))
	}
	want := map[string]float64{core.SkillGo: 65, core.SkillJavaScript: 100}
	for i, s := range got {
		if s.Name != core.SkillCategories[i] {
			t.Errorf("axis %d name = %q, want %q", i, s.Name, core.SkillCategories[i])
		}
		if s.Value != want[s.Name] {
			t.Errorf("%s = %v, want %v", s.Name, s.Value, want[s.Name])
		}
	}
}

func TestAuditRatio(t *testing.T) {
	tests := []struct {
		name    string
		records []core.TransactionRecord
		want    core.AuditSummary
	}{
		{"nothing received", []core.TransactionRecord{{Type: "up", Amount: 10}}, core.AuditSummary{Up: 10, Ratio: "0.0"}},
		{"balanced", []core.TransactionRecord{{Type: "up", Amount: 10}, {Type: "down", Amount: 10}}, core.AuditSummary{Up: 10, Down: 10, Ratio: "1.0"}},
		{"rounded", []core.TransactionRecord{{Type: "up", Amount: 2}, {Type: "down", Amount: 3}, {Type: "xp", Amount: 99}}, core.AuditSummary{Up: 2, Down: 3, Ratio: "0.7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuditRatio(tt.records); got != tt.want {
				t.Errorf("AuditRatio() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTotalXP_SkipsUntimestamped(t *testing.T) {
	records := []core.TransactionRecord{
		xp("/div-01/a", "project", 100, at(2024, time.March, 2)),
		xp("/div-01/b", "project", 50, time.Time{}),
	}
	if got := TotalXP(records); got != 100 {
		t.Fatalf("TotalXP = %d, want 100", got)
	}
	buckets := AggregateMonthly(records)
	if len(buckets) != 1 || buckets[0].CumulativeTotal != 100 {
		t.Fatalf("buckets = %+v", buckets)
	}
}

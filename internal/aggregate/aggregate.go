// Package aggregate turns raw transaction records into the series consumed by
// the chart builders. Nothing here depends on rendering.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"xpdash/internal/core"
)

const (
	keyLayout        = "2006-01"
	labelLayout      = "Jan 2006"
	shortLabelLayout = "Jan 06"
)

// Aggregator buckets records into calendar months of a single location.
// The zero value buckets in UTC.
type Aggregator struct {
	Location *time.Location
}

// New returns an Aggregator bucketing in loc. A nil loc means UTC.
func New(loc *time.Location) Aggregator {
	return Aggregator{Location: loc}
}

func (a Aggregator) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

// AggregateMonthly filters records with core.CountsTowardTotal, groups the
// survivors by calendar month of CreatedAt and returns the buckets sorted by
// key with a running cumulative total. Records without a usable timestamp are
// skipped. Months with no surviving records are not synthesized.
func (a Aggregator) AggregateMonthly(records []core.TransactionRecord) []core.MonthlyBucket {
	loc := a.location()
	byKey := make(map[string]*core.MonthlyBucket)

	for _, rec := range records {
		if !rec.HasTimestamp() || !core.CountsTowardTotal(rec) {
			continue
		}
		t := rec.CreatedAt.In(loc)
		key := t.Format(keyLayout)
		b, ok := byKey[key]
		if !ok {
			month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
			b = &core.MonthlyBucket{
				Key:        key,
				Label:      month.Format(labelLayout),
				ShortLabel: month.Format(shortLabelLayout),
			}
			byKey[key] = b
		}
		b.PeriodTotal += rec.Amount
	}

	out := make([]core.MonthlyBucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	var running int64
	for i := range out {
		running += out[i].PeriodTotal
		out[i].CumulativeTotal = running
	}
	return out
}

// TotalXP sums the amounts of every timestamped record that counts toward the
// total. It always equals the last cumulative total of AggregateMonthly.
func (a Aggregator) TotalXP(records []core.TransactionRecord) int64 {
	var total int64
	for _, rec := range records {
		if rec.HasTimestamp() && core.CountsTowardTotal(rec) {
			total += rec.Amount
		}
	}
	return total
}

// AggregateMonthly buckets records in UTC.
func AggregateMonthly(records []core.TransactionRecord) []core.MonthlyBucket {
	return Aggregator{}.AggregateMonthly(records)
}

// TotalXP is Aggregator.TotalXP in UTC.
func TotalXP(records []core.TransactionRecord) int64 {
	return Aggregator{}.TotalXP(records)
}

// SkillScores maps skill transactions onto the fixed radar categories. Each
// category keeps the highest amount ever recorded for it; unmapped types are
// ignored and missing categories stay at zero. Values are clamped to 0..100.
func SkillScores(records []core.TransactionRecord) []core.SkillScore {
	best := make(map[string]float64, core.SkillAxisCount)
	for _, rec := range records {
		name, ok := core.SkillCategoryFor(rec.Type)
		if !ok {
			continue
		}
		if v := float64(rec.Amount); v > best[name] {
			best[name] = v
		}
	}

	out := core.ZeroSkills()
	for i := range out {
		out[i].Value = core.ClampPercent(best[out[i].Name])
	}
	return out
}

// AuditRatio sums "up" and "down" transactions and formats up/down with one
// decimal. The ratio is "0.0" when nothing was received.
func AuditRatio(records []core.TransactionRecord) core.AuditSummary {
	var s core.AuditSummary
	for _, rec := range records {
		switch rec.Type {
		case "up":
			s.Up += rec.Amount
		case "down":
			s.Down += rec.Amount
		}
	}
	if s.Down == 0 {
		s.Ratio = "0.0"
	} else {
		s.Ratio = fmt.Sprintf("%.1f", float64(s.Up)/float64(s.Down))
	}
	return s
}

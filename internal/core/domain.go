package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

type (
	// ObjectRef is the object descriptor attached to transactions and progress rows.
	ObjectRef struct {
		Name string `json:"name,omitempty"`
		Type string `json:"type,omitempty"`
	}

	// TransactionRecord is one ledger-style event as returned by the upstream API.
	// Records are owned by the caller and never mutated by the engine.
	TransactionRecord struct {
		Type      string    // xp, up, down, skill_go, ...
		Amount    int64     // zero when absent upstream
		CreatedAt time.Time // zero when absent or unparseable
		Path      string
		Object    ObjectRef
	}

	// MonthlyBucket aggregates the records sharing one calendar month.
	MonthlyBucket struct {
		Key             string `json:"key"` // YYYY-MM
		Label           string `json:"label"`
		ShortLabel      string `json:"shortLabel"`
		PeriodTotal     int64  `json:"periodTotal"`
		CumulativeTotal int64  `json:"cumulativeTotal"`
	}

	// SkillScore is a high-water mark for one skill category.
	SkillScore struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	Padding struct {
		Top    float64 `json:"top"`
		Right  float64 `json:"right"`
		Bottom float64 `json:"bottom"`
		Left   float64 `json:"left"`
	}

	// ViewportSpec is the caller-measured target area of one chart build.
	ViewportSpec struct {
		Width   float64 `json:"width"`
		Height  float64 `json:"height"`
		Padding Padding `json:"padding"`
	}

	User struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Email string `json:"email,omitempty"`
	}

	// AuditSummary holds audit XP given (up) and received (down).
	AuditSummary struct {
		Up    int64  `json:"up"`
		Down  int64  `json:"down"`
		Ratio string `json:"ratio"`
	}

	ProgressEntry struct {
		ID        int64     `json:"id"`
		Grade     float64   `json:"grade"`
		CreatedAt time.Time `json:"createdAt"`
		Path      string    `json:"path"`
		Object    ObjectRef `json:"object"`
	}
)

// ObjectType returns the object descriptor type of the record.
func (r TransactionRecord) ObjectType() string {
	return r.Object.Type
}

// HasTimestamp reports whether the record can be assigned to a calendar month.
func (r TransactionRecord) HasTimestamp() bool {
	return !r.CreatedAt.IsZero()
}

type transactionWire struct {
	Type      string          `json:"type,omitempty"`
	Amount    json.RawMessage `json:"amount,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	Path      string          `json:"path,omitempty"`
	Object    *ObjectRef      `json:"object,omitempty"`
}

// UnmarshalJSON decodes an upstream row leniently: a null or missing amount
// counts as zero and an unparseable timestamp leaves CreatedAt zero.
func (r *TransactionRecord) UnmarshalJSON(data []byte) error {
	var w transactionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = TransactionRecord{
		Type:      w.Type,
		Amount:    decodeAmount(w.Amount),
		CreatedAt: ParseTimestamp(w.CreatedAt),
		Path:      w.Path,
	}
	if w.Object != nil {
		r.Object = *w.Object
	}
	return nil
}

// MarshalJSON writes the record in the upstream wire shape.
func (r TransactionRecord) MarshalJSON() ([]byte, error) {
	w := struct {
		Type      string     `json:"type,omitempty"`
		Amount    int64      `json:"amount"`
		CreatedAt string     `json:"createdAt,omitempty"`
		Path      string     `json:"path,omitempty"`
		Object    *ObjectRef `json:"object,omitempty"`
	}{Type: r.Type, Amount: r.Amount, Path: r.Path}
	if !r.CreatedAt.IsZero() {
		w.CreatedAt = r.CreatedAt.Format(time.RFC3339Nano)
	}
	if r.Object != (ObjectRef{}) {
		obj := r.Object
		w.Object = &obj
	}
	return json.Marshal(w)
}

func decodeAmount(raw json.RawMessage) int64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		// amounts occasionally arrive as strings
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &f); err != nil {
			return 0
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(math.Round(f))
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses ISO-8601 style timestamps. It returns the zero time
// when s is empty or matches none of the accepted layouts.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

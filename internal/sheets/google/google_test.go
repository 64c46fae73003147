package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"xpdash/internal/core"
	"xpdash/internal/log"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, quietLogger())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("err = %v", err)
	}
}

func TestNewSheetsService_Credentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing client", Config{}, "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)"},
		{"missing token", Config{OAuthClientJSON: testClientJSON}, "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)"},
		{"invalid client", Config{OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"x"}`}, "oauth config"},
		{"invalid token", Config{OAuthClientJSON: testClientJSON, OAuthTokenJSON: "{nope"}, "oauth token"},
		{"unreadable client file", Config{OAuthClientFile: "/non/existent.json"}, "read oauth client file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newSheetsService(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	svc, err := newSheetsService(context.Background(), Config{OAuthClientJSON: testClientJSON, OAuthTokenJSON: `{"access_token":"x","token_type":"Bearer"}`})
	if err != nil || svc == nil {
		t.Errorf("valid credentials: svc=%v err=%v", svc, err)
	}
}

func TestSheetTitle(t *testing.T) {
	c := NewWithService(nil, "id", "", quietLogger())
	tests := []struct {
		login string
		want  string
	}{
		{"alice", "Progress - alice"},
		{" bob ", "Progress - bob"},
		{"o'neil!", "Progress - oneil"},
		{"", "Progress - unknown"},
	}
	for _, tt := range tests {
		if got := c.SheetTitle(tt.login); got != tt.want {
			t.Errorf("SheetTitle(%q) = %q, want %q", tt.login, got, tt.want)
		}
	}
}

// fakeSheets records the calls the client makes against the Sheets REST API.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	added    []string
	cleared  []string
	written  [][]any
	getCalls int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.added = append(f.added, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = io.WriteString(w, `{}`)
	case strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, path)
		_, _ = io.WriteString(w, `{}`)
	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		if r.URL.Query().Get("valueInputOption") != "RAW" {
			http.Error(w, "bad valueInputOption", http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written = vr.Values
		_, _ = io.WriteString(w, `{"updatedRange":"'Progress - alice'!A1:D3"}`)
	case r.Method == http.MethodGet:
		f.getCalls++
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sheet-id", "Progress", quietLogger())
}

func TestExportMonthly(t *testing.T) {
	f := &fakeSheets{titles: []string{"Sheet1"}}
	c := newFakeClient(t, f)

	buckets := []core.MonthlyBucket{
		{Key: "2024-01", Label: "Jan 2024", PeriodTotal: 100, CumulativeTotal: 100},
		{Key: "2024-02", Label: "Feb 2024", PeriodTotal: 250, CumulativeTotal: 350},
	}
	ref, err := c.ExportMonthly(context.Background(), "alice", buckets)
	if err != nil {
		t.Fatalf("ExportMonthly: %v", err)
	}
	if ref != "'Progress - alice'!A1:D3" {
		t.Errorf("ref = %q", ref)
	}
	if len(f.added) != 1 || f.added[0] != "Progress - alice" {
		t.Errorf("added = %v", f.added)
	}
	if len(f.cleared) != 1 {
		t.Errorf("cleared = %v", f.cleared)
	}
	if len(f.written) != 3 || f.written[0][0] != "Month" || f.written[2][0] != "2024-02" || f.written[2][3] != float64(350) {
		t.Errorf("written = %v", f.written)
	}

	// the tab now exists and the title list is cached
	if _, err := c.ExportMonthly(context.Background(), "alice", buckets); err != nil {
		t.Fatalf("second ExportMonthly: %v", err)
	}
	if len(f.added) != 1 || f.getCalls != 1 {
		t.Errorf("added = %v, getCalls = %d", f.added, f.getCalls)
	}
}

func TestExportMonthly_NoService(t *testing.T) {
	c := NewWithService(nil, "id", "Progress", quietLogger())
	if _, err := c.ExportMonthly(context.Background(), "alice", nil); err == nil {
		t.Fatal("expected error without service")
	}
}

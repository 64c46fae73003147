package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeEngine answers each query with the response registered for the first
// keyword the query contains.
func fakeEngine(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		for key, body := range responses {
			if strings.Contains(req.Query, key) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
				return
			}
		}
		t.Errorf("unexpected query %q", req.Query)
	}))
}

func TestClient_XPTransactions(t *testing.T) {
	srv := fakeEngine(t, map[string]string{
		`_eq: "xp"`: `{"data":{"transaction":[
			{"id":1,"amount":500,"createdAt":"2024-01-10T08:00:00+00:00","path":"/gr/div-01/a","object":{"name":"a","type":"project"}},
			{"id":2,"amount":null,"createdAt":"not a date","path":"/gr/div-01/b","object":{"type":"exercise"}}
		]}}`,
	})
	defer srv.Close()

	txs, err := NewClient(srv.URL, srv.Client()).XPTransactions(context.Background(), "tok")
	if err != nil {
		t.Fatalf("XPTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions", len(txs))
	}
	if txs[0].Type != "xp" || txs[0].Amount != 500 || txs[0].ObjectType() != "project" || !txs[0].HasTimestamp() {
		t.Errorf("first = %+v", txs[0])
	}
	if txs[1].Amount != 0 || txs[1].HasTimestamp() {
		t.Errorf("second = %+v", txs[1])
	}
}

func TestClient_User(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantEmail string
	}{
		{"list with attrs", `{"data":{"user":[{"id":12,"login":"alice","attrs":{"email":"alice@example.com"}}]}}`, "alice@example.com"},
		{"object without attrs", `{"data":{"user":{"id":12,"login":"alice"}}}`, "alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := fakeEngine(t, map[string]string{"user": tt.body})
			defer srv.Close()
			u, err := NewClient(srv.URL, srv.Client()).User(context.Background(), "tok")
			if err != nil {
				t.Fatalf("User: %v", err)
			}
			if u.ID != 12 || u.Login != "alice" || u.Email != tt.wantEmail {
				t.Errorf("user = %+v", u)
			}
		})
	}
}

func TestClient_Errors(t *testing.T) {
	srv := fakeEngine(t, map[string]string{
		"skill_":   `{"errors":[{"message":"field not found"},{"message":"other"}]}`,
		"progress": `{"errors":[{"message":"Could not verify JWT: JWTExpired"}]}`,
	})
	defer srv.Close()
	c := NewClient(srv.URL, srv.Client())

	_, err := c.SkillTransactions(context.Background(), "tok")
	var gqlErr *Error
	if !errors.As(err, &gqlErr) || gqlErr.Message != "field not found" || gqlErr.Count != 2 {
		t.Fatalf("err = %v", err)
	}

	if _, err := c.Progress(context.Background(), "tok"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expired jwt: err = %v", err)
	}

	if _, err := c.AuditTransactions(context.Background(), "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("401: err = %v", err)
	}
}

func TestClient_Progress(t *testing.T) {
	srv := fakeEngine(t, map[string]string{
		"progress": `{"data":{"progress":[{"id":3,"grade":1.2,"createdAt":"2024-05-01T10:00:00Z","path":"/p","object":{"type":"project"}},{"id":4,"grade":null,"path":"/q"}]}}`,
	})
	defer srv.Close()

	entries, err := NewClient(srv.URL, srv.Client()).Progress(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if len(entries) != 2 || entries[0].Grade != 1.2 || entries[1].Grade != 0 || entries[0].CreatedAt.IsZero() {
		t.Errorf("entries = %+v", entries)
	}
}

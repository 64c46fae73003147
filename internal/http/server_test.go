package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"xpdash/internal/auth"
	"xpdash/internal/chart"
	"xpdash/internal/core"
	"xpdash/internal/graphql"
	"xpdash/internal/log"
	"xpdash/internal/services"
)

type fakeProfiles struct {
	mu          sync.Mutex
	profile     services.Profile
	err         error
	invalidated []int64
}

func (f *fakeProfiles) Load(ctx context.Context, token string) (services.Profile, error) {
	if f.err != nil {
		return services.Profile{}, f.err
	}
	return f.profile, nil
}

func (f *fakeProfiles) Invalidate(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
}

type fakeAuth struct {
	token string
	err   error
	url   string
}

func (f fakeAuth) SignIn(ctx context.Context, identifier, secret string) (auth.Session, error) {
	if f.err != nil {
		return auth.Session{}, f.err
	}
	return auth.ParseSession(f.token)
}

func (f fakeAuth) SignInURL() string { return f.url }

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func testToken(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func sampleProfile() services.Profile {
	return services.Profile{
		User:         core.User{ID: 7, Login: "jdoe"},
		TotalXP:      1500000,
		TotalXPLabel: "1.50 MB",
		Buckets: []core.MonthlyBucket{
			{Key: "2024-01", Label: "Jan 2024", ShortLabel: "Jan", PeriodTotal: 500000, CumulativeTotal: 500000},
			{Key: "2024-02", Label: "Feb 2024", ShortLabel: "Feb", PeriodTotal: 1000000, CumulativeTotal: 1500000},
		},
		Skills:    []core.SkillScore{{Name: core.SkillFrontend, Value: 40}, {Name: core.SkillGo, Value: 65}},
		Audit:     core.AuditSummary{Up: 3000, Down: 2000, Ratio: "1.5"},
		FetchedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

type testEnv struct {
	srv      *Server
	profiles *fakeProfiles
	token    string
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		profiles: &fakeProfiles{profile: sampleProfile()},
		token:    testToken(t, 7),
	}
	deps := Deps{
		Profiles: env.profiles,
		Auth:     fakeAuth{token: env.token},
		Sessions: auth.NewSessions(0),
		Store:    fakePinger{},
	}
	if mutate != nil {
		mutate(&deps)
	}
	logger := log.New(log.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})
	env.srv = NewServer(":0", deps, Options{Logger: logger, RateLimitRPS: 1000, RateLimitBurst: 1000})
	t.Cleanup(func() { env.srv.rateLimiter.Stop() })
	return env
}

func (e *testEnv) do(req *http.Request, withSession bool) *httptest.ResponseRecorder {
	if withSession {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: e.token})
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil), false)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body)
		}
	}

	rr := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "chart_builds_total") {
		t.Fatalf("metrics status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestReadyFailsWhenStoreDown(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.Store = fakePinger{err: errors.New("disk gone")} })

	rr := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
}

func TestIndex(t *testing.T) {
	t.Run("redirects without session", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil), false)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
			t.Fatalf("status=%d location=%q", rr.Code, rr.Header().Get("Location"))
		}
	})

	t.Run("renders dashboard", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil), true)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
		}
		body := rr.Body.String()
		for _, want := range []string{"jdoe", "1.50 MB", "1.5", `id="xpChart"`, `id="skillsChart"`} {
			if !strings.Contains(body, want) {
				t.Errorf("dashboard missing %q", want)
			}
		}
		if strings.Contains(body, "staleBanner") {
			t.Error("fresh profile shows stale banner")
		}
	})

	t.Run("stale profile shows banner", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.profiles.profile.Stale = true
		rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil), true)
		if !strings.Contains(rr.Body.String(), "staleBanner") {
			t.Fatal("stale banner missing")
		}
	})

	t.Run("unauthorized upstream ends session", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.profiles.err = graphql.ErrUnauthorized
		rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil), true)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("status=%d", rr.Code)
		}
		if env.srv.deps.Sessions.Valid(env.token) {
			t.Error("session still valid after unauthorized load")
		}
	})

	t.Run("upstream failure offers retry", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.profiles.err = errors.New("connection refused")
		rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil), true)
		if rr.Code != http.StatusBadGateway {
			t.Fatalf("status=%d", rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "retryButton") {
			t.Error("retry control missing")
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil), true)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status=%d", rr.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	form := func(v url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(v.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	t.Run("get renders form", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(httptest.NewRequest(http.MethodGet, "/login", nil), false)
		if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `id="loginForm"`) {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	t.Run("get with session redirects home", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(httptest.NewRequest(http.MethodGet, "/login", nil), true)
		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
			t.Fatalf("status=%d", rr.Code)
		}
	})

	tests := []struct {
		name       string
		authErr    error
		values     url.Values
		wantStatus int
		wantCookie bool
	}{
		{"missing password", nil, url.Values{"identifier": {"jdoe"}}, http.StatusUnprocessableEntity, false},
		{"bad credentials", auth.ErrInvalidCredentials, url.Values{"identifier": {"jdoe"}, "password": {"x"}}, http.StatusUnauthorized, false},
		{"upstream down", errors.New("dial tcp: refused"), url.Values{"identifier": {"jdoe"}, "password": {"x"}}, http.StatusBadGateway, false},
		{"success", nil, url.Values{"identifier": {"jdoe"}, "password": {"secret pass"}}, http.StatusSeeOther, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(d *Deps) {
				d.Auth = fakeAuth{token: testToken(t, 7), err: tt.authErr}
			})
			rr := env.do(form(tt.values), false)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d", rr.Code, tt.wantStatus)
			}
			gotCookie := false
			for _, c := range rr.Result().Cookies() {
				if c.Name == sessionCookie && c.Value != "" {
					gotCookie = true
					if !c.HttpOnly {
						t.Error("session cookie not HttpOnly")
					}
				}
			}
			if gotCookie != tt.wantCookie {
				t.Errorf("cookie set = %v, want %v", gotCookie, tt.wantCookie)
			}
		})
	}

	t.Run("json body", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"identifier":"jdoe","password":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := env.do(req, false)
		if rr.Code != http.StatusOK {
			t.Fatalf("status=%d", rr.Code)
		}
		var body struct {
			UserID int64 `json:"userId"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil || body.UserID != 7 {
			t.Fatalf("body=%+v err=%v", body, err)
		}
	})
}

func TestLogoutAndRefresh(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/logout", nil), true)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /logout status=%d", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodPost, "/refresh", nil), true)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("refresh status=%d", rr.Code)
	}

	rr = env.do(httptest.NewRequest(http.MethodPost, "/logout", nil), true)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("logout status=%d", rr.Code)
	}
	if env.srv.deps.Sessions.Valid(env.token) {
		t.Error("token still valid after logout")
	}
	if len(env.profiles.invalidated) != 2 {
		t.Errorf("invalidated = %v, want two entries", env.profiles.invalidated)
	}

	req := httptest.NewRequest(http.MethodPost, "/refresh", nil)
	req.Header.Set("Accept", "application/json")
	rr = env.do(req, true)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status=%d", rr.Code)
	}
}

func TestProfileAPI(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/profile", nil), false)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	rr = env.do(req, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	var p services.Profile
	if err := json.NewDecoder(rr.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.User.Login != "jdoe" || p.TotalXP != 1500000 || len(p.Buckets) != 2 {
		t.Errorf("profile = %+v", p)
	}
}

func TestChartEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		loadErr    error
		session    bool
		wantStatus int
	}{
		{"xp", "/api/charts/xp?w=640&h=320", nil, true, http.StatusOK},
		{"skills", "/api/charts/skills?w=400&h=400", nil, true, http.StatusOK},
		{"defaults", "/api/charts/xp", nil, true, http.StatusOK},
		{"no session", "/api/charts/xp", nil, false, http.StatusUnauthorized},
		{"non numeric", "/api/charts/xp?w=wide", nil, true, http.StatusBadRequest},
		{"negative", "/api/charts/skills?w=-1&h=10", nil, true, http.StatusBadRequest},
		{"padding exceeds", "/api/charts/xp?w=20&h=20", nil, true, http.StatusBadRequest},
		{"upstream down", "/api/charts/skills", errors.New("timeout"), true, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.profiles.err = tt.loadErr
			rr := env.do(httptest.NewRequest(http.MethodGet, tt.path, nil), tt.session)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d body=%s", rr.Code, tt.wantStatus, rr.Body)
			}
			if rr.Code != http.StatusOK {
				return
			}
			var g chart.Geometry
			if err := json.NewDecoder(rr.Body).Decode(&g); err != nil {
				t.Fatal(err)
			}
			if g.Root == nil || g.Width <= 0 || g.Height <= 0 || len(g.Interactions) == 0 {
				t.Errorf("geometry = %+v", g)
			}
		})
	}
}

func TestChartMarksStaleData(t *testing.T) {
	env := newTestEnv(t, nil)
	env.profiles.profile.Stale = true
	rr := env.do(httptest.NewRequest(http.MethodGet, "/api/charts/xp", nil), true)
	if rr.Header().Get("X-Data-Stale") != "true" {
		t.Fatalf("X-Data-Stale = %q", rr.Header().Get("X-Data-Stale"))
	}
}

func TestProxyEndpoints(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") == "Bearer bad" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"path":"` + r.URL.Path + `","echo":` + strconv.Quote(string(body)) + `}`))
	}))
	defer upstream.Close()

	env := newTestEnv(t, func(d *Deps) {
		d.Auth = fakeAuth{url: upstream.URL + "/api/auth/signin"}
		d.GraphQLEndpoint = upstream.URL + graphql.DefaultPath
		d.Upstream = upstream.Client()
	})

	tests := []struct {
		name       string
		method     string
		path       string
		authHeader string
		wantStatus int
		wantBody   string
	}{
		{"signin", http.MethodPost, "/api/auth/signin", "Basic amRvZTp4", http.StatusOK, `"path":"/api/auth/signin"`},
		{"graphql", http.MethodPost, "/api/graphql", "Bearer tok", http.StatusOK, `"echo":"{\"query\":\"{ user { id } }\"}"`},
		{"upstream status relayed", http.MethodPost, "/api/graphql", "Bearer bad", http.StatusUnauthorized, "invalid"},
		{"missing authorization", http.MethodPost, "/api/graphql", "", http.StatusUnauthorized, "Authorization header required"},
		{"wrong method", http.MethodGet, "/api/auth/signin", "Basic x", http.StatusMethodNotAllowed, ""},
		{"preflight", http.MethodOptions, "/api/graphql", "", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"query":"{ user { id } }"}`))
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := env.do(req, false)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d body=%s", rr.Code, tt.wantStatus, rr.Body)
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want substring %s", rr.Body, tt.wantBody)
			}
			if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Errorf("missing CORS header")
			}
		})
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/login", nil), false)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", rr.Header().Get("X-Content-Type-Options"))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/static/charts.js", "/static/app.css"} {
		rr := env.do(httptest.NewRequest(http.MethodGet, path, nil), false)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

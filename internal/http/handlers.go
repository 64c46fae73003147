package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"xpdash/internal/auth"
	"xpdash/internal/graphql"
	"xpdash/internal/log"
	"xpdash/internal/services"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.deps.Profiles == nil || s.deps.Auth == nil {
		checks["upstream"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["upstream"] = "ok"
	}

	switch {
	case s.deps.Store == nil:
		checks["snapshot_store"] = "not_configured"
	default:
		if err := s.deps.Store.Ping(ctx); err != nil {
			checks["snapshot_store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["snapshot_store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	w.WriteHeader(http.StatusOK)
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("profile_loads_total", "Total number of profile loads", "counter", atomic.LoadInt64(&s.appMetrics.profileLoads))
	metric("profile_stale_total", "Profiles served from a stored snapshot", "counter", atomic.LoadInt64(&s.appMetrics.staleServed))
	metric("chart_builds_total", "Total number of chart geometries built", "counter", atomic.LoadInt64(&s.appMetrics.chartBuilds))
	metric("login_failures_total", "Total number of failed sign-ins", "counter", atomic.LoadInt64(&s.appMetrics.loginFailures))
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	metric("uptime_seconds", "Application uptime in seconds", "gauge", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

type dashboardData struct {
	Profile services.Profile
	Error   string
}

type loginData struct {
	Identifier string
	Error      string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Page not found").Write(w)
		return
	}
	if rb := RequireGET(r); rb != nil {
		rb.Write(w)
		return
	}

	sess, ok := s.session(r)
	if !ok {
		s.clearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	p, err := s.loadProfile(r.Context(), sess)
	if errors.Is(err, graphql.ErrUnauthorized) {
		s.deps.Sessions.Invalidate(sess.Token)
		s.clearSessionCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	status := http.StatusOK
	data := dashboardData{Profile: p}
	if err != nil {
		status = http.StatusBadGateway
		data.Error = userMessage(err)
	}
	s.render(w, r, status, "dashboard.html", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if rb := RequireMethod(r, http.MethodGet, http.MethodHead, http.MethodPost); rb != nil {
		rb.Write(w)
		return
	}
	if r.Method != http.MethodPost {
		if _, ok := s.session(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, http.StatusOK, "login.html", loginData{})
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	identifier := parser.Get("identifier")
	password := parser.GetSecret("password")
	asJSON := parser.IsJSON() || wantsJSON(r)

	fail := func(status int, msg string) {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		if asJSON {
			writeJSONError(w, status, msg)
			return
		}
		s.render(w, r, status, "login.html", loginData{Identifier: identifier, Error: msg})
	}

	if identifier == "" || password == "" {
		fail(http.StatusUnprocessableEntity, "Please enter both username/email and password")
		return
	}

	sess, err := s.deps.Auth.SignIn(r.Context(), identifier, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.InfoContext(r.Context(), "Sign-in rejected", log.FieldComponent, log.ComponentAuth, log.FieldLogin, identifier)
			fail(http.StatusUnauthorized, userMessage(err))
			return
		}
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Sign-in failed", err, log.ComponentAuth, log.OpSignIn, nil)
		fail(http.StatusBadGateway, userMessage(err))
		return
	}

	s.setSessionCookie(w, sess)
	s.logger.InfoContext(r.Context(), "Signed in", log.FieldComponent, log.ComponentAuth, log.FieldUserID, sess.UserID)
	if asJSON {
		writeJSON(w, http.StatusOK, map[string]any{"userId": sess.UserID, "expiresAt": sess.ExpiresAt})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	if token := sessionToken(r); token != "" {
		if sess, err := auth.ParseSession(token); err == nil && s.deps.Profiles != nil {
			s.deps.Profiles.Invalidate(sess.UserID)
		}
		s.deps.Sessions.Invalidate(token)
	}
	s.clearSessionCookie(w)

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleRefresh drops the cached profile so the next load refetches it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}
	sess, ok := s.session(r)
	if !ok {
		if wantsJSON(r) {
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.deps.Profiles.Invalidate(sess.UserID)

	if wantsJSON(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleProfileAPI(w http.ResponseWriter, r *http.Request) {
	if rb := RequireGET(r); rb != nil {
		rb.Write(w)
		return
	}
	p, ok := s.apiProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// apiProfile authenticates an API request and loads its profile, writing the
// error response itself when it returns false.
func (s *Server) apiProfile(w http.ResponseWriter, r *http.Request) (services.Profile, bool) {
	sess, ok := s.session(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "authentication required")
		return services.Profile{}, false
	}
	p, err := s.loadProfile(r.Context(), sess)
	switch {
	case errors.Is(err, graphql.ErrUnauthorized):
		s.deps.Sessions.Invalidate(sess.Token)
		writeJSONError(w, http.StatusUnauthorized, userMessage(auth.ErrExpired))
		return services.Profile{}, false
	case err != nil:
		writeJSONError(w, http.StatusBadGateway, userMessage(err))
		return services.Profile{}, false
	}
	return p, true
}

func (s *Server) loadProfile(ctx context.Context, sess auth.Session) (services.Profile, error) {
	p, err := s.deps.Profiles.Load(ctx, sess.Token)
	if err != nil {
		log.NewStructuredLogger(s.logger).LogError(ctx, "Profile load failed", err, log.ComponentProfile, log.OpLoad,
			log.Fields{log.FieldUserID: sess.UserID})
		return services.Profile{}, err
	}
	atomic.AddInt64(&s.appMetrics.profileLoads, 1)
	if p.Stale {
		atomic.AddInt64(&s.appMetrics.staleServed, 1)
	}
	return p, nil
}

// render executes a template into a buffer so a failing template never
// leaves a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldComponent, log.ComponentTemplate,
			"template", name,
			log.FieldError, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

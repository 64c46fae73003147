// Package http serves the dashboard pages, the chart geometry API and the
// upstream proxy endpoints.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"xpdash/internal/auth"
	"xpdash/internal/log"
	"xpdash/internal/middleware/ratelimit"
	"xpdash/internal/middleware/security"
	"xpdash/internal/middleware/trace"
	"xpdash/internal/services"
	appweb "xpdash/web"
)

// ProfileLoader is the profile service as seen by the handlers.
type ProfileLoader interface {
	Load(ctx context.Context, token string) (services.Profile, error)
	Invalidate(userID int64)
}

// Authenticator exchanges credentials for a session.
type Authenticator interface {
	SignIn(ctx context.Context, identifier, secret string) (auth.Session, error)
	SignInURL() string
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Store may be nil.
type Deps struct {
	Profiles ProfileLoader
	Auth     Authenticator
	Sessions *auth.Sessions
	Store    Pinger

	// GraphQLEndpoint is where /api/graphql forwards to.
	GraphQLEndpoint string
	// Upstream performs proxied requests.
	Upstream *http.Client
}

// Options tunes the server. Zero fields take defaults.
type Options struct {
	CORSOrigin     string
	CookieSecure   bool
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *log.Logger
}

type appMetrics struct {
	uptime        time.Time
	profileLoads  int64
	chartBuilds   int64
	loginFailures int64
	staleServed   int64
}

type Server struct {
	http.Server
	templates *template.Template
	deps      Deps
	opts      Options
	logger    *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates.
func NewServer(addr string, deps Deps, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if deps.Upstream == nil {
		deps.Upstream = &http.Client{Timeout: 20 * time.Second}
	}
	if deps.Sessions == nil {
		deps.Sessions = auth.NewSessions(0)
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: opts.RateLimitRPS,
			Burst:             opts.RateLimitBurst,
		}),
		securityDetector: security.NewDetector(opts.Logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.traceMiddleware = trace.NewMiddleware(opts.Logger, s.securityDetector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldComponent, log.ComponentTemplate, log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.writeRateLimited)
	cors := security.CORS(opts.CORSOrigin)

	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/refresh", s.handleRefresh)

	mux.Handle("/api/profile", limited(http.HandlerFunc(s.handleProfileAPI)))
	mux.Handle("/api/charts/xp", limited(http.HandlerFunc(s.handleXPChart)))
	mux.Handle("/api/charts/skills", limited(http.HandlerFunc(s.handleSkillsChart)))

	mux.Handle("/api/auth/signin", cors(limited(http.HandlerFunc(s.handleProxySignIn))))
	mux.Handle("/api/graphql", cors(limited(http.HandlerFunc(s.handleProxyGraphQL))))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(s.securityDetector.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

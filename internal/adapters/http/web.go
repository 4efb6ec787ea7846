package web

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"time"

	"territorios/internal/adapters/email"
	"territorios/internal/adapters/http/middleware"
	"territorios/internal/adapters/http/perf"
	"territorios/internal/application/orchestrators"
	"territorios/internal/application/state"
)

//go:embed templates/*.html static
var assets embed.FS

// Deps holds everything the handlers reach for.
type Deps struct {
	Gateway   orchestrators.TerritoryGateway
	State     *state.State
	Collector *perf.Collector
	Sender    email.Sender
	// Mode is reported by /healthz: "remote" or "demo".
	Mode       string
	PrintDelay time.Duration
	ReportTo   []string
	// StaticDir overrides the embedded stylesheet when set.
	StaticDir string
	Now       func() time.Time
}

// Options configures the middleware chain.
type Options struct {
	CSRFKey        []byte
	Secure         bool
	TrustedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int
	SlowRequest    time.Duration
}

// Global dependencies (set by NewMux)
var deps *Deps

// Global perf collector (set by NewMux)
var perfCollector *perf.Collector

// timeNow is a variable for testability.
var timeNow = time.Now

// NewMux wires HTTP handlers for the app. ctx bounds the rate limiter's
// cleanup goroutine.
// PRE: d.Gateway and d.State are non-nil; opts.CSRFKey is 32 bytes
// POST: returns the fully wrapped handler
func NewMux(ctx context.Context, d *Deps, opts Options) http.Handler {
	setDeps(d)

	mux := http.NewServeMux()
	registerRoutes(mux)

	limiter := middleware.NewRateLimiter(ctx, opts.RateLimitRPS, opts.RateLimitBurst)

	// Apply middleware: Timing -> RateLimit -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(opts.CSRFKey, opts.Secure, opts.TrustedOrigins),
		middleware.RateLimit(limiter),
		middleware.Timing(d.Collector, opts.SlowRequest),
	)
}

func setDeps(d *Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Mode == "" {
		d.Mode = "remote"
	}
	deps = d
	perfCollector = d.Collector
	timeNow = d.Now
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", handleTerritories)
	mux.HandleFunc("POST /territories/{id}", handleSaveTerritory)
	mux.HandleFunc("POST /reload", handleReload)
	mux.HandleFunc("GET /report/s13", handleS13Report)
	mux.HandleFunc("POST /report/s13/email", handleEmailS13Report)
	mux.HandleFunc("GET /api/territories", handleAPITerritories)
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /debug/perf", handlePerf)
	mux.Handle("GET /static/", staticHandler())
}

func staticHandler() http.Handler {
	if deps != nil && deps.StaticDir != "" {
		return http.StripPrefix("/static/", http.FileServer(http.Dir(deps.StaticDir)))
	}
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

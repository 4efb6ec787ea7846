package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	emailPkg "territorios/internal/adapters/email"
	"territorios/internal/adapters/gateway"
	web "territorios/internal/adapters/http"
	"territorios/internal/adapters/http/perf"
	"territorios/internal/adapters/storage"
	territoryStore "territorios/internal/adapters/storage/territory"
	"territorios/internal/application/orchestrators"
	"territorios/internal/application/state"
	"territorios/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// shutdownTimeout bounds how long in-flight requests get on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(config.DefaultEnvFiles)
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h).With("version", version))
}

func run(ctx context.Context, cfg *config.Config) error {
	collector := perf.NewCollector(perf.DefaultRingSize)

	gw, mode, closeGateway, err := newGateway(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer closeGateway()

	st := state.New()
	loadDeps := orchestrators.LoadTerritoriesDeps{Gateway: gw, State: st, Now: time.Now}
	if _, err := orchestrators.ExecuteLoadTerritories(ctx, loadDeps); err != nil {
		// The grid shows the failure; a later reload can recover.
		slog.Warn("initial_load_failed", "error", err)
	}

	sender := emailPkg.NewSender(cfg.ResendKey, cfg.ReportFrom)
	if cfg.ResendKey == "" {
		if cfg.IsProduction() {
			slog.Warn("email_disabled", "hint", "set "+config.Prefix+"RESEND_KEY to deliver S-13 reports")
		} else {
			slog.Info("email_noop", "hint", "set "+config.Prefix+"RESEND_KEY for real delivery")
		}
	}

	handler := web.NewMux(ctx, &web.Deps{
		Gateway:    gw,
		State:      st,
		Collector:  collector,
		Sender:     sender,
		Mode:       mode,
		PrintDelay: cfg.PrintDelay,
		ReportTo:   cfg.ReportTo,
		StaticDir:  cfg.StaticDir,
		Now:        time.Now,
	}, web.Options{
		CSRFKey:        cfg.CSRFKey(),
		Secure:         cfg.IsProduction(),
		TrustedOrigins: cfg.TrustedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		SlowRequest:    cfg.SlowRequest,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "addr", cfg.Addr, "env", cfg.Env, "mode", mode)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newGateway returns the remote gateway when an endpoint is configured and a
// SQLite-backed demo gateway seeded with fixtures otherwise.
func newGateway(ctx context.Context, cfg *config.Config, collector *perf.Collector) (orchestrators.TerritoryGateway, string, func(), error) {
	if !cfg.DemoMode() {
		gw := gateway.NewRemoteGateway(cfg.APIURL, cfg.HTTPTimeout, gateway.WithCollector(collector))
		return gw, "remote", func() {}, nil
	}

	db, err := sql.Open("sqlite", cfg.DemoDSN)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open demo database: %w", err)
	}
	// A single connection keeps an in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", nil, fmt.Errorf("demo database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		return nil, "", nil, fmt.Errorf("init demo database: %w", err)
	}

	timedDB := storage.NewTimedDB(db, collector, cfg.SlowQuery)
	store := territoryStore.NewSQLiteStore(timedDB)
	seeded, err := gateway.SeedFixtures(ctx, store)
	if err != nil {
		db.Close()
		return nil, "", nil, fmt.Errorf("seed fixtures: %w", err)
	}
	slog.Info("demo_mode", "dsn", cfg.DemoDSN, "seeded", seeded)

	closeDB := func() {
		if err := timedDB.Close(); err != nil {
			slog.Warn("demo_db_close_failed", "error", err)
		}
	}
	return gateway.NewDemoGateway(store, collector, time.Now), "demo", closeDB, nil
}

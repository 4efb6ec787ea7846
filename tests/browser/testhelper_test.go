package browser_test

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"territorios/internal/adapters/email"
	"territorios/internal/adapters/gateway"
	web "territorios/internal/adapters/http"
	"territorios/internal/adapters/http/perf"
	"territorios/internal/adapters/storage"
	territoryStore "territorios/internal/adapters/storage/territory"
	"territorios/internal/application/orchestrators"
	"territorios/internal/application/state"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	State   *state.State
	Store   *territoryStore.SQLiteStore
}

// newTestApp wires the app in demo mode over a temp SQLite file and starts an
// HTTP server. The test is skipped when Playwright's driver is unavailable.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("failed to init test DB: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	collector := perf.NewCollector(256)
	store := territoryStore.NewSQLiteStore(storage.NewTimedDB(db, collector, 0))
	if _, err := gateway.SeedFixtures(ctx, store); err != nil {
		t.Fatalf("failed to seed fixtures: %v", err)
	}
	gw := gateway.NewDemoGateway(store, collector, time.Now)

	st := state.New()
	if _, err := orchestrators.ExecuteLoadTerritories(ctx, orchestrators.LoadTerritoriesDeps{
		Gateway: gw, State: st, Now: time.Now,
	}); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	handler := web.NewMux(ctx, &web.Deps{
		Gateway:    gw,
		State:      st,
		Collector:  collector,
		Sender:     email.NewNoopSender(),
		Mode:       "demo",
		PrintDelay: time.Hour, // keep the print dialog out of the way
		Now:        time.Now,
	}, web.Options{
		CSRFKey:        []byte("0123456789abcdef0123456789abcdef"),
		TrustedOrigins: []string{fmt.Sprintf("127.0.0.1:%d", port), fmt.Sprintf("localhost:%d", port)},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: handler,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		cancel()
		srv.Close()
		db.Close()
		t.Skipf("playwright unavailable: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		cancel()
		srv.Close()
		db.Close()
		t.Skipf("chromium unavailable: %v", err)
	}

	app := &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		State:   st,
		Store:   store,
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		cancel()
		db.Close()
	})

	return app
}

// newPage creates a new browser page (tab).
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	page, err := a.Browser.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

// gotoPath navigates to path and fails the test on error.
func (a *testApp) gotoPath(t *testing.T, page playwright.Page, path string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + path); err != nil {
		t.Fatalf("failed to navigate to %s: %v", path, err)
	}
}

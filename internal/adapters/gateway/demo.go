package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"territorios/internal/adapters/http/perf"
	storeTerritory "territorios/internal/adapters/storage/territory"
	"territorios/internal/domain/territory"
)

// DemoGateway serves the fixture store in place of the remote endpoint.
type DemoGateway struct {
	// mu serializes Save so each read-modify-write sees the previous one.
	mu        sync.Mutex
	store     storeTerritory.Store
	collector *perf.Collector
	now       func() time.Time
}

// NewDemoGateway creates a gateway over store.
// PRE: store is non-nil; collector may be nil
func NewDemoGateway(store storeTerritory.Store, collector *perf.Collector, now func() time.Time) *DemoGateway {
	if now == nil {
		now = time.Now
	}
	return &DemoGateway{store: store, collector: collector, now: now}
}

// FetchAll lists the fixture territories.
// PRE: none
// POST: failures wrap ErrLoadFailure
func (g *DemoGateway) FetchAll(ctx context.Context) (list []territory.Territory, err error) {
	start := time.Now()
	defer func() { record(g.collector, "FetchAll", start, 0, err) }()

	list, err = g.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	return list, nil
}

// Save applies the edit to the stored territory, archiving a completed cycle.
// PRE: edit has been normalized
// POST: Dispatch.Verified is true; an unknown id is reported as not found
// INVARIANT: concurrent completions each archive their own entry
func (g *DemoGateway) Save(ctx context.Context, edit territory.Edit) (d territory.Dispatch, err error) {
	start := time.Now()
	defer func() { record(g.collector, "Save", start, 0, err) }()

	g.mu.Lock()
	defer g.mu.Unlock()

	current, err := g.store.GetByID(ctx, edit.ID)
	if err != nil {
		return territory.Dispatch{}, err
	}
	updated, err := territory.ApplyEdit(current, edit)
	if err != nil {
		return territory.Dispatch{}, err
	}
	if err := g.store.Save(ctx, updated); err != nil {
		return territory.Dispatch{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	slog.Info("territory_event", "event", "demo_saved", "id", edit.ID,
		"status", updated.Status, "history", len(updated.History))
	return territory.Dispatch{ID: edit.ID, DispatchedAt: g.now(), Verified: true}, nil
}

// Fixtures returns the demo territories.
func Fixtures() []territory.Territory {
	return []territory.Territory{
		{ID: "1", Name: "Territorio 101 - Comercial", Status: "Disponible", MapURL: "https://maps.google.com"},
		{ID: "2", Name: "Territorio 102 - Residencial", Status: "Incompleto", Publisher: "Familia Gómez",
			StartDate: "2023-10-01", Notes: "Falta la manzana de la esquina"},
		{ID: "3", Name: "Territorio 103 - Rural", Status: "Completo", Publisher: "Hno. López",
			StartDate: "2023-09-01", EndDate: "2023-09-20"},
	}
}

// SeedFixtures stores the demo territories into an empty store.
// PRE: store is initialized
// POST: no-op when the store already holds territories
func SeedFixtures(ctx context.Context, store storeTerritory.Store) (int, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for _, t := range Fixtures() {
		if err := store.Save(ctx, t); err != nil {
			return 0, fmt.Errorf("seed %s: %w", t.ID, err)
		}
	}
	slog.Info("territory_event", "event", "fixtures_seeded", "count", len(Fixtures()))
	return len(Fixtures()), nil
}

package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"territorios/internal/application/state"
	"territorios/internal/domain/territory"
)

// TerritoryGateway is the read/write boundary to the backing spreadsheet.
type TerritoryGateway interface {
	FetchAll(ctx context.Context) ([]territory.Territory, error)
	Save(ctx context.Context, edit territory.Edit) (territory.Dispatch, error)
}

// LoadTerritoriesDeps holds dependencies for LoadTerritories.
type LoadTerritoriesDeps struct {
	Gateway TerritoryGateway
	State   *state.State
	Now     func() time.Time
}

// LoadTerritoriesResult carries the outcome of a load.
type LoadTerritoriesResult struct {
	Count      int
	Duplicates int
}

// ExecuteLoadTerritories fetches the full list and replaces the State with it.
// PRE: deps are non-nil
// POST: on success the State holds the fetched list with history backfilled;
// on failure the previous list stays in place and the error is recorded
// INVARIANT: loads never overlap; ids in the State are unique
func ExecuteLoadTerritories(ctx context.Context, deps LoadTerritoriesDeps) (LoadTerritoriesResult, error) {
	unlock := deps.State.LockLoad()
	defer unlock()

	list, err := deps.Gateway.FetchAll(ctx)
	if err != nil {
		deps.State.RecordLoadFailure(err, deps.Now())
		slog.Error("territory_event", "event", "load_failed", "error", err)
		return LoadTerritoriesResult{}, err
	}

	seen := make(map[string]bool, len(list))
	clean := make([]territory.Territory, 0, len(list))
	dupes := 0
	for _, t := range list {
		id := strings.TrimSpace(t.ID)
		if id == "" || seen[id] {
			dupes++
			slog.Warn("territory_event", "event", "record_skipped", "id", t.ID, "reason", "empty or duplicate id")
			continue
		}
		seen[id] = true
		t.ID = id
		clean = append(clean, territory.BackfillHistory(t))
	}

	deps.State.Replace(clean, deps.Now())
	slog.Info("territory_event", "event", "loaded", "count", len(clean), "skipped", dupes)
	return LoadTerritoriesResult{Count: len(clean), Duplicates: dupes}, nil
}

package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"territorios/internal/application/state"
	"territorios/internal/domain/territory"
)

// ErrTerritoryNotFound is returned when the edited id is not in the State.
var ErrTerritoryNotFound = errors.New("territory not found")

// SaveTerritoryInput carries the submitted form fields.
type SaveTerritoryInput struct {
	ID        string
	Status    string
	Publisher string
	StartDate string
	EndDate   string
	Notes     string
}

// SaveTerritoryDeps holds dependencies for SaveTerritory.
type SaveTerritoryDeps struct {
	Gateway TerritoryGateway
	State   *state.State
	Now     func() time.Time
}

// SaveTerritoryResult carries the outcome of a save.
type SaveTerritoryResult struct {
	Dispatch territory.Dispatch
	// Reloaded is false when the save went out but the follow-up load failed.
	Reloaded bool
}

// ExecuteSaveTerritory dispatches one edit and reloads the authoritative list.
// PRE: input.ID names a territory in the State
// POST: edit dispatched through the gateway; State reloaded on success;
// the busy flag is released on every path
func ExecuteSaveTerritory(ctx context.Context, input SaveTerritoryInput, deps SaveTerritoryDeps) (SaveTerritoryResult, error) {
	release := deps.State.BeginSave()
	defer release()

	edit, err := territory.Edit{
		ID:        input.ID,
		Status:    input.Status,
		Publisher: input.Publisher,
		StartDate: input.StartDate,
		EndDate:   input.EndDate,
		Notes:     input.Notes,
	}.Normalize()
	if err != nil {
		return SaveTerritoryResult{}, err
	}
	if _, ok := deps.State.Get(edit.ID); !ok {
		return SaveTerritoryResult{}, fmt.Errorf("%w: %s", ErrTerritoryNotFound, edit.ID)
	}

	dispatch, err := deps.Gateway.Save(ctx, edit)
	if err != nil {
		slog.Error("territory_event", "event", "save_failed", "id", edit.ID, "error", err)
		return SaveTerritoryResult{}, err
	}
	slog.Info("territory_event", "event", "save_dispatched", "id", edit.ID,
		"status", edit.Status, "verified", dispatch.Verified)

	result := SaveTerritoryResult{Dispatch: dispatch}
	loadDeps := LoadTerritoriesDeps{Gateway: deps.Gateway, State: deps.State, Now: deps.Now}
	if _, err := ExecuteLoadTerritories(ctx, loadDeps); err != nil {
		slog.Warn("territory_event", "event", "reload_after_save_failed", "id", edit.ID, "error", err)
		return result, nil
	}
	result.Reloaded = true
	return result, nil
}

package projections

import (
	"context"

	"territorios/internal/domain/territory"
)

// GetTerritoryDetailQuery identifies the territory to open.
type GetTerritoryDetailQuery struct {
	ID string
}

// StatusOption is one entry of the status select.
type StatusOption struct {
	Value    string
	Selected bool
}

// TerritoryDetail is the modal's view of one territory, with dates ready for
// date inputs.
type TerritoryDetail struct {
	ID        string
	Name      string
	Status    string
	Publisher string
	StartDate string
	EndDate   string
	Notes     string
	ImageLink string
	MapLink   string
	ShowNotes bool
	History   []territory.Assignment
}

// GetTerritoryDetailResult carries the query result.
type GetTerritoryDetailResult struct {
	Found         bool
	Detail        TerritoryDetail
	StatusOptions []StatusOption
}

// GetTerritoryDetailDeps holds dependencies for GetTerritoryDetail.
type GetTerritoryDetailDeps struct {
	Territories TerritorySource
}

// QueryGetTerritoryDetail looks a territory up in the full list.
// PRE: deps.Territories is non-nil
// POST: Found is false for an unknown id; never returns an error for a miss
func QueryGetTerritoryDetail(_ context.Context, query GetTerritoryDetailQuery, deps GetTerritoryDetailDeps) (GetTerritoryDetailResult, error) {
	t, ok := deps.Territories.Get(query.ID)
	if !ok {
		return GetTerritoryDetailResult{}, nil
	}

	kind := t.StatusKind()
	detail := TerritoryDetail{
		ID:        t.ID,
		Name:      t.Name,
		Status:    kind.String(),
		Publisher: t.Publisher,
		StartDate: territory.DateInput(t.StartDate),
		EndDate:   territory.DateInput(t.EndDate),
		Notes:     t.Notes,
		ImageLink: t.ImageLink(),
		MapLink:   t.MapLink(),
		// The notes field follows the selected status, not the stored notes.
		ShowNotes: kind == territory.StatusIncompleto,
		History:   t.RecentHistory(len(t.History)),
	}
	return GetTerritoryDetailResult{
		Found:         true,
		Detail:        detail,
		StatusOptions: StatusOptions(kind),
	}, nil
}

// StatusOptions lists the canonical statuses with the given one selected.
func StatusOptions(selected territory.Status) []StatusOption {
	opts := make([]StatusOption, len(territory.ValidStatuses))
	for i, s := range territory.ValidStatuses {
		opts[i] = StatusOption{Value: s.String(), Selected: s == selected}
	}
	return opts
}

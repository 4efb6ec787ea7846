package projections

import (
	"context"

	"territorios/internal/domain/territory"
)

// LoadErrorMessage replaces the grid while the last load has failed.
const LoadErrorMessage = "Error al conectar con la hoja de cálculo. Verifica la URL."

// UnassignedLabel is shown on cards with no publisher.
const UnassignedLabel = "Sin asignar"

// GetTerritoryGridQuery carries the active filters.
type GetTerritoryGridQuery struct {
	Search string
	Status string
}

// TerritoryCard is one rendered card.
type TerritoryCard struct {
	ID        string
	Name      string
	Status    string
	Class     string
	Publisher string
	Assigned  bool
	StartDate string
	EndDate   string
	Notes     string
	MapLink   string
}

// GetTerritoryGridResult carries the query result.
type GetTerritoryGridResult struct {
	Cards []TerritoryCard
	// Total is the size of the unfiltered list.
	Total int
	// Statuses are the status selector choices, see territory.StatusChoices.
	Statuses   []string
	LoadFailed bool
	LoadError  string
}

// GetTerritoryGridDeps holds dependencies for GetTerritoryGrid.
type GetTerritoryGridDeps struct {
	Territories TerritorySource
}

// QueryGetTerritoryGrid filters the full list and shapes it into cards.
// PRE: deps.Territories is non-nil
// POST: cards keep the store order; no cards are returned while the last load has failed
func QueryGetTerritoryGrid(_ context.Context, query GetTerritoryGridQuery, deps GetTerritoryGridDeps) (GetTerritoryGridResult, error) {
	snap := deps.Territories.Snapshot()
	if snap.Stale {
		return GetTerritoryGridResult{
			Statuses:   territory.StatusChoices(nil),
			LoadFailed: true,
			LoadError:  LoadErrorMessage,
		}, nil
	}

	all := deps.Territories.All()
	matched := territory.Filter(all, query.Search, query.Status)
	cards := make([]TerritoryCard, 0, len(matched))
	for _, t := range matched {
		cards = append(cards, newCard(t))
	}
	return GetTerritoryGridResult{
		Cards:    cards,
		Total:    len(all),
		Statuses: territory.StatusChoices(all),
	}, nil
}

func newCard(t territory.Territory) TerritoryCard {
	c := TerritoryCard{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		Class:     t.StatusKind().Class(),
		Publisher: UnassignedLabel,
		Assigned:  t.IsAssigned(),
		StartDate: territory.FormatLong(t.StartDate),
		MapLink:   t.MapLink(),
	}
	if c.Assigned {
		c.Publisher = t.Publisher
	}
	if t.ShowEndDate() {
		c.EndDate = territory.FormatLong(t.EndDate)
	}
	if t.ShowNotes() {
		c.Notes = t.Notes
	}
	return c
}

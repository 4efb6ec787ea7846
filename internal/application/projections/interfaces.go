package projections

import (
	"territorios/internal/application/state"
	"territorios/internal/domain/territory"
)

// TerritorySource is the read side of the in-memory territory store.
// *state.State satisfies it.
type TerritorySource interface {
	All() []territory.Territory
	Get(id string) (territory.Territory, bool)
	Snapshot() state.Snapshot
}

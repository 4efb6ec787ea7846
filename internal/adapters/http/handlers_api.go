package web

import (
	"net/http"
	"strconv"
	"time"

	"territorios/internal/application/listutil"
	"territorios/internal/domain/territory"
)

// territoriesResponse is the body of GET /api/territories.
type territoriesResponse struct {
	Territories []territory.Territory `json:"territories"`
	Matched     int                   `json:"matched"`
	Total       int                   `json:"total"`
	// Stale is true when the last load failed and the list is from an earlier one.
	Stale    bool      `json:"stale"`
	LoadedAt time.Time `json:"loaded_at"`
}

// handleAPITerritories handles GET /api/territories
func handleAPITerritories(w http.ResponseWriter, r *http.Request) {
	f := listutil.ParseFilterParams(r.URL.Query())
	all := deps.State.All()
	matched := territory.Filter(all, f.Search, f.Status)
	if matched == nil {
		matched = []territory.Territory{}
	}
	snap := deps.State.Snapshot()
	writeJSON(w, http.StatusOK, territoriesResponse{
		Territories: matched,
		Matched:     len(matched),
		Total:       len(all),
		Stale:       snap.Stale,
		LoadedAt:    snap.LoadedAt,
	})
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status     string    `json:"status"`
	Mode       string    `json:"mode"`
	Count      int       `json:"count"`
	Generation uint64    `json:"generation"`
	LoadedAt   time.Time `json:"loaded_at"`
	LastError  string    `json:"last_error,omitempty"`
	LastErrAt  time.Time `json:"last_error_at,omitzero"`
	Saving     bool      `json:"saving"`
}

// handleHealthz handles GET /healthz. The process is live whenever it
// answers; a failed last load reports "degraded" with status 200.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := deps.State.Snapshot()
	status := "ok"
	if snap.Stale || snap.Generation == 0 {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:     status,
		Mode:       deps.Mode,
		Count:      snap.Count,
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt,
		LastError:  snap.LastError,
		LastErrAt:  snap.LastErrAt,
		Saving:     snap.Saving,
	})
}

// Defaults for GET /debug/perf
const (
	perfDefaultWindow = 15 * time.Minute
	perfDefaultTop    = 10
)

// handlePerf handles GET /debug/perf?window=15m&top=10
func handlePerf(w http.ResponseWriter, r *http.Request) {
	if perfCollector == nil {
		http.Error(w, "perf collector disabled", http.StatusNotFound)
		return
	}
	window := perfDefaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			http.Error(w, "window must be a positive duration", http.StatusBadRequest)
			return
		}
		window = d
	}
	top := perfDefaultTop
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "top must be a positive integer", http.StatusBadRequest)
			return
		}
		top = n
	}
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(timeNow().Add(-window), top))
}

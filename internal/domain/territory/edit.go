package territory

import (
	"strings"
	"time"
)

// Edit is the record the edit form submits. It carries only the editable
// fields; name, image and map link are sourced from the backend alone.
type Edit struct {
	ID        string `json:"id"`
	Status    string `json:"estado"`
	Publisher string `json:"publicador"`
	StartDate string `json:"fechaInicio"`
	EndDate   string `json:"fechaFin"`
	Notes     string `json:"notas"`
}

// Dispatch reports that a save request left the client.
// Verified is false for the remote backend: its response is opaque, so a
// dispatched save is assumed, never confirmed.
type Dispatch struct {
	ID           string
	DispatchedAt time.Time
	Verified     bool
}

// Normalize trims every field and rewrites dates as YYYY-MM-DD.
// PRE: none
// POST: returns ErrEmptyID or ErrBadDate on invalid input
func (e Edit) Normalize() (Edit, error) {
	out := Edit{
		ID:        strings.TrimSpace(e.ID),
		Status:    strings.TrimSpace(e.Status),
		Publisher: strings.TrimSpace(e.Publisher),
		Notes:     strings.TrimSpace(e.Notes),
	}
	if out.ID == "" {
		return Edit{}, ErrEmptyID
	}
	var ok bool
	if out.StartDate, ok = normalizeDate(e.StartDate); !ok {
		return Edit{}, ErrBadDate
	}
	if out.EndDate, ok = normalizeDate(e.EndDate); !ok {
		return Edit{}, ErrBadDate
	}
	return out, nil
}

// ApplyEdit merges an edit into a territory the way the local fixture store
// does it. Completing a territory archives the cycle into History and rolls
// the live fields back to an available, unassigned baseline.
// PRE: e.ID == t.ID
// POST: at most one History entry appended; existing entries untouched
func ApplyEdit(t Territory, e Edit) (Territory, error) {
	if strings.TrimSpace(e.ID) != strings.TrimSpace(t.ID) {
		return t, ErrIDMismatch
	}
	out := t.Clone()
	out.Status = e.Status
	out.Publisher = e.Publisher
	out.StartDate = e.StartDate
	out.EndDate = e.EndDate
	out.Notes = e.Notes

	if StatusOf(e.Status) != StatusCompletado {
		return out, nil
	}

	// Blank form fields fall back to the cycle being closed.
	entry := Assignment{
		Publisher: firstNonEmpty(e.Publisher, t.Publisher),
		StartDate: firstNonEmpty(e.StartDate, t.StartDate),
		EndDate:   firstNonEmpty(e.EndDate, t.EndDate),
		Status:    string(StatusCompletado),
	}
	out.History = append(out.History, entry)

	out.Status = string(StatusDisponible)
	out.Publisher = ""
	out.StartDate = ""
	out.EndDate = ""
	return out, nil
}

func normalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	d := DateInput(raw)
	return d, d != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

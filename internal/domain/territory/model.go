package territory

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Domain errors
var (
	ErrEmptyID    = errors.New("territory id cannot be empty")
	ErrIDMismatch = errors.New("edit id does not match territory id")
	ErrBadDate    = errors.New("date must be YYYY-MM-DD or an ISO timestamp")
)

// Territory is a trackable assignment unit.
// The JSON keys match the spreadsheet backend, which names fields in Spanish.
type Territory struct {
	ID        string       `json:"id"`
	Name      string       `json:"nombre"`
	Status    string       `json:"estado"`
	Publisher string       `json:"publicador"`
	StartDate string       `json:"fechaInicio"`
	EndDate   string       `json:"fechaFin"`
	Notes     string       `json:"notas"`
	Image     string       `json:"imagen"`
	MapURL    string       `json:"mapaUrl"`
	History   []Assignment `json:"historial,omitempty"`
}

// Assignment is one archived assignment cycle of a territory.
type Assignment struct {
	Publisher string `json:"publicador"`
	StartDate string `json:"fechaInicio"`
	EndDate   string `json:"fechaFin"`
	Status    string `json:"estado"`
}

// StatusKind classifies the free-text status into the canonical enumeration.
// INVARIANT: Status field is not mutated
func (t *Territory) StatusKind() Status {
	return StatusOf(t.Status)
}

// IsAssigned reports whether someone currently holds the territory.
// An empty publisher means unassigned regardless of status.
func (t *Territory) IsAssigned() bool {
	return strings.TrimSpace(t.Publisher) != ""
}

// ShowEndDate is true only for completed territories with an end date.
func (t *Territory) ShowEndDate() bool {
	return t.StatusKind() == StatusCompletado && strings.TrimSpace(t.EndDate) != ""
}

// ShowNotes is true only for incomplete territories with notes.
func (t *Territory) ShowNotes() bool {
	return t.StatusKind() == StatusIncompleto && strings.TrimSpace(t.Notes) != ""
}

// MapLink returns MapURL when it is a well-formed web URL, otherwise "".
func (t *Territory) MapLink() string {
	if IsWebURL(t.MapURL) {
		return strings.TrimSpace(t.MapURL)
	}
	return ""
}

// ImageLink returns Image when it is a well-formed web URL, otherwise "".
func (t *Territory) ImageLink() string {
	if IsWebURL(t.Image) {
		return strings.TrimSpace(t.Image)
	}
	return ""
}

// RecentHistory returns at most n of the latest history entries, oldest first.
// PRE: n >= 0
// POST: returned slice is a copy; History is not reordered
func (t *Territory) RecentHistory(n int) []Assignment {
	start := len(t.History) - n
	if start < 0 {
		start = 0
	}
	out := make([]Assignment, len(t.History)-start)
	copy(out, t.History[start:])
	return out
}

// Clone returns a deep copy so callers never share the History backing array.
func (t Territory) Clone() Territory {
	if t.History != nil {
		h := make([]Assignment, len(t.History))
		copy(h, t.History)
		t.History = h
	}
	return t
}

// Validate checks the fields the store relies on.
func (t *Territory) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	return nil
}

// BackfillHistory synthesizes a single history entry from the live fields
// when a record arrives without history but with an assignee.
// Run once per record at load time, never while rendering.
// POST: History unchanged when non-empty or when unassigned
func BackfillHistory(t Territory) Territory {
	if len(t.History) > 0 || !t.IsAssigned() {
		return t
	}
	t.History = []Assignment{{
		Publisher: t.Publisher,
		StartDate: t.StartDate,
		EndDate:   t.EndDate,
		Status:    t.Status,
	}}
	return t
}

// UnmarshalJSON accepts the loose shapes the spreadsheet emits: numeric ids,
// null or missing fields, and numbers where strings are expected.
func (t *Territory) UnmarshalJSON(data []byte) error {
	var w struct {
		ID        looseString  `json:"id"`
		Name      looseString  `json:"nombre"`
		Status    looseString  `json:"estado"`
		Publisher looseString  `json:"publicador"`
		StartDate looseString  `json:"fechaInicio"`
		EndDate   looseString  `json:"fechaFin"`
		Notes     looseString  `json:"notas"`
		Image     looseString  `json:"imagen"`
		MapURL    looseString  `json:"mapaUrl"`
		History   []Assignment `json:"historial"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = Territory{
		ID:        strings.TrimSpace(string(w.ID)),
		Name:      string(w.Name),
		Status:    string(w.Status),
		Publisher: string(w.Publisher),
		StartDate: string(w.StartDate),
		EndDate:   string(w.EndDate),
		Notes:     string(w.Notes),
		Image:     string(w.Image),
		MapURL:    string(w.MapURL),
		History:   w.History,
	}
	return nil
}

// UnmarshalJSON applies the same leniency as Territory.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	var w struct {
		Publisher looseString `json:"publicador"`
		StartDate looseString `json:"fechaInicio"`
		EndDate   looseString `json:"fechaFin"`
		Status    looseString `json:"estado"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Assignment{
		Publisher: string(w.Publisher),
		StartDate: string(w.StartDate),
		EndDate:   string(w.EndDate),
		Status:    string(w.Status),
	}
	return nil
}

// looseString decodes strings, numbers and booleans as text and null as "".
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return errors.New("expected scalar value")
	}
	*s = looseString(data)
	return nil
}

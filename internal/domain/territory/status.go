package territory

import (
	"strings"

	"golang.org/x/text/cases"
)

// Status is the canonical lifecycle state of a territory.
//
// The backend stores free text, and older sheets use "Completo" where newer
// ones use "Completado". StatusOf maps any spelling onto this enumeration.
type Status string

// Canonical statuses
const (
	StatusDisponible Status = "Disponible"
	StatusAsignado   Status = "Asignado"
	StatusIncompleto Status = "Incompleto"
	StatusCompletado Status = "Completado"
)

// ValidStatuses lists the canonical statuses in the order the edit form offers them.
var ValidStatuses = []Status{StatusDisponible, StatusAsignado, StatusIncompleto, StatusCompletado}

// StatusOf classifies a raw status string.
// The raw value is case-folded and stripped of whitespace, then matched in a
// fixed order: "incompleto", "asignado", "complet", otherwise Disponible.
// "incompleto" goes first because it contains "completo".
// POST: always returns one of ValidStatuses
func StatusOf(raw string) Status {
	s := compactFold(raw)
	switch {
	case strings.Contains(s, "incompleto"):
		return StatusIncompleto
	case strings.Contains(s, "asignado"):
		return StatusAsignado
	case strings.Contains(s, "complet"):
		return StatusCompletado
	default:
		return StatusDisponible
	}
}

// Class returns the CSS class used for cards and badges.
func (s Status) Class() string {
	return strings.ToLower(string(s))
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// compactFold case-folds s and drops all whitespace.
func compactFold(s string) string {
	folded := cases.Fold().String(s)
	return strings.Join(strings.Fields(folded), "")
}

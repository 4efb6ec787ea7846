package territory

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
)

// Filter returns the territories matching both the free-text query and the
// status selector, in their original order.
// An empty query or an empty status matches everything.
// INVARIANT: list is not mutated
func Filter(list []Territory, query, status string) []Territory {
	// A Caser is stateful; one per call keeps Filter safe for concurrent use.
	fold := cases.Fold()
	q := fold.String(strings.TrimSpace(query))
	st := fold.String(strings.TrimSpace(status))

	out := make([]Territory, 0, len(list))
	for _, t := range list {
		if matchesText(fold, t, q) && matchesStatus(fold, t, st) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func matchesText(fold cases.Caser, t Territory, q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{t.ID, t.Name, t.Publisher} {
		if strings.Contains(fold.String(field), q) {
			return true
		}
	}
	return false
}

func matchesStatus(fold cases.Caser, t Territory, st string) bool {
	if st == "" {
		return true
	}
	return fold.String(strings.TrimSpace(t.Status)) == st
}

// StatusChoices lists the values the status selector offers: the canonical
// statuses first, then every other distinct trimmed status stored in list,
// in first-seen order. Values equal under case folding appear once, so each
// stored spelling can be selected with Filter's exact-match rule.
// INVARIANT: list is not mutated
func StatusChoices(list []Territory) []string {
	fold := cases.Fold()
	seen := make(map[string]bool, len(ValidStatuses)+len(list))
	out := make([]string, 0, len(ValidStatuses))
	add := func(raw string) {
		v := strings.TrimSpace(raw)
		key := fold.String(v)
		if v == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, v)
	}
	for _, st := range ValidStatuses {
		add(st.String())
	}
	for _, t := range list {
		add(t.Status)
	}
	return out
}

// IsWebURL reports whether raw is an absolute http or https URL with a host.
// Anything else (ftp, javascript:, relative paths) is treated as absent.
func IsWebURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Host != ""
}

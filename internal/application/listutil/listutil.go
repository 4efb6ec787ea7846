// Package listutil parses and re-encodes the grid's query parameters so that
// filters survive opening and closing the modal.
package listutil

import (
	"net/url"
	"strings"
)

// Query parameter names
const (
	ParamSearch = "q"
	ParamStatus = "status"
	ParamOpen   = "open"
	ParamFlash  = "flash"
)

// FilterParams carries search and status filters.
type FilterParams struct {
	Search string // free-text search query
	Status string // status selector; empty means all
}

// ListParams combines filters with the territory the modal should show.
type ListParams struct {
	FilterParams
	Open string // id of the open territory; empty means the modal is closed
}

// ParseFilterParams extracts search and status from URL query values.
// PRE: none
// POST: values are trimmed
func ParseFilterParams(q url.Values) FilterParams {
	return FilterParams{
		Search: strings.TrimSpace(q.Get(ParamSearch)),
		Status: strings.TrimSpace(q.Get(ParamStatus)),
	}
}

// ParseListParams parses all grid parameters from URL query values.
func ParseListParams(q url.Values) ListParams {
	return ListParams{
		FilterParams: ParseFilterParams(q),
		Open:         strings.TrimSpace(q.Get(ParamOpen)),
	}
}

// Values encodes the non-empty filters.
// POST: empty filters are omitted
func (f FilterParams) Values() url.Values {
	v := url.Values{}
	if f.Search != "" {
		v.Set(ParamSearch, f.Search)
	}
	if f.Status != "" {
		v.Set(ParamStatus, f.Status)
	}
	return v
}

// Active reports whether any filter is set.
func (f FilterParams) Active() bool {
	return f.Search != "" || f.Status != ""
}

// ListURL returns the grid URL with the filters applied and the modal closed.
func (f FilterParams) ListURL() string {
	v := f.Values()
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

// OpenURL returns the grid URL with the modal open on id.
// PRE: id is non-empty
func (f FilterParams) OpenURL(id string) string {
	v := f.Values()
	v.Set(ParamOpen, id)
	return "/?" + v.Encode()
}

// FlashURL returns the grid URL with the filters applied and a one-shot
// flash key the page turns into a message.
// PRE: flash is non-empty
func (f FilterParams) FlashURL(flash string) string {
	v := f.Values()
	v.Set(ParamFlash, flash)
	return "/?" + v.Encode()
}

// Package gateway talks to the spreadsheet-backed territory endpoint, or to a
// local fixture store when no endpoint is configured.
package gateway

import (
	"errors"
	"time"

	"territorios/internal/adapters/http/perf"
)

// Gateway errors
var (
	// ErrLoadFailure wraps every FetchAll failure: transport, status or decode.
	ErrLoadFailure = errors.New("load failure")
	// ErrTransport wraps a save that never reached the endpoint.
	ErrTransport = errors.New("transport failure")
)

// maxResponseBytes caps the list payload read from the endpoint.
const maxResponseBytes = 8 << 20

func record(c *perf.Collector, op string, start time.Time, status int, err error) {
	if c == nil {
		return
	}
	c.Record(perf.Entry{
		Kind:       perf.KindGateway,
		Path:       "gateway." + op,
		StatusCode: status,
		Failed:     err != nil,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

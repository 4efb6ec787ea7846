package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"territorios/internal/adapters/http/perf"
	"territorios/internal/domain/territory"
)

// RemoteGateway reads and writes the spreadsheet endpoint over HTTP.
type RemoteGateway struct {
	endpoint  string
	client    *http.Client
	collector *perf.Collector
	now       func() time.Time
}

// RemoteOption configures a RemoteGateway.
type RemoteOption func(*RemoteGateway)

// WithCollector records every call to the perf collector.
func WithCollector(c *perf.Collector) RemoteOption {
	return func(g *RemoteGateway) { g.collector = c }
}

// WithClock sets the clock used for Dispatch timestamps.
func WithClock(now func() time.Time) RemoteOption {
	return func(g *RemoteGateway) { g.now = now }
}

// NewRemoteGateway creates a gateway for endpoint.
// PRE: endpoint is an absolute http(s) URL
// POST: default client times out after timeout; timeout <= 0 means 15s
func NewRemoteGateway(endpoint string, timeout time.Duration, opts ...RemoteOption) *RemoteGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	g := &RemoteGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchAll downloads the full territory list.
// PRE: none
// POST: any failure wraps ErrLoadFailure; records keep the endpoint's order
func (g *RemoteGateway) FetchAll(ctx context.Context) (list []territory.Territory, err error) {
	start := time.Now()
	status := 0
	defer func() { record(g.collector, "FetchAll", start, status, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrLoadFailure, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadFailure, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrLoadFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrLoadFailure, err)
	}
	slog.Debug("gateway_event", "event", "fetched", "count", len(list), "status", status)
	return list, nil
}

// Save posts one edit to the endpoint.
// The endpoint answers with an opaque redirect, so neither the status nor the
// body is read: a request that went out is reported as dispatched, unverified.
// PRE: edit has been normalized
// POST: Dispatch.Verified is false; transport errors wrap ErrTransport
func (g *RemoteGateway) Save(ctx context.Context, edit territory.Edit) (d territory.Dispatch, err error) {
	start := time.Now()
	defer func() { record(g.collector, "Save", start, 0, err) }()

	body, err := json.Marshal(edit)
	if err != nil {
		return territory.Dispatch{}, fmt.Errorf("%w: encode: %v", ErrTransport, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return territory.Dispatch{}, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	// text/plain keeps the request "simple" for the script host.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := g.client.Do(req)
	if err != nil {
		return territory.Dispatch{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()

	return territory.Dispatch{ID: edit.ID, DispatchedAt: g.now(), Verified: false}, nil
}

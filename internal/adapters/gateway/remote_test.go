package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"territorios/internal/adapters/http/perf"
	"territorios/internal/domain/territory"
)

// TestRemoteGateway_FetchAll verifies decoding of the loose spreadsheet shape.
func TestRemoteGateway_FetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id": 1, "nombre": "Territorio 101", "estado": "Disponible", "publicador": null},
			{"id": "2", "nombre": "Territorio 102", "estado": "Asignado", "publicador": "Ana",
			 "fechaInicio": "2024-01-05T03:00:00.000Z",
			 "historial": [{"publicador": "Luis", "fechaInicio": "2023-01-01", "fechaFin": "2023-02-01", "estado": "Completado"}]}
		]`)
	}))
	defer srv.Close()

	collector := perf.NewCollector(10)
	g := NewRemoteGateway(srv.URL, time.Second, WithCollector(collector))
	list, err := g.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(list) != 2 || list[0].ID != "1" || list[0].Publisher != "" {
		t.Fatalf("list = %+v", list)
	}
	if len(list[1].History) != 1 || list[1].History[0].Publisher != "Luis" {
		t.Errorf("history = %+v", list[1].History)
	}
	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestRemoteGateway_FetchAllFailures verifies every failure wraps ErrLoadFailure.
func TestRemoteGateway_FetchAllFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"html", func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "<html>login</html>") }},
		{"object", func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, `{"error":"x"}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewRemoteGateway(srv.URL, time.Second).FetchAll(context.Background())
			if !errors.Is(err, ErrLoadFailure) {
				t.Errorf("err = %v, want ErrLoadFailure", err)
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := NewRemoteGateway(url, time.Second).FetchAll(context.Background())
		if !errors.Is(err, ErrLoadFailure) {
			t.Errorf("err = %v, want ErrLoadFailure", err)
		}
	})
}

// TestRemoteGateway_Save verifies the request shape and the unverified dispatch.
func TestRemoteGateway_Save(t *testing.T) {
	var gotCT string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		// An error status must not turn the dispatch into a failure.
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	g := NewRemoteGateway(srv.URL, time.Second, WithClock(func() time.Time { return at }))
	d, err := g.Save(context.Background(), territory.Edit{
		ID: "7", Status: "Asignado", Publisher: "Ana", StartDate: "2024-05-01",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.Verified || d.ID != "7" || !d.DispatchedAt.Equal(at) {
		t.Errorf("dispatch = %+v", d)
	}
	if gotCT != "text/plain;charset=utf-8" {
		t.Errorf("Content-Type = %q", gotCT)
	}
	want := map[string]string{"id": "7", "estado": "Asignado", "publicador": "Ana",
		"fechaInicio": "2024-05-01", "fechaFin": "", "notas": ""}
	for k, v := range want {
		if gotBody[k] != v {
			t.Errorf("body[%s] = %q, want %q", k, gotBody[k], v)
		}
	}
	if len(gotBody) != len(want) {
		t.Errorf("body has %d keys, want %d: %v", len(gotBody), len(want), gotBody)
	}
}

// TestRemoteGateway_SaveTransportError verifies an unreachable endpoint fails the save.
func TestRemoteGateway_SaveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemoteGateway(url, time.Second).Save(context.Background(), territory.Edit{ID: "1"})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

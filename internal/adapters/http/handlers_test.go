package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"territorios/internal/adapters/email"
	"territorios/internal/adapters/http/perf"
	"territorios/internal/application/orchestrators"
	"territorios/internal/application/projections"
	"territorios/internal/application/state"
	"territorios/internal/domain/territory"
)

// fakeGateway implements orchestrators.TerritoryGateway for testing.
type fakeGateway struct {
	mu       sync.Mutex
	list     []territory.Territory
	fetchErr error
	saveErr  error
	saves    []territory.Edit
}

// FetchAll returns a copy of the configured list.
// PRE: none
// POST: returns fetchErr when set
func (g *fakeGateway) FetchAll(_ context.Context) ([]territory.Territory, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]territory.Territory, len(g.list))
	copy(out, g.list)
	return out, nil
}

// Save applies the edit to the list.
// PRE: none
// POST: edit recorded and applied unless saveErr is set
func (g *fakeGateway) Save(_ context.Context, e territory.Edit) (territory.Dispatch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return territory.Dispatch{}, g.saveErr
	}
	g.saves = append(g.saves, e)
	for i, t := range g.list {
		if t.ID == e.ID {
			updated, err := territory.ApplyEdit(t, e)
			if err != nil {
				return territory.Dispatch{}, err
			}
			g.list[i] = updated
		}
	}
	return territory.Dispatch{ID: e.ID, Verified: true}, nil
}

func testNow() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

func sampleTerritories() []territory.Territory {
	return []territory.Territory{
		{ID: "1", Name: "Zona Comercial", Status: "Disponible", MapURL: "https://maps.example/1"},
		{ID: "2", Name: "Residencial Norte", Status: "Incompleto", Publisher: "Familia Perez",
			StartDate: "2023-10-01", Notes: "Falta la esquina", Image: "https://img.example/2.png"},
		{ID: "3", Name: "Rural Sur", Status: "Completado", Publisher: "Hno. Lopez",
			StartDate: "2023-09-01", EndDate: "2023-09-20", MapURL: "not a url"},
	}
}

type testEnv struct {
	gw     *fakeGateway
	state  *state.State
	sender *email.NoopSender
	mux    *http.ServeMux
}

// newTestEnv wires the routes without middleware and loads the gateway's list.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		gw:     &fakeGateway{list: sampleTerritories()},
		state:  state.New(),
		sender: email.NewNoopSender(),
		mux:    http.NewServeMux(),
	}
	setDeps(&Deps{
		Gateway:    env.gw,
		State:      env.state,
		Collector:  perf.NewCollector(64),
		Sender:     env.sender,
		Mode:       "demo",
		PrintDelay: 500 * time.Millisecond,
		Now:        testNow,
	})
	registerRoutes(env.mux)
	if _, err := orchestrators.ExecuteLoadTerritories(context.Background(), orchestrators.LoadTerritoriesDeps{
		Gateway: env.gw, State: env.state, Now: testNow,
	}); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set("Accept", "text/html")
	return e.do(req)
}

func (e *testEnv) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	return e.do(req)
}

func (e *testEnv) postJSON(target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

// TestGetTerritories_Grid verifies cards, conditional rows and the map link.
func TestGetTerritories_Grid(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		`class="card disponible"`,
		`class="card incompleto"`,
		`class="card completado"`,
		projections.UnassignedLabel,
		"Inicio: 1/10/2023",
		"Fin: 20/9/2023",
		"<p>Falta la esquina</p>",
		`href="/?open=2"`,
		`class="card-map" href="https://maps.example/1"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if n := strings.Count(body, `class="card-map"`); n != 1 {
		t.Errorf("map links = %d, want 1 (malformed URLs get none)", n)
	}
	if strings.Contains(body, `id="modalOverlay"`) {
		t.Error("modal should be closed")
	}
}

// TestGetTerritories_NoResults verifies a single placeholder when nothing matches.
func TestGetTerritories_NoResults(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"no match", "/?q=zzz", 1},
		{"status no match", "/?status=Asignado", 1},
		{"matches", "/?q=norte", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := env.get(tt.target).Body.String()
			if n := strings.Count(body, `class="no-results"`); n != tt.want {
				t.Errorf("no-results elements = %d, want %d", n, tt.want)
			}
		})
	}
}

// TestGetTerritories_StatusSpellings verifies a stored status spelling is
// offered by the selector and finds its rows.
func TestGetTerritories_StatusSpellings(t *testing.T) {
	env := newTestEnv(t)
	env.gw.list[2].Status = "Completo"
	if _, err := orchestrators.ExecuteLoadTerritories(context.Background(), orchestrators.LoadTerritoriesDeps{
		Gateway: env.gw, State: env.state, Now: testNow,
	}); err != nil {
		t.Fatalf("reload: %v", err)
	}

	body := env.get("/?status=Completo").Body.String()
	if !strings.Contains(body, `<option value="Completo" selected>Completo</option>`) {
		t.Error("stored spelling should be offered and selected")
	}
	if !strings.Contains(body, `<option value="Completado">Completado</option>`) {
		t.Error("canonical status should still be offered")
	}
	if !strings.Contains(body, `data-id="3"`) || strings.Contains(body, `data-id="1"`) {
		t.Error("only territory 3 should match")
	}
	if strings.Contains(body, `class="no-results"`) {
		t.Error("placeholder should not render")
	}
}

// TestGetTerritories_Modal verifies the modal opens from the full list and
// ignores unknown ids.
func TestGetTerritories_Modal(t *testing.T) {
	env := newTestEnv(t)

	// The filter hides territory 2, but the modal still finds it.
	body := env.get("/?q=rural&open=2").Body.String()
	for _, want := range []string{
		`id="modalOverlay"`,
		`value="Familia Perez"`,
		`value="2023-10-01"`,
		`src="https://img.example/2.png"`,
		`<option value="Incompleto" selected>`,
		`<div id="notesGroup">`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "Ver ubicación en Google Maps") {
		t.Error("territory 2 has no map URL")
	}

	body = env.get("/?open=3").Body.String()
	if !strings.Contains(body, "Sin imagen de mapa") || !strings.Contains(body, `<div id="notesGroup" hidden>`) {
		t.Error("territory 3 should show the image placeholder and hide notes")
	}

	rec := env.get("/?open=404")
	if rec.Code != http.StatusOK || strings.Contains(rec.Body.String(), `id="modalOverlay"`) {
		t.Errorf("unknown id: status = %d, modal rendered = %v", rec.Code, strings.Contains(rec.Body.String(), `id="modalOverlay"`))
	}
}

// TestGetTerritories_LoadFailure verifies the error message replaces the grid.
func TestGetTerritories_LoadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.state.RecordLoadFailure(errors.New("timeout"), testNow())

	body := env.get("/").Body.String()
	if !strings.Contains(body, projections.LoadErrorMessage) {
		t.Error("expected load error message")
	}
	if strings.Contains(body, `class="card `) {
		t.Error("no cards should render after a failed load")
	}
}

// TestPostSaveTerritory_Form verifies the redirect, flash and filter preservation.
func TestPostSaveTerritory_Form(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postForm("/territories/1", url.Values{
		"id":          {"1"},
		"estado":      {"Asignado"},
		"publicador":  {"Ana"},
		"fechaInicio": {"2024-05-01"},
		"q":           {"zona"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/?flash=saved&q=zona" {
		t.Errorf("Location = %q", loc)
	}
	if len(env.gw.saves) != 1 || env.gw.saves[0].Publisher != "Ana" {
		t.Errorf("saves = %+v", env.gw.saves)
	}
	if got, _ := env.state.Get("1"); got.Publisher != "Ana" {
		t.Errorf("State not reloaded, publisher = %q", got.Publisher)
	}
	if env.state.Saving() {
		t.Error("busy flag should be released")
	}

	body := env.get("/?flash=saved").Body.String()
	if !strings.Contains(body, FlashSaved) {
		t.Error("expected success flash")
	}
}

// TestPostSaveTerritory_FormFailure verifies the modal re-opens with the submitted values.
func TestPostSaveTerritory_FormFailure(t *testing.T) {
	env := newTestEnv(t)
	env.gw.saveErr = errors.New("connection refused")

	rec := env.postForm("/territories/2", url.Values{
		"estado":     {"Asignado"},
		"publicador": {"Luis"},
		"notas":      {"pendiente"},
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		FlashSaveFailed,
		`id="modalOverlay"`,
		`value="Luis"`,
		`<option value="Asignado" selected>`,
		`<div id="notesGroup" hidden>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if env.state.Saving() {
		t.Error("busy flag should be released after failure")
	}
}

// TestPostSaveTerritory_Errors verifies rejected submissions.
func TestPostSaveTerritory_Errors(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name       string
		target     string
		form       url.Values
		wantStatus int
	}{
		{"unknown id", "/territories/99", url.Values{"estado": {"Asignado"}}, http.StatusNotFound},
		{"id mismatch", "/territories/1", url.Values{"id": {"2"}}, http.StatusBadRequest},
		{"bad date", "/territories/1", url.Values{"fechaInicio": {"ayer"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.postForm(tt.target, tt.form)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
	if len(env.gw.saves) != 0 {
		t.Errorf("nothing should reach the gateway, got %d saves", len(env.gw.saves))
	}
}

// TestPostSaveTerritory_JSON verifies the JSON variant of the save endpoint.
func TestPostSaveTerritory_JSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/territories/3", `{"estado":"Completado","publicador":"Hno. Lopez","fechaInicio":"2023-09-01","fechaFin":"2023-09-20"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp saveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "3" || !resp.Verified || !resp.Reloaded {
		t.Errorf("response = %+v", resp)
	}
	got, _ := env.state.Get("3")
	if got.StatusKind() != territory.StatusDisponible || len(got.History) != 1 || got.History[0].Status != "Completado" {
		t.Errorf("territory 3 = %+v, want rolled over with one archived cycle", got)
	}

	rec = env.postJSON("/territories/3", `{"estado":"Asignado","mapaUrl":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field: status = %d, want 400", rec.Code)
	}
}

// TestPostReload verifies the reload redirect and its failure path.
func TestPostReload(t *testing.T) {
	env := newTestEnv(t)
	env.gw.list = append(env.gw.list, territory.Territory{ID: "4", Name: "Nuevo"})

	rec := env.postForm("/reload", url.Values{"status": {"Disponible"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?flash=reloaded&status=Disponible" {
		t.Errorf("status = %d Location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if len(env.state.All()) != 4 {
		t.Errorf("len = %d, want 4", len(env.state.All()))
	}

	env.gw.fetchErr = errors.New("down")
	rec = env.postForm("/reload", url.Values{})
	if rec.Header().Get("Location") != "/" {
		t.Errorf("Location = %q, want /", rec.Header().Get("Location"))
	}
	if !env.state.Snapshot().Stale {
		t.Error("State should be stale")
	}
}

// TestGetS13Report verifies the printable report page.
func TestGetS13Report(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/report/s13")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Año de servicio: 2024/2025",
		"REGISTRO DE ASIGNACIÓN DE TERRITORIO",
		"S-13-S",
		"@page",
		"window.print()",
		"500",
		"01/09/23",
		"&nbsp;",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	first := strings.Index(body, `<td class="cell-id">1</td>`)
	third := strings.Index(body, `<td class="cell-id">3</td>`)
	if first < 0 || third < 0 || first > third {
		t.Errorf("rows out of order: 1 at %d, 3 at %d", first, third)
	}
}

// TestPostEmailS13Report verifies delivery through the sender and the flash redirect.
func TestPostEmailS13Report(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm("/report/s13/email", url.Values{"to": {"overseer@example.org"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?flash=emailed" {
		t.Errorf("status = %d Location = %q", rec.Code, rec.Header().Get("Location"))
	}
	if env.sender.Sent() != 1 {
		t.Errorf("sent = %d, want 1", env.sender.Sent())
	}

	rec = env.postForm("/report/s13/email", url.Values{})
	if rec.Header().Get("Location") != "/?flash=email_failed" {
		t.Errorf("no recipients: Location = %q", rec.Header().Get("Location"))
	}

	rec = env.postJSON("/report/s13/email", `{"to":["not an address"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad recipient: status = %d, want 400", rec.Code)
	}

	deps.ReportTo = []string{"default@example.org"}
	rec = env.postJSON("/report/s13/email", `{}`)
	if rec.Code != http.StatusOK {
		t.Errorf("default recipients: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.sender.Sent() != 2 {
		t.Errorf("sent = %d, want 2", env.sender.Sent())
	}
}

// TestGetAPITerritories verifies the JSON list honours the filters.
func TestGetAPITerritories(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/api/territories?status=completado")
	var resp territoriesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Matched != 1 || resp.Total != 3 || resp.Territories[0].ID != "3" || resp.Stale {
		t.Errorf("response = %+v", resp)
	}

	env.state.RecordLoadFailure(errors.New("down"), testNow())
	rec = env.get("/api/territories?q=nothing")
	resp = territoriesResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Stale || resp.Territories == nil || resp.Matched != 0 {
		t.Errorf("stale response = %+v", resp)
	}
}

// TestGetHealthz verifies the load state report.
func TestGetHealthz(t *testing.T) {
	env := newTestEnv(t)
	var resp healthResponse
	if err := json.NewDecoder(env.get("/healthz").Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Count != 3 || resp.Mode != "demo" {
		t.Errorf("response = %+v", resp)
	}

	env.state.RecordLoadFailure(errors.New("down"), testNow())
	resp = healthResponse{}
	rec := env.get("/healthz")
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || resp.Status != "degraded" || resp.LastError != "down" {
		t.Errorf("status = %d response = %+v", rec.Code, resp)
	}
}

// TestGetPerf_BadParams verifies query validation.
func TestGetPerf_BadParams(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{"/debug/perf?window=soon", "/debug/perf?top=-1"} {
		if rec := env.get(target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rec.Code)
		}
	}
}

// TestGetStatic verifies the embedded stylesheet is served.
func TestGetStatic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/static/app.css")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".no-results") {
		t.Errorf("status = %d", rec.Code)
	}
}

package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"territorios/internal/application/listutil"
	"territorios/internal/application/orchestrators"
	"territorios/internal/application/projections"
	"territorios/internal/domain/territory"
)

// Flash messages keyed by the ?flash= value.
const (
	FlashSaved       = "¡Guardado correctamente!"
	FlashSaveFailed  = "Hubo un error al guardar."
	FlashReloaded    = "Datos actualizados."
	FlashEmailed     = "Informe S-13 enviado."
	FlashEmailFailed = "No se pudo enviar el informe S-13."
)

var flashes = map[string]string{
	"saved":        FlashSaved,
	"reloaded":     FlashReloaded,
	"emailed":      FlashEmailed,
	"email_failed": FlashEmailFailed,
}

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// requestFilters reads the grid filters from the parsed form when there is
// one, so a failed POST re-renders with the filters it was sent with.
func requestFilters(r *http.Request) listutil.FilterParams {
	if r.Form != nil {
		return listutil.ParseFilterParams(r.Form)
	}
	return listutil.ParseFilterParams(r.URL.Query())
}

func templateFuncs(r *http.Request) template.FuncMap {
	filters := requestFilters(r)
	return template.FuncMap{
		"csrfToken": func() string { return csrf.Token(r) },
		"csrfField": func() template.HTML { return csrf.TemplateField(r) },
		"openHref":  func(id string) string { return filters.OpenURL(id) },
		"closeHref": func() string { return filters.ListURL() },
		"saveHref": func(id string) string {
			return "/territories/" + url.PathEscape(id)
		},
		"renderMarkdown": func(md string) template.HTML {
			var buf bytes.Buffer
			if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(md))
			}
			return template.HTML(buf.String())
		},
	}
}

// executeTemplate renders the named templates into w. The first name is the
// entry point.
func executeTemplate(w io.Writer, r *http.Request, data any, names ...string) error {
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = "templates/" + n
	}
	tpl, err := template.New(names[0]).Funcs(templateFuncs(r)).ParseFS(assets, paths...)
	if err != nil {
		return err
	}
	return tpl.Execute(w, data)
}

func renderTemplate(w http.ResponseWriter, r *http.Request, status int, templateName string, data any) {
	var buf bytes.Buffer
	if err := executeTemplate(&buf, r, data, "layout.html", templateName); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("response_write_failed", "error", err)
	}
}

// territoriesPage is the data for territories.html.
type territoriesPage struct {
	Filters     listutil.FilterParams
	Statuses    []string
	Grid        projections.GetTerritoryGridResult
	Modal       *modalView
	Flash       string
	FlashFailed bool
	Demo        bool
}

// modalView is the open modal. Closed modals are a nil *modalView.
type modalView struct {
	Detail        projections.TerritoryDetail
	StatusOptions []projections.StatusOption
}

func newTerritoriesPage(r *http.Request, lp listutil.ListParams) (territoriesPage, error) {
	ctx := r.Context()
	grid, err := projections.QueryGetTerritoryGrid(ctx,
		projections.GetTerritoryGridQuery{Search: lp.Search, Status: lp.Status},
		projections.GetTerritoryGridDeps{Territories: deps.State},
	)
	if err != nil {
		return territoriesPage{}, err
	}
	page := territoriesPage{
		Filters:  lp.FilterParams,
		Statuses: grid.Statuses,
		Grid:     grid,
		Demo:     deps.Mode == "demo",
	}
	if lp.Open != "" && !grid.LoadFailed {
		detail, err := projections.QueryGetTerritoryDetail(ctx,
			projections.GetTerritoryDetailQuery{ID: lp.Open},
			projections.GetTerritoryDetailDeps{Territories: deps.State},
		)
		if err != nil {
			return territoriesPage{}, err
		}
		// An unknown id leaves the modal closed.
		if detail.Found {
			page.Modal = &modalView{Detail: detail.Detail, StatusOptions: detail.StatusOptions}
		}
	}
	return page, nil
}

// handleTerritories handles GET /
func handleTerritories(w http.ResponseWriter, r *http.Request) {
	lp := listutil.ParseListParams(r.URL.Query())
	page, err := newTerritoriesPage(r, lp)
	if err != nil {
		internalError(w, err)
		return
	}
	page.Flash = flashes[r.URL.Query().Get(listutil.ParamFlash)]
	renderTemplate(w, r, http.StatusOK, "territories.html", page)
}

// saveRequest is the JSON body accepted by POST /territories/{id}. Keys match
// the spreadsheet backend.
type saveRequest struct {
	ID        string `json:"id"`
	Status    string `json:"estado"`
	Publisher string `json:"publicador"`
	StartDate string `json:"fechaInicio"`
	EndDate   string `json:"fechaFin"`
	Notes     string `json:"notas"`
}

// saveResponse is the JSON reply to a save.
type saveResponse struct {
	ID       string `json:"id"`
	Verified bool   `json:"verified"`
	Reloaded bool   `json:"reloaded"`
}

// handleSaveTerritory handles POST /territories/{id}
func handleSaveTerritory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	jsonReq := isJSONRequest(r)

	var req saveRequest
	if jsonReq {
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		req = saveRequest{
			ID:        r.FormValue("id"),
			Status:    r.FormValue("estado"),
			Publisher: r.FormValue("publicador"),
			StartDate: r.FormValue("fechaInicio"),
			EndDate:   r.FormValue("fechaFin"),
			Notes:     r.FormValue("notas"),
		}
	}
	if req.ID != "" && req.ID != id {
		http.Error(w, "id does not match path", http.StatusBadRequest)
		return
	}

	input := orchestrators.SaveTerritoryInput{
		ID:        id,
		Status:    req.Status,
		Publisher: req.Publisher,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Notes:     req.Notes,
	}
	res, err := orchestrators.ExecuteSaveTerritory(ctx, input, orchestrators.SaveTerritoryDeps{
		Gateway: deps.Gateway,
		State:   deps.State,
		Now:     deps.Now,
	})

	if jsonReq {
		if err != nil {
			http.Error(w, err.Error(), saveErrorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, saveResponse{ID: id, Verified: res.Dispatch.Verified, Reloaded: res.Reloaded})
		return
	}

	filters := requestFilters(r)
	if err == nil {
		http.Redirect(w, r, filters.FlashURL("saved"), http.StatusSeeOther)
		return
	}
	if errors.Is(err, orchestrators.ErrTerritoryNotFound) {
		http.NotFound(w, r)
		return
	}
	renderSaveFailure(w, r, filters, input, saveErrorStatus(err))
}

// renderSaveFailure re-renders the page with the modal open on the values
// the user submitted.
func renderSaveFailure(w http.ResponseWriter, r *http.Request, filters listutil.FilterParams, input orchestrators.SaveTerritoryInput, status int) {
	page, err := newTerritoriesPage(r, listutil.ListParams{FilterParams: filters})
	if err != nil {
		internalError(w, err)
		return
	}
	page.Flash = FlashSaveFailed
	page.FlashFailed = true

	detail := projections.TerritoryDetail{ID: input.ID}
	if found, _ := projections.QueryGetTerritoryDetail(r.Context(),
		projections.GetTerritoryDetailQuery{ID: input.ID},
		projections.GetTerritoryDetailDeps{Territories: deps.State},
	); found.Found {
		detail = found.Detail
	}
	kind := territory.StatusOf(input.Status)
	detail.Status = kind.String()
	detail.Publisher = input.Publisher
	detail.StartDate = input.StartDate
	detail.EndDate = input.EndDate
	detail.Notes = input.Notes
	detail.ShowNotes = kind == territory.StatusIncompleto

	page.Modal = &modalView{Detail: detail, StatusOptions: projections.StatusOptions(kind)}
	renderTemplate(w, r, status, "territories.html", page)
}

func saveErrorStatus(err error) int {
	switch {
	case errors.Is(err, territory.ErrEmptyID), errors.Is(err, territory.ErrBadDate):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrators.ErrTerritoryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// handleReload handles POST /reload
func handleReload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	_, err := orchestrators.ExecuteLoadTerritories(r.Context(), orchestrators.LoadTerritoriesDeps{
		Gateway: deps.Gateway,
		State:   deps.State,
		Now:     deps.Now,
	})
	filters := requestFilters(r)
	if err != nil {
		// The grid shows the load error itself.
		http.Redirect(w, r, filters.ListURL(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, filters.FlashURL("reloaded"), http.StatusSeeOther)
}

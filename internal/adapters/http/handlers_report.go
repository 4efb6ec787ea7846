package web

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"territorios/internal/application/orchestrators"
	"territorios/internal/application/projections"
)

// s13Page is the data for s13.html. Print adds the focus-and-print script;
// the emailed copy leaves it out.
type s13Page struct {
	Report projections.GetS13ReportResult
	Print  bool
}

func buildS13(r *http.Request, printable bool) (s13Page, error) {
	report, err := projections.QueryGetS13Report(r.Context(),
		projections.GetS13ReportQuery{PrintDelay: deps.PrintDelay},
		projections.GetS13ReportDeps{Territories: deps.State, Now: deps.Now},
	)
	if err != nil {
		return s13Page{}, err
	}
	return s13Page{Report: report, Print: printable}, nil
}

// handleS13Report handles GET /report/s13
func handleS13Report(w http.ResponseWriter, r *http.Request) {
	page, err := buildS13(r, true)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := executeTemplate(&buf, r, page, "s13.html"); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// emailResponse is the JSON reply to POST /report/s13/email.
type emailResponse struct {
	MessageID string   `json:"message_id"`
	To        []string `json:"to"`
}

// emailRequest is the JSON body accepted by POST /report/s13/email.
type emailRequest struct {
	To []string `json:"to"`
}

// handleEmailS13Report handles POST /report/s13/email
func handleEmailS13Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jsonReq := isJSONRequest(r)

	var to []string
	if jsonReq {
		var req emailRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}
		to = req.To
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form submission", http.StatusBadRequest)
			return
		}
		if raw := strings.TrimSpace(r.FormValue("to")); raw != "" {
			to = strings.Split(raw, ",")
		}
	}
	if len(to) == 0 {
		to = deps.ReportTo
	}

	page, err := buildS13(r, false)
	if err != nil {
		internalError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := executeTemplate(&buf, r, page, "s13.html"); err != nil {
		internalError(w, err)
		return
	}

	res, err := orchestrators.ExecuteEmailReport(ctx, orchestrators.EmailReportInput{
		To:          to,
		HTML:        buf.String(),
		ServiceYear: page.Report.ServiceYear,
	}, orchestrators.EmailReportDeps{Sender: deps.Sender})

	if jsonReq {
		if err != nil {
			http.Error(w, err.Error(), emailErrorStatus(err))
			return
		}
		writeJSON(w, http.StatusOK, emailResponse{MessageID: res.MessageID, To: to})
		return
	}

	filters := requestFilters(r)
	if err != nil {
		http.Redirect(w, r, filters.FlashURL("email_failed"), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, filters.FlashURL("emailed"), http.StatusSeeOther)
}

func emailErrorStatus(err error) int {
	switch {
	case errors.Is(err, orchestrators.ErrNoRecipients),
		errors.Is(err, orchestrators.ErrInvalidRecipient),
		errors.Is(err, orchestrators.ErrEmptyReport):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

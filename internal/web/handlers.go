package web

import (
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/ale2ccc/internal/db"
	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/ops"
	"github.com/hpungsan/ale2ccc/internal/report"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	deps     ops.Deps
	renderer *Renderer
}

// HandleList handles GET /runs, recorded conversions newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.HistoryListInput{
		Output: r.URL.Query().Get("output"),
		Status: r.URL.Query().Get("status"),
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := ops.HistoryList(h.deps.DB, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Runs:       result.Runs,
		Pagination: result.Pagination,
		Output:     input.Output,
		Status:     input.Status,
		Statuses:   []string{db.StatusOK, db.StatusFailed, db.StatusWriteFailed},
	})
}

// HandleDetail handles GET /runs/{id}, one run with its report and corrections.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run id is required"))
		return
	}

	run, err := ops.HistoryShow(h.deps.DB, id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, run)
		return
	}

	fragment, err := report.HTMLFragment(run.Report())
	if err != nil {
		fragment = template.HTML(template.HTMLEscapeString(err.Error()))
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   "Run " + run.Run.ID,
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Run:         run.Run,
		Corrections: run.Corrections,
		Report:      fragment,
	})
}

// HandleReport handles GET /runs/{id}/report, the run report as Markdown.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	run, err := ops.HistoryShow(h.deps.DB, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+run.Run.ID+`.md"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Markdown(run.Report()))
}

// HandlePrune handles POST /runs/prune, deleting runs older than N days.
func (h *Handlers) HandlePrune(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	days, err := strconv.Atoi(r.FormValue("older_than_days"))
	if err != nil || days <= 0 {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("older_than_days must be a positive integer"))
		return
	}

	result, err := ops.HistoryPrune(r.Context(), h.deps.DB, ops.HistoryPruneInput{
		OlderThan: time.Duration(days) * 24 * time.Hour,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="prune-result">` + template.HTMLEscapeString(result.Message) + `</div>`))
		return
	}

	// JSON request
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/runs", http.StatusFound)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// Package ui serves a read-only HTML view of the scheduler.
package ui

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/mcsched/internal/scheduler"
)

// UI renders scheduler state as HTML pages.
type UI struct {
	core   *scheduler.Core
	logger *slog.Logger
}

// New creates a UI over core.
func New(core *scheduler.Core, logger *slog.Logger) *UI {
	return &UI{core: core, logger: logger.With("component", "ui")}
}

// RegisterRoutes registers the UI pages on r.
func (ui *UI) RegisterRoutes(r chi.Router) {
	r.Get("/", ui.HandleDashboard)
	r.Get("/workers", ui.HandleWorkers)
	r.Get("/jobs", ui.HandleJobs)
	r.Get("/jobs/{id}", ui.HandleJobDetail)
}

// HandleDashboard renders counts and the current queue.
func (ui *UI) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ui.render(w, http.StatusOK, "dashboard", map[string]any{
		"Title":  "Dashboard - mcsched",
		"Stats":  ui.core.Stats(),
		"Queued": ui.core.QueuedJobs(),
	})
}

func (ui *UI) HandleWorkers(w http.ResponseWriter, r *http.Request) {
	ui.render(w, http.StatusOK, "workers", map[string]any{
		"Title":   "Workers - mcsched",
		"Workers": ui.core.Workers(),
	})
}

func (ui *UI) HandleJobs(w http.ResponseWriter, r *http.Request) {
	ui.render(w, http.StatusOK, "jobs", map[string]any{
		"Title":   "Jobs - mcsched",
		"Queued":  ui.core.QueuedJobs(),
		"History": ui.core.HistoryJobs(),
	})
}

func (ui *UI) HandleJobDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := ui.core.Job(id)
	if job == nil {
		ui.render(w, http.StatusNotFound, "error", map[string]any{
			"Title":   "Not Found - mcsched",
			"Message": "No job " + id + " in the queue or history.",
		})
		return
	}
	ui.render(w, http.StatusOK, "job", map[string]any{
		"Title": "Job " + id + " - mcsched",
		"Job":   job,
	})
}

func (ui *UI) render(w http.ResponseWriter, status int, name string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, name, data); err != nil {
		ui.logger.Error("template render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

package main

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/udec-estadio/humidityboard/pkg/models"
	"github.com/udec-estadio/humidityboard/pkg/views"
)

// renderHTML buffers the page so a template error can still become a 500
func (rm *RouteManager) renderHTML(w http.ResponseWriter, r *http.Request, page string, render func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		rm.logger.Error("template render failed",
			"page", page,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		respondWithError(w, newAPIError(models.ErrorCodeInternalServerError,
			"Failed to render page", http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		rm.logger.Debug("write response failed", "page", page, "error", err)
	}
}

func (rm *RouteManager) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	data := views.NewDashboardData(rm.dashboard.Snapshot(), rm.cfg.Dashboard.PollInterval)
	rm.renderHTML(w, r, "dashboard", func(buf *bytes.Buffer) error {
		return views.RenderDashboard(buf, data)
	})
}

// dashboardPartialHandler serves the fragment polled by the dashboard page
func (rm *RouteManager) dashboardPartialHandler(w http.ResponseWriter, r *http.Request) {
	data := views.NewDashboardData(rm.dashboard.Snapshot(), rm.cfg.Dashboard.PollInterval)
	rm.renderHTML(w, r, "dashboard-partial", func(buf *bytes.Buffer) error {
		return views.RenderDashboardPartial(buf, data)
	})
}

// readingsPageHandler lists the latest batch, optionally narrowed to one
// location with ?location=
func (rm *RouteManager) readingsPageHandler(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))

	batch, err := rm.store.GetLatestReadings(r.Context(), models.DefaultListLimit)
	if err != nil {
		rm.logger.Error("failed to list readings",
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		respondWithError(w, newAPIError(models.ErrorCodeInternalServerError,
			"Failed to fetch readings", http.StatusInternalServerError))
		return
	}

	data := views.NewReadingsData(batch, location, rm.cfg.Dashboard.Locations)
	rm.renderHTML(w, r, "readings", func(buf *bytes.Buffer) error {
		return views.RenderReadings(buf, data)
	})
}

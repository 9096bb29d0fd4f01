package http

import (
	"bytes"
	"net/http"
	"time"

	"subtrack/internal/chart"
	"subtrack/internal/export"
	applog "subtrack/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).String(),
	})
}

// handleReady reports whether the server can render dashboards.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]interface{}{}

	if s.templates == nil || s.templates.Lookup("dashboard") == nil {
		checks["templates"] = "failed: dashboard template missing"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}
	if n := s.sessions.Catalog().Len(); n == 0 {
		checks["catalog"] = "empty"
	} else {
		checks["catalog"] = "ok"
	}
	checks["views"] = s.sessions.Size()
	checks["chart_cache"] = s.charts.Size()

	tm := s.tracer.GetMetrics()
	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
		"requests": map[string]interface{}{
			"total":              tm.TotalRequests,
			"avg_response_us":    tm.AverageResponseTime,
			"rate_limited":       s.rateLimiter.Rejected(),
			"suspicious_flagged": s.detector.SuspiciousRequests(),
		},
	})
}

// handleChart serves the category bar chart of the caller's view.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	v, _ := s.viewFor(w, r)
	st, ov := v.Dashboard.View()

	start := time.Now()
	svg, cached, err := s.charts.Render(ov.ByCategory, st.DarkTheme)
	if err != nil {
		s.structured.LogError(r.Context(), "Chart render failed", err, applog.OpRender,
			applog.NewFields().WithComponent(applog.ComponentChart).WithSession(v.ID))
		http.Error(w, "chart unavailable", http.StatusInternalServerError)
		return
	}
	s.metrics.ChartServed(cached, time.Since(start))

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

type subscriptionJSON struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	YearlyCost  string `json:"yearly_cost"`
	NextPayment string `json:"next_payment"`
	Logo        string `json:"logo"`
}

type categoryJSON struct {
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
	Color      string `json:"color"`
}

type dashboardJSON struct {
	DarkTheme   bool               `json:"dark_theme"`
	GhostMode   bool               `json:"ghost_mode"`
	Selected    []int              `json:"selected"`
	Visible     []subscriptionJSON `json:"visible"`
	ActiveCount int                `json:"active_count"`
	TotalCents  int64              `json:"total_cents"`
	Total       string             `json:"total"`
	ByCategory  []categoryJSON     `json:"by_category"`
	Chart       chart.Data         `json:"chart"`
}

// handleAPIDashboard returns the view state and everything derived from it.
func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	v, _ := s.viewFor(w, r)
	st, ov := v.Dashboard.View()

	out := dashboardJSON{
		DarkTheme:   st.DarkTheme,
		GhostMode:   st.GhostMode,
		Selected:    st.Selected.IDs(),
		Visible:     make([]subscriptionJSON, 0, len(ov.Visible)),
		ActiveCount: len(ov.Visible),
		TotalCents:  ov.Total.Cents,
		Total:       s.currency.Format(ov.Total),
		ByCategory:  make([]categoryJSON, 0, len(ov.ByCategory)),
		Chart:       chart.FromCategories(ov.ByCategory),
	}
	for _, sub := range ov.Visible {
		out.Visible = append(out.Visible, subscriptionJSON{
			ID:          sub.ID,
			Name:        sub.Name,
			Category:    sub.Category,
			YearlyCost:  sub.YearlyCost.Decimal().StringFixed(2),
			NextPayment: sub.NextPayment.ISO(),
			Logo:        sub.Logo,
		})
	}
	for _, c := range ov.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryJSON{
			Name:       c.Name,
			TotalCents: c.Amount.Cents,
			Total:      s.currency.Format(c.Amount),
			Color:      c.Color,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExport streams the view as an XLSX workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	v, _ := s.viewFor(w, r)
	st, ov := v.Dashboard.View()

	var buf bytes.Buffer
	err := export.WriteXLSX(&buf, export.Snapshot{
		Subscriptions: v.Dashboard.Subscriptions(),
		State:         st,
		Overview:      ov,
		Currency:      s.currency,
	})
	if err != nil {
		s.structured.LogError(r.Context(), "Export failed", err, applog.OpExport,
			applog.NewFields().WithComponent(applog.ComponentExport).WithSession(v.ID))
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	s.metrics.Exported()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="subscriptions.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleEndSession unmounts the caller's view and forgets the cookie.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Unmount(c.Value)
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

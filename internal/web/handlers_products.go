package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/stockimport/internal/core"
	"github.com/JonMunkholm/stockimport/internal/web/templates"
)

// healthTimeout bounds the store ping made by /healthz.
const healthTimeout = 2 * time.Second

// handleDashboard renders the product table with an upload form.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListAll(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(products, core.Summarize(products)).Render(r.Context(), w); err != nil {
		s.requestLogger(r).Error("render dashboard", "error", err)
	}
}

// handleListProducts returns every stored product as a JSON array.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListAll(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, products)
}

// handleProductSummary returns the total and out-of-stock counts.
func (s *Server) handleProductSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, summary)
}

// handleHealth reports whether the store is reachable along with upload
// slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	body := map[string]any{
		"status":  "ok",
		"uploads": s.service.UploadLimiterStatus(),
	}

	if err := s.service.Ping(ctx); err != nil {
		s.requestLogger(r).Error("health check failed", "error", err)
		body["status"] = "unavailable"
		s.writeJSON(w, r, http.StatusServiceUnavailable, body)
		return
	}
	s.writeJSON(w, r, http.StatusOK, body)
}

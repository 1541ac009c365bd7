package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/simple-saas-template/backend/internal/health"
	"github.com/simple-saas-template/backend/internal/response"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeReport(w, s.health.Run(r.Context()))
}

func (s *Server) handleComponentHealth(w http.ResponseWriter, r *http.Request) {
	component := chi.URLParam(r, "component")
	report, err := s.health.RunComponent(r.Context(), component)
	if errors.Is(err, health.ErrUnknownComponent) {
		response.ErrorCode(w, http.StatusNotFound, "Unknown component: "+component, "UNKNOWN_COMPONENT",
			map[string]any{"components": s.health.Components()})
		return
	}
	writeReport(w, report)
}

// writeReport answers 503 when any check failed.
func writeReport(w http.ResponseWriter, report health.Report) {
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, response.Envelope{Success: report.Healthy(), Data: report})
}

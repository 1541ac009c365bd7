package handlers

import (
	"log/slog"
	"net/http"

	"github.com/simple-saas-template/backend/internal/response"
	"github.com/simple-saas-template/backend/internal/upload"
)

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req upload.Request
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.Validate(); msg != "" {
		response.Error(w, http.StatusBadRequest, msg)
		return
	}
	if s.uploads == nil {
		response.Error(w, http.StatusServiceUnavailable, "Uploads are not configured")
		return
	}

	grant, err := s.uploads.Grant(r.Context(), req)
	if err != nil {
		slog.Error("failed to grant upload", "filename", req.Filename, "err", err)
		response.Error(w, http.StatusInternalServerError, "Failed to generate upload URL")
		return
	}
	response.OK(w, http.StatusOK, grant)
}

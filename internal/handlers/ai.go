package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/simple-saas-template/backend/internal/models"
	"github.com/simple-saas-template/backend/internal/response"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type generateRequest struct {
	Prompt      string   `json:"prompt"`
	UserID      string   `json:"userId"`
	Model       string   `json:"model"`
	MaxTokens   int      `json:"maxTokens"`
	Temperature *float64 `json:"temperature"`
}

type generateResponse struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	Tokens    int    `json:"tokens"`
	RequestID string `json:"requestId"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Prompt == "" {
		response.Error(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	req := s.defaults
	req.Prompt = body.Prompt
	if body.Model != "" {
		req.Model = body.Model
	}
	if body.MaxTokens != 0 {
		req.MaxTokens = body.MaxTokens
	}
	if body.Temperature != nil {
		req.Temperature = *body.Temperature
	}
	if msg := req.Validate(); msg != "" {
		response.Error(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	if body.UserID != "" {
		user, err := s.repo.GetUser(ctx, body.UserID)
		if err != nil {
			slog.Error("failed to get user", "userID", body.UserID, "err", err)
			response.Error(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if !user.Active() {
			slog.Info("rejected inference for inactive user", "userID", body.UserID)
			response.Error(w, http.StatusForbidden, "Active subscription required for AI features")
			return
		}
	}

	result, err := s.model.Generate(ctx, req)
	if err != nil {
		slog.Error("inference failed", "model", req.Model, "err", err)
		response.Error(w, http.StatusInternalServerError, "AI processing failed")
		return
	}

	if body.UserID != "" {
		_, err := s.repo.PutUsage(ctx, models.Usage{
			UserID:     body.UserID,
			Prompt:     req.Prompt,
			Response:   result.Text,
			Model:      result.Model,
			TokensUsed: result.Tokens,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			slog.Error("failed to record usage", "userID", body.UserID, "err", err)
		}
	}

	response.OK(w, http.StatusOK, generateResponse{
		Response:  result.Text,
		Model:     result.Model,
		Tokens:    result.Tokens,
		RequestID: requestID(r),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("userId")
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "User ID is required")
		return
	}
	limit := defaultHistoryLimit
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			response.Error(w, http.StatusBadRequest, "Limit must be between 1 and 100")
			return
		}
		limit = n
	}

	usage, err := s.repo.ListUsage(r.Context(), userID, limit)
	if err != nil {
		slog.Error("failed to list usage", "userID", userID, "err", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if usage == nil {
		usage = []models.Usage{}
	}
	response.OK(w, http.StatusOK, map[string]any{
		"history": usage,
		"count":   len(usage),
	})
}

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/simple-saas-template/backend/internal/auth"
	"github.com/simple-saas-template/backend/internal/models"
	"github.com/simple-saas-template/backend/internal/response"
)

// Action selects the operation performed by the user endpoint.
type Action string

const (
	ActionGetUser    Action = "getUser"
	ActionCreateUser Action = "createUser"
)

type userRequest struct {
	Action   Action             `json:"action"`
	UserID   string             `json:"userId"`
	UserData *models.UserCreate `json:"userData"`
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	switch req.Action {
	case ActionGetUser:
		s.getUser(w, r, req.UserID)
	case ActionCreateUser:
		s.createUser(w, r, req.UserData)
	default:
		// Unknown actions are answered with 200 so routing details are not
		// exposed to callers.
		response.Error(w, http.StatusOK, "Invalid action")
	}
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "User ID is required")
		return
	}
	user, err := s.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("failed to get user", "userID", userID, "err", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		response.Error(w, http.StatusNotFound, "User not found")
		return
	}
	response.OK(w, http.StatusOK, user)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request, data *models.UserCreate) {
	if data == nil || data.ID == "" {
		response.Error(w, http.StatusBadRequest, "User data with id is required")
		return
	}
	ctx := r.Context()

	existing, err := s.repo.GetUser(ctx, data.ID)
	if err != nil {
		slog.Error("failed to get user", "userID", data.ID, "err", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing != nil {
		response.OK(w, http.StatusOK, existing)
		return
	}

	create := *data
	if id := auth.FromContext(ctx); id != nil {
		create.CognitoID = id.Subject
	}
	// Subscription state only changes through billing events.
	create.SubscriptionStatus = models.SubscriptionStatusInactive

	user, err := s.repo.CreateUser(ctx, create)
	if err != nil {
		slog.Error("failed to create user", "userID", data.ID, "err", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	slog.Info("created user", "userID", user.ID)
	response.OK(w, http.StatusCreated, user)
}

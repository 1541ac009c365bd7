package handlers

import (
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/simple-saas-template/backend/internal/models"
	"github.com/simple-saas-template/backend/internal/response"
)

type subscriptionStatus struct {
	Subscription          *models.Subscription      `json:"subscription"`
	SubscriptionStatus    models.SubscriptionStatus `json:"subscriptionStatus"`
	HasActiveSubscription bool                      `json:"hasActiveSubscription"`
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		response.Error(w, http.StatusBadRequest, "User ID is required")
		return
	}

	var (
		user *models.User
		sub  *models.Subscription
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		user, err = s.repo.GetUser(ctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		sub, err = s.repo.GetSubscription(ctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("failed to read subscription status", "userID", userID, "err", err)
		response.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := models.SubscriptionStatusInactive
	if user != nil && user.SubscriptionStatus != "" {
		status = user.SubscriptionStatus
	}
	response.OK(w, http.StatusOK, subscriptionStatus{
		Subscription:          sub,
		SubscriptionStatus:    status,
		HasActiveSubscription: user.Active(),
	})
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/simple-saas-template/backend/internal/billing"
	"github.com/simple-saas-template/backend/internal/response"
)

const defaultOrigin = "http://localhost:3000"

type checkoutRequest struct {
	PriceID string `json:"priceId"`
	UserID  string `json:"userId"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PriceID == "" {
		response.Error(w, http.StatusBadRequest, "Price ID is required")
		return
	}
	if req.UserID == "" {
		req.UserID = billing.AnonymousUser
	}

	origin := strings.TrimSuffix(r.Header.Get("Origin"), "/")
	if origin == "" {
		origin = defaultOrigin
	}

	session, err := s.billing.CreateCheckoutSession(r.Context(), billing.CheckoutRequest{
		PriceID:   req.PriceID,
		UserID:    req.UserID,
		ReturnURL: origin + "/dashboard?session_id={CHECKOUT_SESSION_ID}",
	})
	if err != nil {
		slog.Error("failed to create checkout session", "userID", req.UserID, "priceID", req.PriceID, "err", err)
		if errors.Is(err, billing.ErrNotConfigured) {
			response.Error(w, http.StatusServiceUnavailable, "Billing is not configured")
			return
		}
		response.Error(w, http.StatusBadGateway, "Failed to create checkout session")
		return
	}
	response.OK(w, http.StatusOK, session)
}

package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/simple-saas-template/backend/internal/billing"
	"github.com/simple-saas-template/backend/internal/response"
)

type webhookError struct {
	Error string `json:"error"`
}

type webhookAck struct {
	Received bool `json:"received"`
}

// handleWebhook acknowledges every verified event. Failures while applying
// it are recorded by the processor for replay, never returned to the
// provider.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		response.JSON(w, http.StatusBadRequest, webhookError{Error: "Missing stripe-signature header"})
		return
	}
	if s.webhookSecret == "" {
		slog.Error("webhook secret not configured")
		response.JSON(w, http.StatusBadRequest, webhookError{Error: "Webhook secret not configured"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		slog.Error("failed to read webhook body", "err", err)
		response.JSON(w, http.StatusBadRequest, webhookError{Error: "Webhook handler failed"})
		return
	}

	event, err := billing.VerifyEvent(payload, signature, s.webhookSecret)
	if err != nil {
		slog.Error("webhook verification failed", "err", err)
		response.JSON(w, http.StatusBadRequest, webhookError{Error: "Webhook handler failed"})
		return
	}

	s.processor.Handle(r.Context(), event, payload)
	response.JSON(w, http.StatusOK, webhookAck{Received: true})
}

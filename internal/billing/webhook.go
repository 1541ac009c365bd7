package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/simple-saas-template/backend/internal/models"
	"github.com/simple-saas-template/backend/internal/repository"
)

var ErrMissingOwner = errors.New("event has no owning user")

// VerifyEvent checks the signature header against the endpoint secret and
// parses the event.
func VerifyEvent(payload []byte, header string, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// Processor applies verified provider events to stored user and
// subscription state.
type Processor struct {
	repo   repository.Repository
	client Client
	now    func() time.Time
}

func NewProcessor(repo repository.Repository, client Client) *Processor {
	return &Processor{
		repo:   repo,
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle applies the event and records it for replay when that fails. It
// never returns the application error: the provider must see a success once
// the signature has been verified.
func (p *Processor) Handle(ctx context.Context, event stripe.Event, payload []byte) {
	err := p.Apply(ctx, event)
	if err == nil {
		return
	}
	slog.Error("failed to apply webhook event", "eventID", event.ID, "type", event.Type, "err", err)

	now := p.now()
	failed := models.FailedEvent{
		ID:            event.ID,
		Type:          string(event.Type),
		Payload:       string(payload),
		Error:         err.Error(),
		Attempts:      1,
		ReceivedAt:    now,
		LastAttemptAt: now,
	}
	if failed.ID == "" {
		failed.ID = fmt.Sprintf("unidentified-%d", now.UnixNano())
	}
	if err := p.repo.PutFailedEvent(ctx, failed); err != nil {
		slog.Error("failed to record webhook event", "eventID", failed.ID, "err", err)
	}
}

func (p *Processor) Apply(ctx context.Context, event stripe.Event) error {
	slog.Info("processing webhook event", "eventID", event.ID, "type", event.Type)
	if event.Data == nil {
		return fmt.Errorf("event %s has no data", event.ID)
	}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("parse checkout session: %w", err)
		}
		return p.checkoutCompleted(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("parse subscription: %w", err)
		}
		return p.subscriptionChanged(ctx, &sub)
	default:
		slog.Info("unhandled webhook event", "type", event.Type)
		return nil
	}
}

func (p *Processor) checkoutCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	userID := session.Metadata[MetadataUserID]
	if userID == "" || userID == AnonymousUser {
		slog.Error("no user id in checkout session metadata", "sessionID", session.ID)
		return nil
	}

	active := models.SubscriptionStatusActive
	update := models.UserUpdate{SubscriptionStatus: &active}
	var subscriptionID string
	if session.Subscription != nil && session.Subscription.ID != "" {
		subscriptionID = session.Subscription.ID
		update.SubscriptionID = &subscriptionID
	}
	if _, err := p.repo.UpdateUser(ctx, userID, update); err != nil {
		return fmt.Errorf("activate user %s: %w", userID, err)
	}

	if subscriptionID != "" {
		sub, err := p.client.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}
		_, err = p.repo.PutSubscription(ctx, models.SubscriptionCreate{
			ID:                 sub.ID,
			UserID:             userID,
			Status:             sub.Status,
			PlanID:             sub.PlanID,
			CurrentPeriodStart: sub.CurrentPeriodStart,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		})
		if err != nil {
			return fmt.Errorf("store subscription %s: %w", sub.ID, err)
		}
	}
	slog.Info("processed checkout completion", "userID", userID, "subscriptionID", subscriptionID)
	return nil
}

func (p *Processor) subscriptionChanged(ctx context.Context, sub *stripe.Subscription) error {
	userID := sub.Metadata[MetadataUserID]
	if userID == "" {
		stored, err := p.repo.GetSubscriptionByID(ctx, sub.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("subscription %s: %w", sub.ID, ErrMissingOwner)
		}
		userID = stored.UserID
	}

	status := models.StatusFor(stateFor(sub.Status))
	if _, err := p.repo.UpdateUser(ctx, userID, models.UserUpdate{SubscriptionStatus: &status}); err != nil {
		return fmt.Errorf("update user %s: %w", userID, err)
	}
	slog.Info("updated subscription status", "userID", userID, "status", status)
	return nil
}

// Replay re-applies a recorded event. The payload was verified when it was
// first received.
func (p *Processor) Replay(ctx context.Context, failed models.FailedEvent) error {
	var event stripe.Event
	if err := json.Unmarshal([]byte(failed.Payload), &event); err != nil {
		return fmt.Errorf("parse recorded event %s: %w", failed.ID, err)
	}
	if err := p.Apply(ctx, event); err != nil {
		failed.Attempts++
		failed.Error = err.Error()
		failed.LastAttemptAt = p.now()
		if putErr := p.repo.PutFailedEvent(ctx, failed); putErr != nil {
			return errors.Join(err, putErr)
		}
		return err
	}
	return p.repo.DeleteFailedEvent(ctx, failed.ID)
}

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/simple-saas-template/backend/internal/models"
)

type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type subscriptions interface {
	Get(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type StripeClient struct {
	sessions      checkoutSessions
	subscriptions subscriptions
}

func NewStripeClient(secretKey string) *StripeClient {
	api := client.New(secretKey, nil)
	return &StripeClient{
		sessions:      api.CheckoutSessions,
		subscriptions: api.Subscriptions,
	}
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		UIMode:             stripe.String(string(stripe.CheckoutSessionUIModeEmbedded)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ReturnURL: stripe.String(req.ReturnURL),
		// copied onto the subscription so lifecycle events carry the owner
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: req.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetadataUserID, req.UserID)

	session, err := c.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", describe(err))
	}
	slog.Info("created checkout session", "sessionID", session.ID, "userID", req.UserID)
	return &CheckoutSession{
		ID:           session.ID,
		ClientSecret: session.ClientSecret,
	}, nil
}

func (c *StripeClient) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, describe(err))
	}
	return fromStripeSubscription(sub), nil
}

func fromStripeSubscription(sub *stripe.Subscription) *Subscription {
	result := &Subscription{
		ID:                 sub.ID,
		UserID:             sub.Metadata[MetadataUserID],
		Status:             stateFor(sub.Status),
		PlanID:             UnknownPlan,
		CurrentPeriodStart: unix(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unix(sub.CurrentPeriodEnd),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		result.PlanID = sub.Items.Data[0].Price.ID
	}
	return result
}

func stateFor(status stripe.SubscriptionStatus) models.SubscriptionState {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionStateActive
	case stripe.SubscriptionStatusPastDue:
		return models.SubscriptionStatePastDue
	case stripe.SubscriptionStatusCanceled:
		return models.SubscriptionStateCancelled
	case stripe.SubscriptionStatusIncomplete:
		return models.SubscriptionStateIncomplete
	default:
		return models.SubscriptionState(status)
	}
}

func unix(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

// describe keeps the provider's error code and request id in the message.
func describe(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return fmt.Errorf("stripe %s (%s, request %s): %w", stripeErr.Type, stripeErr.Code, stripeErr.RequestID, err)
	}
	return err
}

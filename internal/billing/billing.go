// Package billing wraps the payment provider: hosted checkout sessions,
// subscription lookups and webhook event application.
package billing

import (
	"context"
	"errors"
	"time"

	"github.com/simple-saas-template/backend/internal/models"
)

const (
	// MetadataUserID is the metadata key correlating provider objects to users.
	MetadataUserID = "userId"
	AnonymousUser  = "anonymous"
	UnknownPlan    = "unknown"
)

var ErrNotConfigured = errors.New("billing provider not configured")

type CheckoutRequest struct {
	PriceID   string
	UserID    string
	ReturnURL string
}

type CheckoutSession struct {
	ID           string `json:"sessionId"`
	ClientSecret string `json:"clientSecret"`
}

// Subscription is the provider's view of a subscription.
type Subscription struct {
	ID                 string
	UserID             string
	Status             models.SubscriptionState
	PlanID             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

type Client interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
}

type unconfigured struct{}

// Unconfigured is used when no secret key is available. Every call fails
// with ErrNotConfigured.
func Unconfigured() Client {
	return unconfigured{}
}

func (unconfigured) CreateCheckoutSession(context.Context, CheckoutRequest) (*CheckoutSession, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) GetSubscription(context.Context, string) (*Subscription, error) {
	return nil, ErrNotConfigured
}

package models

import "time"

type SubscriptionState string

const (
	SubscriptionStateActive     SubscriptionState = "active"
	SubscriptionStatePastDue    SubscriptionState = "past_due"
	SubscriptionStateCancelled  SubscriptionState = "cancelled"
	SubscriptionStateIncomplete SubscriptionState = "incomplete"
)

type Subscription struct {
	ID                   string            `json:"id" dynamodbav:"id"`
	UserID               string            `json:"userId" dynamodbav:"userId"`
	StripeSubscriptionID string            `json:"stripeSubscriptionId" dynamodbav:"stripeSubscriptionId"`
	Status               SubscriptionState `json:"status" dynamodbav:"status"`
	PlanID               string            `json:"planId" dynamodbav:"planId"`
	CurrentPeriodStart   time.Time         `json:"currentPeriodStart" dynamodbav:"currentPeriodStart"`
	CurrentPeriodEnd     time.Time         `json:"currentPeriodEnd" dynamodbav:"currentPeriodEnd"`
	CreatedAt            time.Time         `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt" dynamodbav:"updatedAt"`
}

type SubscriptionCreate struct {
	ID                 string
	UserID             string
	Status             SubscriptionState
	PlanID             string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
}

// StatusFor collapses a provider subscription status into the binary
// user-facing status used for gating.
func StatusFor(state SubscriptionState) SubscriptionStatus {
	if state == SubscriptionStateActive {
		return SubscriptionStatusActive
	}
	return SubscriptionStatusInactive
}

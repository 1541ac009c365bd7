package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-saas-template/backend/internal/models"
	"github.com/simple-saas-template/backend/internal/repository"
)

const testSecret = "whsec_test_secret"

type fakeClient struct {
	subscriptions map[string]*Subscription
	checkout      []CheckoutRequest
	err           error
}

func (f *fakeClient) CreateCheckoutSession(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.checkout = append(f.checkout, req)
	return &CheckoutSession{ID: "cs_test_1", ClientSecret: "cs_test_1_secret"}, nil
}

func (f *fakeClient) GetSubscription(_ context.Context, id string) (*Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.subscriptions[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func eventPayload(t *testing.T, id string, eventType string, object any) []byte {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)
	return payload
}

func parseEvent(t *testing.T, payload []byte) stripe.Event {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testSecret})
	event, err := VerifyEvent(payload, signed.Header, testSecret)
	require.NoError(t, err)
	return event
}

func checkoutCompleted(t *testing.T, userID string, subscriptionID string) []byte {
	session := map[string]any{
		"id":       "cs_test_1",
		"object":   "checkout.session",
		"metadata": map[string]string{"userId": userID},
	}
	if subscriptionID != "" {
		session["subscription"] = subscriptionID
	}
	return eventPayload(t, "evt_checkout", "checkout.session.completed", session)
}

func newTestProcessor(t *testing.T) (*Processor, *repository.MemoryRepository, *fakeClient) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	_, err := repo.CreateUser(context.Background(), models.UserCreate{ID: "u1", Email: "a@b.com"})
	require.NoError(t, err)
	client := &fakeClient{subscriptions: map[string]*Subscription{
		"sub_1": {
			ID:                 "sub_1",
			Status:             models.SubscriptionStateActive,
			PlanID:             "price_pro",
			CurrentPeriodStart: time.Unix(1704067200, 0).UTC(),
			CurrentPeriodEnd:   time.Unix(1706745600, 0).UTC(),
		},
	}}
	return NewProcessor(repo, client), repo, client
}

func TestVerifyEventRejectsBadSignature(t *testing.T) {
	payload := checkoutCompleted(t, "u1", "sub_1")
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: "whsec_other"})

	_, err := VerifyEvent(payload, signed.Header, testSecret)
	assert.Error(t, err)

	_, err = VerifyEvent(payload, "t=1,v1=deadbeef", testSecret)
	assert.Error(t, err)
}

func TestCheckoutCompletedActivatesUser(t *testing.T) {
	processor, repo, _ := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, processor.Apply(ctx, parseEvent(t, checkoutCompleted(t, "u1", "sub_1"))))

	user, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, user.SubscriptionStatus)
	assert.Equal(t, "sub_1", user.SubscriptionID)

	sub, err := repo.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "sub_1", sub.ID)
	assert.Equal(t, "price_pro", sub.PlanID)
	assert.Equal(t, time.Unix(1706745600, 0).UTC(), sub.CurrentPeriodEnd)
}

func TestCheckoutCompletedIsIdempotent(t *testing.T) {
	processor, repo, _ := newTestProcessor(t)
	ctx := context.Background()
	event := parseEvent(t, checkoutCompleted(t, "u1", "sub_1"))

	require.NoError(t, processor.Apply(ctx, event))
	first, err := repo.GetSubscription(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, processor.Apply(ctx, event))
	second, err := repo.GetSubscription(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.CurrentPeriodEnd, second.CurrentPeriodEnd)
	user, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, user.SubscriptionStatus)
}

func TestCheckoutCompletedAnonymousIsNoop(t *testing.T) {
	processor, repo, _ := newTestProcessor(t)
	ctx := context.Background()

	require.NoError(t, processor.Apply(ctx, parseEvent(t, checkoutCompleted(t, "anonymous", "sub_1"))))

	user, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusInactive, user.SubscriptionStatus)
	sub, err := repo.GetSubscription(ctx, "anonymous")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestSubscriptionUpdatedDeactivates(t *testing.T) {
	processor, repo, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, processor.Apply(ctx, parseEvent(t, checkoutCompleted(t, "u1", "sub_1"))))

	for _, status := range []string{"past_due", "canceled", "unpaid", "incomplete"} {
		payload := eventPayload(t, "evt_sub_"+status, "customer.subscription.updated", map[string]any{
			"id":       "sub_1",
			"object":   "subscription",
			"status":   status,
			"metadata": map[string]string{"userId": "u1"},
		})
		require.NoError(t, processor.Apply(ctx, parseEvent(t, payload)))

		user, err := repo.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionStatusInactive, user.SubscriptionStatus, status)
	}
}

func TestSubscriptionDeletedFallsBackToStoredOwner(t *testing.T) {
	processor, repo, _ := newTestProcessor(t)
	ctx := context.Background()
	require.NoError(t, processor.Apply(ctx, parseEvent(t, checkoutCompleted(t, "u1", "sub_1"))))

	payload := eventPayload(t, "evt_deleted", "customer.subscription.deleted", map[string]any{
		"id":     "sub_1",
		"object": "subscription",
		"status": "canceled",
	})
	require.NoError(t, processor.Apply(ctx, parseEvent(t, payload)))

	user, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusInactive, user.SubscriptionStatus)
}

func TestUnknownEventAcknowledged(t *testing.T) {
	processor, _, _ := newTestProcessor(t)
	payload := eventPayload(t, "evt_invoice", "invoice.paid", map[string]any{"id": "in_1", "object": "invoice"})
	assert.NoError(t, processor.Apply(context.Background(), parseEvent(t, payload)))
}

func TestHandleRecordsFailureAndReplay(t *testing.T) {
	processor, repo, client := newTestProcessor(t)
	ctx := context.Background()
	payload := checkoutCompleted(t, "u1", "sub_1")
	event := parseEvent(t, payload)

	client.err = errors.New("provider unavailable")
	processor.Handle(ctx, event, payload)

	failed, err := repo.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "evt_checkout", failed[0].ID)
	assert.Equal(t, 1, failed[0].Attempts)
	assert.Contains(t, failed[0].Error, "provider unavailable")

	require.Error(t, processor.Replay(ctx, failed[0]))
	failed, err = repo.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)

	client.err = nil
	require.NoError(t, processor.Replay(ctx, failed[0]))
	failed, err = repo.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)

	sub, err := repo.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
}

func TestHandleMissingUserIsRecorded(t *testing.T) {
	processor, repo, _ := newTestProcessor(t)
	ctx := context.Background()
	payload := checkoutCompleted(t, "ghost", "")

	processor.Handle(ctx, parseEvent(t, payload), payload)

	failed, err := repo.ListFailedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	ghost, err := repo.GetUser(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)
}

package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/simple-saas-template/backend/internal/models"
)

// MemoryRepository keeps records in process memory. It backs local runs
// without a table and the handler tests.
type MemoryRepository struct {
	mu     sync.Mutex
	users  map[string]models.User
	subs   map[string]models.Subscription
	usage  map[string][]models.Usage
	failed map[string]models.FailedEvent
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:  map[string]models.User{},
		subs:   map[string]models.Subscription{},
		usage:  map[string][]models.Usage{},
		failed: map[string]models.FailedEvent{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryRepository) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (m *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return &user, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) CreateUser(_ context.Context, create models.UserCreate) (*models.User, error) {
	if create.ID == "" {
		return nil, ErrMissingID
	}
	status := create.SubscriptionStatus
	if status == "" {
		status = models.SubscriptionStatusInactive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	user := models.User{
		ID:                 create.ID,
		Email:              create.Email,
		Name:               create.Name,
		SubscriptionStatus: status,
		CognitoID:          create.CognitoID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	m.users[user.ID] = user
	return &user, nil
}

func (m *MemoryRepository) UpdateUser(_ context.Context, id string, update models.UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if update.SubscriptionStatus != nil {
		user.SubscriptionStatus = *update.SubscriptionStatus
	}
	if update.SubscriptionID != nil {
		user.SubscriptionID = *update.SubscriptionID
	}
	user.UpdatedAt = m.now()
	m.users[id] = user
	return &user, nil
}

func (m *MemoryRepository) GetSubscription(_ context.Context, userID string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[userID]
	if !ok {
		return nil, nil
	}
	return &sub, nil
}

func (m *MemoryRepository) GetSubscriptionByID(_ context.Context, subscriptionID string) (*models.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs {
		if sub.ID == subscriptionID {
			return &sub, nil
		}
	}
	return nil, nil
}

func (m *MemoryRepository) PutSubscription(_ context.Context, create models.SubscriptionCreate) (*models.Subscription, error) {
	if create.ID == "" || create.UserID == "" {
		return nil, ErrMissingID
	}
	status := create.Status
	if status == "" {
		status = models.SubscriptionStateActive
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	sub := models.Subscription{
		ID:                   create.ID,
		UserID:               create.UserID,
		StripeSubscriptionID: create.ID,
		Status:               status,
		PlanID:               create.PlanID,
		CurrentPeriodStart:   create.CurrentPeriodStart,
		CurrentPeriodEnd:     create.CurrentPeriodEnd,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if sub.CurrentPeriodStart.IsZero() {
		sub.CurrentPeriodStart = now
	}
	if sub.CurrentPeriodEnd.IsZero() {
		sub.CurrentPeriodEnd = now
	}
	if prev, ok := m.subs[sub.UserID]; ok {
		sub.CreatedAt = prev.CreatedAt
	}
	m.subs[sub.UserID] = sub
	return &sub, nil
}

func (m *MemoryRepository) PutUsage(_ context.Context, usage models.Usage) (*models.Usage, error) {
	if usage.UserID == "" {
		return nil, ErrMissingID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = m.now()
	}
	if usage.ID == "" {
		usage.ID = NewUsageID(usage.CreatedAt)
	}
	m.usage[usage.UserID] = append(m.usage[usage.UserID], usage)
	return &usage, nil
}

func (m *MemoryRepository) ListUsage(_ context.Context, userID string, limit int) ([]models.Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := slices.Clone(m.usage[userID])
	// newest first by id, the same order the table returns its sort keys
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MemoryRepository) PutFailedEvent(_ context.Context, event models.FailedEvent) error {
	if event.ID == "" {
		return ErrMissingID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[event.ID] = event
	return nil
}

func (m *MemoryRepository) ListFailedEvents(_ context.Context, limit int) ([]models.FailedEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]models.FailedEvent, 0, len(m.failed))
	for _, event := range m.failed {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *MemoryRepository) DeleteFailedEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failed, id)
	return nil
}

func (m *MemoryRepository) Ping(context.Context) error {
	return nil
}

package repository

import (
	"context"
	"errors"

	"github.com/simple-saas-template/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrMissingID = errors.New("missing id")
)

// Repository is the only component that reads or writes the table. Lookups
// of a missing record return nil with no error.
type Repository interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user models.UserCreate) (*models.User, error)
	UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error)

	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	PutSubscription(ctx context.Context, sub models.SubscriptionCreate) (*models.Subscription, error)

	PutUsage(ctx context.Context, usage models.Usage) (*models.Usage, error)
	ListUsage(ctx context.Context, userID string, limit int) ([]models.Usage, error)

	PutFailedEvent(ctx context.Context, event models.FailedEvent) error
	ListFailedEvents(ctx context.Context, limit int) ([]models.FailedEvent, error)
	DeleteFailedEvent(ctx context.Context, id string) error

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error
}

var (
	_ Repository = (*DynamoDBRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)

package models

import (
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type User struct {
	ID                 string             `json:"id" dynamodbav:"id"`
	Email              string             `json:"email" dynamodbav:"email"`
	Name               string             `json:"name,omitempty" dynamodbav:"name,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus" dynamodbav:"subscriptionStatus"`
	SubscriptionID     string             `json:"subscriptionId,omitempty" dynamodbav:"subscriptionId,omitempty"`
	CognitoID          string             `json:"cognitoId,omitempty" dynamodbav:"cognitoId,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" dynamodbav:"updatedAt"`
}

// Active reports whether the user may use paid features.
func (u *User) Active() bool {
	return u != nil && u.SubscriptionStatus == SubscriptionStatusActive
}

type UserCreate struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	Name               string             `json:"name"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	CognitoID          string             `json:"cognitoId"`
}

// UserUpdate holds the mutable user fields. Nil fields are left untouched.
type UserUpdate struct {
	SubscriptionStatus *SubscriptionStatus
	SubscriptionID     *string
}

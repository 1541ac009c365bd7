package models

import "time"

// Usage is one recorded prompt/response exchange with the inference provider.
type Usage struct {
	ID         string    `json:"id" dynamodbav:"id"`
	UserID     string    `json:"userId" dynamodbav:"userId"`
	Prompt     string    `json:"prompt" dynamodbav:"prompt"`
	Response   string    `json:"response" dynamodbav:"response"`
	Model      string    `json:"model" dynamodbav:"model"`
	TokensUsed int       `json:"tokensUsed" dynamodbav:"tokensUsed"`
	CreatedAt  time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// FailedEvent is a verified webhook payload whose application failed.
type FailedEvent struct {
	ID            string    `json:"id" dynamodbav:"id"`
	Type          string    `json:"type" dynamodbav:"type"`
	Payload       string    `json:"payload" dynamodbav:"payload"`
	Error         string    `json:"error" dynamodbav:"error"`
	Attempts      int       `json:"attempts" dynamodbav:"attempts"`
	ReceivedAt    time.Time `json:"receivedAt" dynamodbav:"receivedAt"`
	LastAttemptAt time.Time `json:"lastAttemptAt" dynamodbav:"lastAttemptAt"`
}

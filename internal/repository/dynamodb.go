package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/simple-saas-template/backend/internal/models"
)

// DynamoDBAPI is the subset of *dynamodb.Client the repository uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type Keys struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	GSI1PK string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK string `dynamodbav:"GSI1SK,omitempty"`
	TYPE   string `dynamodbav:"TYPE"`
}

type dynamoUser struct {
	models.User
	Keys
}

type dynamoUsage struct {
	models.Usage
	Keys
}

type dynamoFailedEvent struct {
	models.FailedEvent
	Keys
}

func getKey(pk, sk string) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMap(map[string]string{
		"PK": pk,
		"SK": sk,
	})
}

func formatUser(u models.User) dynamoUser {
	return dynamoUser{
		User: u,
		Keys: Keys{
			PK:     userPK(u.ID),
			SK:     userSK(u.ID),
			GSI1PK: emailKey(u.Email),
			GSI1SK: userPK(u.ID),
			TYPE:   typeUser,
		},
	}
}

func formatUsage(u models.Usage) dynamoUsage {
	return dynamoUsage{
		Usage: u,
		Keys: Keys{
			PK:     userPK(u.UserID),
			SK:     usageSK(u.ID),
			TYPE:   typeUsage,
		},
	}
}

func formatFailedEvent(e models.FailedEvent) dynamoFailedEvent {
	return dynamoFailedEvent{
		FailedEvent: e,
		Keys: Keys{
			PK:   failedEventsPK,
			SK:   failedEventSK(e.ID),
			TYPE: typeFailedEvent,
		},
	}
}

type DynamoDBRepository struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

func NewDynamoDBRepository(client DynamoDBAPI, tableName string) *DynamoDBRepository {
	return &DynamoDBRepository{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *DynamoDBRepository) getItem(ctx context.Context, pk, sk string, out any) (bool, error) {
	key, err := getKey(pk, sk)
	if err != nil {
		return false, fmt.Errorf("failed to get key: %w", err)
	}
	output, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.tableName,
		Key:       key,
	})
	if err != nil {
		return false, err
	}
	if output.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return true, nil
}

func (r *DynamoDBRepository) putItem(ctx context.Context, in any) error {
	item, err := attributevalue.MarshalMap(in)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	return err
}

func (r *DynamoDBRepository) query(ctx context.Context, index string, cond expression.KeyConditionBuilder, limit int, forward bool) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	input := &dynamodb.QueryInput{
		TableName:                 &r.tableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(forward),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}
	output, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	return output.Items, nil
}

func (r *DynamoDBRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	found, err := r.getItem(ctx, userPK(id), userSK(id), &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

func (r *DynamoDBRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	items, err := r.query(ctx, gsi1, expression.Key("GSI1PK").Equal(expression.Value(emailKey(email))), 1, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	var user models.User
	if err := attributevalue.UnmarshalMap(items[0], &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &user, nil
}

func (r *DynamoDBRepository) CreateUser(ctx context.Context, create models.UserCreate) (*models.User, error) {
	if create.ID == "" {
		return nil, ErrMissingID
	}
	status := create.SubscriptionStatus
	if status == "" {
		status = models.SubscriptionStatusInactive
	}
	now := r.now()
	user := models.User{
		ID:                 create.ID,
		Email:              create.Email,
		Name:               create.Name,
		SubscriptionStatus: status,
		CognitoID:          create.CognitoID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.putItem(ctx, formatUser(user)); err != nil {
		return nil, fmt.Errorf("failed to put user: %w", err)
	}
	slog.Info("created user", "userID", user.ID)
	return &user, nil
}

func (r *DynamoDBRepository) UpdateUser(ctx context.Context, id string, update models.UserUpdate) (*models.User, error) {
	key, err := getKey(userPK(id), userSK(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	set := expression.Set(expression.Name("updatedAt"), expression.Value(r.now()))
	if update.SubscriptionStatus != nil {
		set = set.Set(expression.Name("subscriptionStatus"), expression.Value(*update.SubscriptionStatus))
	}
	if update.SubscriptionID != nil {
		set = set.Set(expression.Name("subscriptionId"), expression.Value(*update.SubscriptionID))
	}
	// the update must not materialize a partial user
	expr, err := expression.NewBuilder().
		WithUpdate(set).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.tableName,
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(output.Attributes, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	slog.Info("updated user", "userID", id, "status", user.SubscriptionStatus)
	return &user, nil
}

func (r *DynamoDBRepository) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	found, err := r.getItem(ctx, userPK(userID), subscriptionSK(userID), &sub)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &sub, nil
}

func (r *DynamoDBRepository) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	items, err := r.query(ctx, gsi1, expression.Key("GSI1PK").Equal(expression.Value(subscriptionKey(subscriptionID))), 1, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	var sub models.Subscription
	if err := attributevalue.UnmarshalMap(items[0], &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	return &sub, nil
}

// PutSubscription upserts the user's subscription record. The first write
// stamps createdAt; later writes keep it and replace everything else.
func (r *DynamoDBRepository) PutSubscription(ctx context.Context, create models.SubscriptionCreate) (*models.Subscription, error) {
	if create.ID == "" || create.UserID == "" {
		return nil, ErrMissingID
	}
	status := create.Status
	if status == "" {
		status = models.SubscriptionStateActive
	}
	now := r.now()
	periodStart, periodEnd := create.CurrentPeriodStart, create.CurrentPeriodEnd
	if periodStart.IsZero() {
		periodStart = now
	}
	if periodEnd.IsZero() {
		periodEnd = now
	}
	key, err := getKey(userPK(create.UserID), subscriptionSK(create.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	set := expression.Set(expression.Name("GSI1PK"), expression.Value(subscriptionKey(create.ID))).
		Set(expression.Name("GSI1SK"), expression.Value(userPK(create.UserID))).
		Set(expression.Name("TYPE"), expression.Value(typeSubscription)).
		Set(expression.Name("id"), expression.Value(create.ID)).
		Set(expression.Name("userId"), expression.Value(create.UserID)).
		Set(expression.Name("stripeSubscriptionId"), expression.Value(create.ID)).
		Set(expression.Name("status"), expression.Value(status)).
		Set(expression.Name("planId"), expression.Value(create.PlanID)).
		Set(expression.Name("currentPeriodStart"), expression.Value(periodStart)).
		Set(expression.Name("currentPeriodEnd"), expression.Value(periodEnd)).
		Set(expression.Name("updatedAt"), expression.Value(now)).
		Set(expression.Name("createdAt"), expression.Name("createdAt").IfNotExists(expression.Value(now)))
	expr, err := expression.NewBuilder().WithUpdate(set).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	output, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &r.tableName,
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to put subscription: %w", err)
	}

	var sub models.Subscription
	if err := attributevalue.UnmarshalMap(output.Attributes, &sub); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}
	slog.Info("stored subscription", "subscriptionID", sub.ID, "userID", sub.UserID)
	return &sub, nil
}

func (r *DynamoDBRepository) PutUsage(ctx context.Context, usage models.Usage) (*models.Usage, error) {
	if usage.UserID == "" {
		return nil, ErrMissingID
	}
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = r.now()
	}
	if usage.ID == "" {
		usage.ID = NewUsageID(usage.CreatedAt)
	}
	if err := r.putItem(ctx, formatUsage(usage)); err != nil {
		return nil, fmt.Errorf("failed to put usage: %w", err)
	}
	return &usage, nil
}

func (r *DynamoDBRepository) ListUsage(ctx context.Context, userID string, limit int) ([]models.Usage, error) {
	cond := expression.Key("PK").Equal(expression.Value(userPK(userID))).
		And(expression.KeyBeginsWith(expression.Key("SK"), usageSK("")))
	items, err := r.query(ctx, "", cond, limit, false)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	result := make([]models.Usage, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal usage: %w", err)
	}
	return result, nil
}

func (r *DynamoDBRepository) PutFailedEvent(ctx context.Context, event models.FailedEvent) error {
	if event.ID == "" {
		return ErrMissingID
	}
	if err := r.putItem(ctx, formatFailedEvent(event)); err != nil {
		return fmt.Errorf("failed to put webhook event: %w", err)
	}
	return nil
}

func (r *DynamoDBRepository) ListFailedEvents(ctx context.Context, limit int) ([]models.FailedEvent, error) {
	items, err := r.query(ctx, "", expression.Key("PK").Equal(expression.Value(failedEventsPK)), limit, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook events: %w", err)
	}
	result := make([]models.FailedEvent, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook events: %w", err)
	}
	return result, nil
}

func (r *DynamoDBRepository) DeleteFailedEvent(ctx context.Context, id string) error {
	key, err := getKey(failedEventsPK, failedEventSK(id))
	if err != nil {
		return fmt.Errorf("failed to get key: %w", err)
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &r.tableName,
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook event: %w", err)
	}
	return nil
}

// Ping fails unless the table exists and is ACTIVE.
func (r *DynamoDBRepository) Ping(ctx context.Context) error {
	output, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &r.tableName})
	if err != nil {
		return fmt.Errorf("failed to describe table: %w", err)
	}
	if output.Table == nil {
		return fmt.Errorf("table %s: %w", r.tableName, ErrNotFound)
	}
	if status := output.Table.TableStatus; status != types.TableStatusActive {
		return fmt.Errorf("table %s status %s", r.tableName, status)
	}
	return nil
}

// NewUsageID returns an id that sorts lexically by creation time. The
// nanosecond prefix is zero padded so the table's sort key order matches
// chronological order.
func NewUsageID(at time.Time) string {
	return fmt.Sprintf("%019d-%s", at.UnixNano(), uuid.NewString()[:8])
}

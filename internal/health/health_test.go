package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-saas-template/backend/internal/inference"
)

func ok(context.Context) error { return nil }

func TestRunAllHealthy(t *testing.T) {
	c := New("api")
	c.Register("dynamodb", ok, "storage")
	c.Register("bedrock_claude", ok, "ai")

	report := c.Run(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, "api", report.Service)
	assert.Empty(t, report.Component)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "dynamodb", report.Checks[0].Name)
	assert.Equal(t, "bedrock_claude", report.Checks[1].Name)
	assert.Equal(t, StatusHealthy, report.Checks[1].Status)
}

func TestRunReportsFailure(t *testing.T) {
	c := New("api")
	c.Register("dynamodb", ok, "storage")
	c.Register("s3_uploads", func(context.Context) error { return errors.New("access denied") }, "storage")

	report := c.Run(context.Background())
	assert.False(t, report.Healthy())
	assert.Equal(t, StatusUnhealthy, report.OverallStatus)
	assert.Equal(t, StatusHealthy, report.Checks[0].Status)
	assert.Equal(t, StatusUnhealthy, report.Checks[1].Status)
	assert.Equal(t, "access denied", report.Checks[1].Message)
}

func TestRunComponent(t *testing.T) {
	c := New("api")
	c.Register("dynamodb", ok, "storage")
	c.Register("bedrock_claude", func(context.Context) error { return errors.New("throttled") }, "ai")

	report, err := c.RunComponent(context.Background(), "storage")
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, "storage", report.Component)
	require.Len(t, report.Checks, 1)

	report, err = c.RunComponent(context.Background(), "ai")
	require.NoError(t, err)
	assert.False(t, report.Healthy())

	_, err = c.RunComponent(context.Background(), "kb")
	assert.ErrorIs(t, err, ErrUnknownComponent)
	assert.Equal(t, []string{"ai", "storage"}, c.Components())
}

func TestCheckTimeout(t *testing.T) {
	c := New("api").WithTimeout(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report := c.Run(context.Background())
	assert.False(t, report.Healthy())
	assert.Contains(t, report.Checks[0].Message, "deadline exceeded")
}

func TestCheckPanicIsUnhealthy(t *testing.T) {
	c := New("api")
	c.Register("broken", func(context.Context) error { panic("nil client") })

	report := c.Run(context.Background())
	assert.False(t, report.Healthy())
	assert.Contains(t, report.Checks[0].Message, "nil client")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeBucket struct {
	bucket string
	err    error
}

func (f *fakeBucket) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.bucket = aws.ToString(in.Bucket)
	return &s3.HeadBucketOutput{}, f.err
}

type fakeModel struct {
	req  inference.Request
	text string
	err  error
}

func (f *fakeModel) Generate(_ context.Context, req inference.Request) (*inference.Result, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &inference.Result{Text: f.text}, nil
}

func TestStoreCheck(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Store(fakePinger{})(ctx))
	assert.ErrorContains(t, Store(fakePinger{err: errors.New("table status CREATING")})(ctx), "CREATING")
	assert.ErrorIs(t, Store(nil)(ctx), ErrNotConfigured)
}

func TestBucketCheck(t *testing.T) {
	ctx := context.Background()
	client := &fakeBucket{}
	require.NoError(t, Bucket(client, "uploads")(ctx))
	assert.Equal(t, "uploads", client.bucket)

	client.err = errors.New("Forbidden")
	assert.ErrorContains(t, Bucket(client, "uploads")(ctx), "Forbidden")
	assert.ErrorIs(t, Bucket(client, "")(ctx), ErrNotConfigured)
}

func TestModelCheck(t *testing.T) {
	ctx := context.Background()
	model := &fakeModel{text: "OK"}
	require.NoError(t, Model(model, inference.ModelClaudeHaiku)(ctx))
	assert.Equal(t, 10, model.req.MaxTokens)
	assert.Equal(t, inference.ModelClaudeHaiku, model.req.Model)

	model.text = " "
	assert.ErrorIs(t, Model(model, inference.ModelClaudeHaiku)(ctx), inference.ErrNoOutput)

	model.err = errors.New("AccessDeniedException")
	assert.ErrorContains(t, Model(model, inference.ModelClaudeHaiku)(ctx), "AccessDeniedException")
	assert.ErrorIs(t, Model(nil, "")(ctx), ErrNotConfigured)
}

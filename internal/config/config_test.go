package config

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STAGE", "")
	t.Setenv("AI_MODEL_ID", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Stage)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.InDelta(t, DefaultTemperature, cfg.Temperature, 0.0001)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "/simple-saas-template/dev", cfg.ParameterPrefix())
}

func TestLoadIgnoresPlaceholderSecrets(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "placeholder-secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_real")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.StripeSecretKey)
	assert.Equal(t, "whsec_real", cfg.StripeWebhookSecret)
}

func TestLoadRejectsInvalidInferenceDefaults(t *testing.T) {
	t.Setenv("AI_MAX_TOKENS", "9000")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("AI_MAX_TOKENS", "")
	t.Setenv("AI_TEMPERATURE", "1.5")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	t.Setenv("AI_MODEL_ID", "gpt-4")
	_, err := Load()
	assert.ErrorContains(t, err, "AI_MODEL_ID")

	t.Setenv("AI_MODEL_ID", "anthropic.claude-3-sonnet-20240229-v1:0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", cfg.Model)
}

func TestLoadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

type fakeSSM struct {
	values map[string]string
	denied map[string]bool
	calls  int
	err    error
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.denied[aws.ToString(in.Name)] {
		return nil, errors.New("AccessDeniedException: " + aws.ToString(in.Name))
	}
	value, ok := f.values[aws.ToString(in.Name)]
	if !ok {
		return nil, &types.ParameterNotFound{Message: aws.String("missing")}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(value)}}, nil
}

func TestParametersCache(t *testing.T) {
	client := &fakeSSM{values: map[string]string{"/app/dev/stripe/secret-key": "sk_test_1"}}
	params := NewParameters(client, "/app/dev")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		value, err := params.Get(ctx, "stripe/secret-key", true)
		require.NoError(t, err)
		assert.Equal(t, "sk_test_1", value)
	}
	assert.Equal(t, 1, client.calls)
}

func TestParametersMissingAndPlaceholder(t *testing.T) {
	client := &fakeSSM{values: map[string]string{"/app/dev/stripe/webhook-secret": "placeholder"}}
	params := NewParameters(client, "/app/dev")

	value, err := params.Get(context.Background(), "stripe/secret-key", true)
	require.NoError(t, err)
	assert.Empty(t, value)

	value, err = params.Get(context.Background(), "stripe/webhook-secret", true)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestParametersTransportError(t *testing.T) {
	params := NewParameters(&fakeSSM{err: errors.New("throttled")}, "/app/dev")
	_, err := params.Get(context.Background(), "database/table-name", false)
	assert.ErrorContains(t, err, "throttled")
}

func TestResolveKeepsExplicitValues(t *testing.T) {
	client := &fakeSSM{values: map[string]string{
		"/app/dev/database/table-name": "from-ssm",
		"/app/dev/stripe/secret-key":   "sk_from_ssm",
	}}
	cfg := &Config{TableName: "from-env"}

	require.NoError(t, cfg.Resolve(context.Background(), NewParameters(client, "/app/dev")))
	assert.Equal(t, "from-env", cfg.TableName)
	assert.Equal(t, "sk_from_ssm", cfg.StripeSecretKey)
	assert.Empty(t, cfg.UploadsBucket)
}

func TestResolveContinuesPastFailedLookup(t *testing.T) {
	client := &fakeSSM{
		values: map[string]string{
			"/app/dev/stripe/secret-key":     "sk_from_ssm",
			"/app/dev/stripe/webhook-secret": "whsec_from_ssm",
		},
		denied: map[string]bool{
			"/app/dev/database/table-name":    true,
			"/app/dev/s3/uploads-bucket-name": true,
		},
	}
	cfg := &Config{}

	err := cfg.Resolve(context.Background(), NewParameters(client, "/app/dev"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "database/table-name")
	assert.ErrorContains(t, err, "s3/uploads-bucket-name")

	assert.Equal(t, "sk_from_ssm", cfg.StripeSecretKey)
	assert.Equal(t, "whsec_from_ssm", cfg.StripeWebhookSecret)
	assert.Empty(t, cfg.TableName)
	assert.Equal(t, 4, client.calls)
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/simple-saas-template/backend/internal/flag"
	"github.com/simple-saas-template/backend/internal/inference"
)

const (
	DefaultModel       = inference.ModelClaudeHaiku
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

type Config struct {
	Region      string
	Stage       string
	ProjectName string
	Port        string
	LogLevel    slog.Level

	TableName     string
	UploadsBucket string

	StripeSecretKey     string
	StripeWebhookSecret string

	// CognitoIssuer enables bearer token verification when set.
	CognitoIssuer   string
	CognitoClientID string

	Model       string
	MaxTokens   int
	Temperature float64

	// UseMemoryStore keeps records in process memory instead of DynamoDB.
	UseMemoryStore bool
	// DynamoDBEndpoint points the table client at DynamoDB Local.
	DynamoDBEndpoint string
}

// Load reads the configuration from the environment, after loading the
// dotenv file named by SAAS_ENV_FILE (or ./.env when running locally).
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Region:              envOr("AWS_REGION", "us-east-1"),
		Stage:               envOr("STAGE", "dev"),
		ProjectName:         envOr("PROJECT_NAME", "simple-saas-template"),
		Port:                envOr("PORT", "8080"),
		TableName:           os.Getenv("DATABASE_TABLE_NAME"),
		UploadsBucket:       os.Getenv("UPLOADS_BUCKET_NAME"),
		StripeSecretKey:     secretEnv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: secretEnv("STRIPE_WEBHOOK_SECRET"),
		CognitoIssuer:       os.Getenv("COGNITO_ISSUER"),
		CognitoClientID:     os.Getenv("COGNITO_CLIENT_ID"),
		Model:               envOr("AI_MODEL_ID", DefaultModel),
		MaxTokens:           DefaultMaxTokens,
		Temperature:         DefaultTemperature,
		UseMemoryStore:      flag.IsTrue("SAAS_MEMORY_STORE"),
		DynamoDBEndpoint:    os.Getenv("DYNAMODB_ENDPOINT"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if !slices.Contains(inference.Models, cfg.Model) {
		return nil, fmt.Errorf("invalid AI_MODEL_ID %q", cfg.Model)
	}
	if v := os.Getenv("AI_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > inference.MaxTokensLimit {
			return nil, fmt.Errorf("invalid AI_MAX_TOKENS %q", v)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("AI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid AI_TEMPERATURE %q", v)
		}
		cfg.Temperature = f
	}
	return cfg, nil
}

// ParameterPrefix is the SSM path under which this stage's secrets live.
func (c *Config) ParameterPrefix() string {
	return fmt.Sprintf("/%s/%s", c.ProjectName, c.Stage)
}

// DefaultTableName is the table name used when nothing else names one.
func (c *Config) DefaultTableName() string {
	return fmt.Sprintf("%s-%s-database", c.ProjectName, c.Stage)
}

func (c *Config) DefaultUploadsBucket() string {
	return fmt.Sprintf("%s-%s-uploads", c.ProjectName, c.Stage)
}

func loadEnvFile() error {
	path := flag.SAAS_ENV_FILE
	if path == "" {
		if flag.InLambda() {
			return nil
		}
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func envOr(name string, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// secretEnv ignores the placeholder values the infrastructure templates
// write before real secrets are provisioned.
func secretEnv(name string) string {
	v := os.Getenv(name)
	if IsPlaceholder(v) {
		return ""
	}
	return v
}

func IsPlaceholder(v string) bool {
	return strings.HasPrefix(v, "placeholder")
}

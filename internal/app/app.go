// Package app builds the process-wide clients and the HTTP handler from
// configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/simple-saas-template/backend/internal/auth"
	"github.com/simple-saas-template/backend/internal/billing"
	"github.com/simple-saas-template/backend/internal/config"
	"github.com/simple-saas-template/backend/internal/flag"
	"github.com/simple-saas-template/backend/internal/handlers"
	"github.com/simple-saas-template/backend/internal/health"
	"github.com/simple-saas-template/backend/internal/inference"
	"github.com/simple-saas-template/backend/internal/repository"
	"github.com/simple-saas-template/backend/internal/resource"
	"github.com/simple-saas-template/backend/internal/upload"
)

type App struct {
	Config    *config.Config
	Repo      repository.Repository
	Billing   billing.Client
	Processor *billing.Processor
	Server    *handlers.Server
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	SetupLogging(cfg)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	resources, err := resource.Load(flag.SST_KEY, flag.SST_KEY_FILE)
	if err != nil {
		return nil, fmt.Errorf("load linked resources: %w", err)
	}
	applyResources(cfg, resources)

	params := config.NewParameters(ssm.NewFromConfig(awsCfg), cfg.ParameterPrefix())
	if err := cfg.Resolve(ctx, params); err != nil {
		// Parameter Store is optional when everything comes from the
		// environment.
		slog.Warn("could not resolve parameters", "prefix", cfg.ParameterPrefix(), "err", err)
	}
	if cfg.TableName == "" {
		cfg.TableName = cfg.DefaultTableName()
	}
	if cfg.UploadsBucket == "" {
		cfg.UploadsBucket = cfg.DefaultUploadsBucket()
	}

	return build(cfg, awsCfg)
}

func build(cfg *config.Config, awsCfg aws.Config) (*App, error) {
	var repo repository.Repository
	if cfg.UseMemoryStore {
		slog.Info("using in-memory store")
		repo = repository.NewMemoryRepository()
	} else {
		repo = repository.NewDynamoDBRepository(newDynamoDBClient(cfg, awsCfg), cfg.TableName)
	}

	billingClient := billing.Unconfigured()
	if cfg.StripeSecretKey != "" {
		billingClient = billing.NewStripeClient(cfg.StripeSecretKey)
	} else {
		slog.Warn("stripe secret key not configured, billing disabled")
	}
	processor := billing.NewProcessor(repo, billingClient)

	var verifier auth.Verifier
	if cfg.CognitoIssuer != "" {
		cognito, err := auth.NewCognito(cfg.CognitoIssuer, cfg.CognitoClientID)
		if err != nil {
			return nil, err
		}
		verifier = cognito
	}

	s3Client := s3.NewFromConfig(awsCfg)
	model := inference.NewBedrock(bedrockruntime.NewFromConfig(awsCfg))

	checker := health.New(handlers.ServiceName)
	checker.Register(handlers.CheckStore, health.Store(repo), handlers.ComponentStorage)
	checker.Register(handlers.CheckBucket, health.Bucket(s3Client, cfg.UploadsBucket), handlers.ComponentStorage)
	checker.Register(handlers.CheckModel, health.Model(model, cfg.Model), handlers.ComponentAI)

	server := handlers.New(handlers.Options{
		Repo:          repo,
		Billing:       billingClient,
		Processor:     processor,
		Model:         model,
		Uploads:       upload.NewService(s3.NewPresignClient(s3Client), cfg.UploadsBucket),
		Verifier:      verifier,
		Health:        checker,
		WebhookSecret: cfg.StripeWebhookSecret,
		Defaults: inference.Request{
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		},
	})

	slog.Info("app ready",
		"stage", cfg.Stage,
		"table", cfg.TableName,
		"bucket", cfg.UploadsBucket,
		"billing", cfg.StripeSecretKey != "",
		"auth", verifier != nil,
	)
	return &App{
		Config:    cfg,
		Repo:      repo,
		Billing:   billingClient,
		Processor: processor,
		Server:    server,
	}, nil
}

// newDynamoDBClient targets DynamoDB Local with throwaway credentials when an
// endpoint override is configured.
func newDynamoDBClient(cfg *config.Config, awsCfg aws.Config) *dynamodb.Client {
	if cfg.DynamoDBEndpoint == "" {
		return dynamodb.NewFromConfig(awsCfg)
	}
	slog.Info("using dynamodb endpoint", "endpoint", cfg.DynamoDBEndpoint)
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		o.Credentials = credentials.NewStaticCredentialsProvider("local", "local", "")
	})
}

func (a *App) Handler() http.Handler {
	return a.Server.Handler()
}

// SetupLogging installs the default logger: JSON on Lambda where CloudWatch
// indexes fields, text everywhere else.
func SetupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if flag.InLambda() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler).With("stage", cfg.Stage))
}

// applyResources fills names SST links to the function. Explicit
// environment values win.
func applyResources(cfg *config.Config, res resource.Resources) {
	fill := func(target *string, path ...string) {
		if *target != "" {
			return
		}
		if v, err := res.String(path...); err == nil {
			*target = v
		}
	}
	fill(&cfg.TableName, "Database", "name")
	fill(&cfg.UploadsBucket, "Uploads", "name")
	fill(&cfg.StripeSecretKey, "StripeSecretKey", "value")
	fill(&cfg.StripeWebhookSecret, "StripeWebhookSecret", "value")
}

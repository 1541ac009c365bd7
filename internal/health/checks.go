package health

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/simple-saas-template/backend/internal/inference"
)

var ErrNotConfigured = errors.New("not configured")

type Pinger interface {
	Ping(ctx context.Context) error
}

// Store checks the record store, usually the repository.
func Store(p Pinger) Check {
	return func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("store %w", ErrNotConfigured)
		}
		return p.Ping(ctx)
	}
}

type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Bucket checks that the bucket exists and the caller may access it.
func Bucket(client BucketAPI, bucket string) Check {
	return func(ctx context.Context) error {
		if client == nil || bucket == "" {
			return fmt.Errorf("bucket %w", ErrNotConfigured)
		}
		if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return fmt.Errorf("head bucket %s: %w", bucket, err)
		}
		return nil
	}
}

// Model sends a tiny prompt and expects text back.
func Model(model inference.Model, modelID string) Check {
	return func(ctx context.Context) error {
		if model == nil {
			return fmt.Errorf("model %w", ErrNotConfigured)
		}
		result, err := model.Generate(ctx, inference.Request{
			Prompt:      "Say 'OK' if you can respond.",
			Model:       modelID,
			MaxTokens:   10,
			Temperature: 0.1,
		})
		if err != nil {
			return err
		}
		if strings.TrimSpace(result.Text) == "" {
			return inference.ErrNoOutput
		}
		return nil
	}
}

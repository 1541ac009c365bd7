package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Parameters reads stage parameters from SSM Parameter Store, caching each
// value for the life of the process.
type Parameters struct {
	client SSMAPI
	prefix string

	mu    sync.Mutex
	cache map[string]string
}

func NewParameters(client SSMAPI, prefix string) *Parameters {
	return &Parameters{
		client: client,
		prefix: prefix,
		cache:  map[string]string{},
	}
}

// Get returns the parameter value, or "" when it does not exist or holds a
// placeholder.
func (p *Parameters) Get(ctx context.Context, name string, decrypt bool) (string, error) {
	fullName := p.prefix + "/" + name

	p.mu.Lock()
	value, ok := p.cache[fullName]
	p.mu.Unlock()
	if ok {
		return value, nil
	}

	output, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(fullName),
		WithDecryption: aws.Bool(decrypt),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			slog.Debug("parameter not found", "name", fullName)
			return "", nil
		}
		return "", fmt.Errorf("get parameter %s: %w", fullName, err)
	}
	if output.Parameter != nil {
		value = aws.ToString(output.Parameter.Value)
	}
	if IsPlaceholder(value) {
		value = ""
	}

	p.mu.Lock()
	p.cache[fullName] = value
	p.mu.Unlock()
	return value, nil
}

// Resolve fills every empty secret and resource name from Parameter Store.
// A failed lookup does not stop the others; all failures are returned joined.
func (c *Config) Resolve(ctx context.Context, params *Parameters) error {
	lookups := []struct {
		target  *string
		name    string
		decrypt bool
	}{
		{&c.TableName, "database/table-name", false},
		{&c.UploadsBucket, "s3/uploads-bucket-name", false},
		{&c.StripeSecretKey, "stripe/secret-key", true},
		{&c.StripeWebhookSecret, "stripe/webhook-secret", true},
	}
	var errs []error
	for _, lookup := range lookups {
		if *lookup.target != "" {
			continue
		}
		value, err := params.Get(ctx, lookup.name, lookup.decrypt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*lookup.target = value
	}
	return errors.Join(errs...)
}

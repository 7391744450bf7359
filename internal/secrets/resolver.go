// Package secrets resolves the shared administrative credential from AWS
// Secrets Manager.
//
// A Resolver is meant to live for a single webhook delivery: values are
// memoized so the auth gate and the replication command share one lookup,
// and are dropped together with the Resolver. Secret values are never logged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// ErrEmptySecret is returned for secrets without a string value
var ErrEmptySecret = errors.New("secrets: secret has no string value")

// API is the subset of the Secrets Manager client used here
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver fetches secrets by name and memoizes them for its own lifetime
type Resolver struct {
	api    API
	mu     sync.Mutex
	values map[string]string
}

// NewResolver creates a resolver scoped to one invocation
func NewResolver(api API) *Resolver {
	return &Resolver{
		api:    api,
		values: make(map[string]string),
	}
}

// Get returns the secret string stored under name
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.values[name]; ok {
		return v, nil
	}

	out, err := r.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("secrets: get %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, name)
	}

	r.values[name] = *out.SecretString
	return *out.SecretString, nil
}

// Func adapts a fixed secret name into a lookup function
func (r *Resolver) Func(name string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		return r.Get(ctx, name)
	}
}

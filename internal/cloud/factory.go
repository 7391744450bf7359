// Package cloud builds the AWS control-plane clients used by one webhook
// delivery. Only the aws.Config is shared; clients are created per Session so
// nothing outlives the invocation that asked for it.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/globalaccelerator"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"

	appconfig "github.com/FairForge/sitefence/internal/config"
)

// Factory hands out per-invocation sessions
type Factory struct {
	cfg               aws.Config
	acceleratorRegion string
	secretsRegion     string
	endpointURL       string
}

// Load resolves AWS credentials and region settings once at startup
func Load(ctx context.Context, c appconfig.AWSConfig, secretsRegion string) (*Factory, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(c.AcceleratorRegion),
	}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloud: load config: %w", err)
	}
	return NewFactory(cfg, c.AcceleratorRegion, secretsRegion, c.EndpointURL), nil
}

// NewFactory wraps an already loaded aws.Config
func NewFactory(cfg aws.Config, acceleratorRegion, secretsRegion, endpointURL string) *Factory {
	return &Factory{
		cfg:               cfg,
		acceleratorRegion: acceleratorRegion,
		secretsRegion:     secretsRegion,
		endpointURL:       endpointURL,
	}
}

// Session returns a fresh set of clients for one invocation
func (f *Factory) Session() *Session {
	return &Session{
		factory: f,
		tags:    make(map[string]*elasticloadbalancingv2.Client),
	}
}

// Session owns the clients of a single invocation
type Session struct {
	factory *Factory

	mu          sync.Mutex
	accelerator *globalaccelerator.Client
	secrets     *secretsmanager.Client
	tags        map[string]*elasticloadbalancingv2.Client
}

// Accelerator returns the Global Accelerator client
func (s *Session) Accelerator() *globalaccelerator.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accelerator == nil {
		s.accelerator = globalaccelerator.NewFromConfig(s.factory.cfg, func(o *globalaccelerator.Options) {
			o.Region = s.factory.acceleratorRegion
			if s.factory.endpointURL != "" {
				o.BaseEndpoint = aws.String(s.factory.endpointURL)
			}
		})
	}
	return s.accelerator
}

// Secrets returns the Secrets Manager client for the secrets region
func (s *Session) Secrets() *secretsmanager.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secrets == nil {
		s.secrets = secretsmanager.NewFromConfig(s.factory.cfg, func(o *secretsmanager.Options) {
			o.Region = s.factory.secretsRegion
			if s.factory.endpointURL != "" {
				o.BaseEndpoint = aws.String(s.factory.endpointURL)
			}
		})
	}
	return s.secrets
}

// Tags returns an ELBv2 client for region; load balancers are tagged in
// their own region, not the accelerator's.
func (s *Session) Tags(region string) *elasticloadbalancingv2.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.tags[region]; ok {
		return c
	}
	c := elasticloadbalancingv2.NewFromConfig(s.factory.cfg, func(o *elasticloadbalancingv2.Options) {
		o.Region = region
		if s.factory.endpointURL != "" {
			o.BaseEndpoint = aws.String(s.factory.endpointURL)
		}
	})
	s.tags[region] = c
	return c
}

// ErrorCode extracts the AWS API error code, or "" for non-API errors
func ErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	AWS         AWSConfig         `yaml:"aws"`
	Secrets     SecretsConfig     `yaml:"secrets"`
	Auth        AuthConfig        `yaml:"auth"`
	Replication ReplicationConfig `yaml:"replication"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	WebhookPath  string        `yaml:"webhook_path"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	RateLimit    float64       `yaml:"rate_limit"`
	RateBurst    int           `yaml:"rate_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AWSConfig struct {
	// Global Accelerator's control plane only lives in us-west-2.
	AcceleratorRegion string `yaml:"accelerator_region"`
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	EndpointURL       string `yaml:"endpoint_url"` // localstack and friends
}

type SecretsConfig struct {
	Region                string `yaml:"region"`
	AdminSecretName       string `yaml:"admin_secret_name"`
	ReplicationSecretName string `yaml:"replication_secret_name"`
}

type AuthConfig struct {
	AdminUser string `yaml:"admin_user"`
}

type ReplicationConfig struct {
	User    string        `yaml:"user"`
	Timeout time.Duration `yaml:"timeout"`
	// Sites maps a site name to its Infinispan REST endpoint for the operator routes.
	Sites map[string]string `yaml:"sites"`
}

// Default returns a configuration matching the reference deployment
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in default values
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.WebhookPath == "" {
		c.Server.WebhookPath = "/stonith"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 20
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 40
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.AWS.AcceleratorRegion == "" {
		c.AWS.AcceleratorRegion = "us-west-2"
	}
	if c.Secrets.Region == "" {
		c.Secrets.Region = "eu-central-1"
	}
	if c.Secrets.AdminSecretName == "" {
		c.Secrets.AdminSecretName = "keycloak-master-password"
	}
	if c.Secrets.ReplicationSecretName == "" {
		c.Secrets.ReplicationSecretName = c.Secrets.AdminSecretName
	}
	if c.Auth.AdminUser == "" {
		c.Auth.AdminUser = "keycloak"
	}
	if c.Replication.User == "" {
		c.Replication.User = "developer"
	}
	if c.Replication.Timeout == 0 {
		c.Replication.Timeout = 30 * time.Second
	}
	if c.Replication.Sites == nil {
		c.Replication.Sites = make(map[string]string)
	}
}

// Validate checks configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port: %d", c.Server.Port)
	}
	if c.Server.WebhookPath == "" || c.Server.WebhookPath[0] != '/' {
		return fmt.Errorf("config: webhook path must start with '/': %q", c.Server.WebhookPath)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("config: rate limit must not be negative")
	}
	if (c.AWS.AccessKeyID == "") != (c.AWS.SecretAccessKey == "") {
		return errors.New("config: access_key_id and secret_access_key must be set together")
	}
	if c.Auth.AdminUser == "" {
		return errors.New("config: admin user is required")
	}
	if c.Secrets.AdminSecretName == "" {
		return errors.New("config: admin secret name is required")
	}
	for site, endpoint := range c.Replication.Sites {
		if site == "" || endpoint == "" {
			return fmt.Errorf("config: replication site %q has no endpoint", site)
		}
	}
	return nil
}

// Load reads a YAML file (optional), applies environment overrides and
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

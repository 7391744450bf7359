package config

import (
	"fmt"
	"time"

	"github.com/vrischmann/envconfig"
)

// envOverrides is kept flat so every key is spelled out exactly once.
type envOverrides struct {
	Port         int           `envconfig:"SITEFENCE_PORT"`
	WebhookPath  string        `envconfig:"SITEFENCE_WEBHOOK_PATH"`
	WriteTimeout time.Duration `envconfig:"SITEFENCE_WRITE_TIMEOUT"`
	LogLevel     string        `envconfig:"SITEFENCE_LOG_LEVEL"`
	LogFormat    string        `envconfig:"SITEFENCE_LOG_FORMAT"`

	AcceleratorRegion string `envconfig:"SITEFENCE_ACCELERATOR_REGION"`
	AWSEndpointURL    string `envconfig:"SITEFENCE_AWS_ENDPOINT_URL"`

	SecretsRegion         string `envconfig:"SITEFENCE_SECRETS_REGION"`
	AdminSecretName       string `envconfig:"SITEFENCE_ADMIN_SECRET_NAME"`
	ReplicationSecretName string `envconfig:"SITEFENCE_REPLICATION_SECRET_NAME"`
	AdminUser             string `envconfig:"SITEFENCE_ADMIN_USER"`

	ReplicationUser    string        `envconfig:"SITEFENCE_REPLICATION_USER"`
	ReplicationTimeout time.Duration `envconfig:"SITEFENCE_REPLICATION_TIMEOUT"`
}

// LoadFromEnv overlays SITEFENCE_* environment variables onto cfg
func LoadFromEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.InitWithOptions(&env, envconfig.Options{AllOptional: true}); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}

	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	setString(&cfg.Server.WebhookPath, env.WebhookPath)
	if env.WriteTimeout != 0 {
		cfg.Server.WriteTimeout = env.WriteTimeout
	}
	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Log.Format, env.LogFormat)
	setString(&cfg.AWS.AcceleratorRegion, env.AcceleratorRegion)
	setString(&cfg.AWS.EndpointURL, env.AWSEndpointURL)
	setString(&cfg.Secrets.Region, env.SecretsRegion)
	setString(&cfg.Secrets.AdminSecretName, env.AdminSecretName)
	setString(&cfg.Secrets.ReplicationSecretName, env.ReplicationSecretName)
	setString(&cfg.Auth.AdminUser, env.AdminUser)
	setString(&cfg.Replication.User, env.ReplicationUser)
	if env.ReplicationTimeout != 0 {
		cfg.Replication.Timeout = env.ReplicationTimeout
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

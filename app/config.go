package app

import (
	"fmt"
	"time"

	"github.com/kbukum/service-template/config"
	"github.com/kbukum/service-template/health"
	"github.com/kbukum/service-template/postgres"
	"github.com/kbukum/service-template/rabbitmq"
	"github.com/kbukum/service-template/server"
)

// ServiceName is the default service name and the config lookup key.
const ServiceName = "service-template"

// Config is the service configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	RabbitMQ rabbitmq.Config `yaml:"rabbitmq" mapstructure:"rabbitmq"`
	Postgres postgres.Config `yaml:"postgres" mapstructure:"postgres"`
	Server   server.Config   `yaml:"server" mapstructure:"server"`
	Health   HealthConfig    `yaml:"health" mapstructure:"health"`

	// ShutdownTimeout bounds graceful shutdown of all components.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultShutdownTimeout is used when shutdown_timeout is unset.
const DefaultShutdownTimeout = 15 * time.Second

// HealthConfig configures the /health aggregator.
type HealthConfig struct {
	// ProbeTimeout bounds each dependency probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// ApplyDefaults fills every section with its defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.RabbitMQ.ApplyDefaults()
	c.Postgres.ApplyDefaults()
	c.Server.ApplyDefaults()
	if c.Health.ProbeTimeout <= 0 {
		c.Health.ProbeTimeout = health.DefaultTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.RabbitMQ.Validate(); err != nil {
		return fmt.Errorf("config.rabbitmq: %w", err)
	}
	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("config.postgres: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config.server: %w", err)
	}
	return nil
}

// LoadConfig reads config.yml, .env and the environment into a Config.
// Besides the automatic UPPER_SNAKE bindings (RABBITMQ_URL -> rabbitmq.url),
// PORT and DATABASE_URL are honoured.
func LoadConfig(opts ...config.LoaderOption) (*Config, error) {
	opts = append([]config.LoaderOption{
		config.WithEnvAlias("PORT", "server.port"),
		config.WithEnvAlias("DATABASE_URL", "postgres.dsn"),
	}, opts...)

	var cfg Config
	if err := config.LoadConfig(ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

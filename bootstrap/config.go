package bootstrap

import (
	"github.com/kbukum/service-template/config"
)

// Config is the interface constraint for application configuration types.
// Any struct that embeds config.ServiceConfig satisfies GetServiceConfig
// through the promoted method.
//
// Example:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    RabbitMQ rabbitmq.Config `yaml:"rabbitmq" mapstructure:"rabbitmq"`
//	}
//
//	app, err := bootstrap.NewApp(&cfg)
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}

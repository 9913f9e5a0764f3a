// Package config loads service configuration with Viper.
//
// Values come from a config.yml found in the standard locations (or given
// explicitly), then an optional .env file, then the process environment.
// Every key of the target struct is bound to the variable named after it,
// so RABBITMQ_URL sets rabbitmq.url and SERVER_PORT sets server.port.
// Empty variables are treated as unset.
//
// # Usage
//
//	var cfg app.Config
//	err := config.LoadConfig("service-template", &cfg,
//	    config.WithEnvAlias("PORT", "server.port"))
package config

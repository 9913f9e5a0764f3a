// Package validation validates configuration and input, either with
// struct tags through go-playground/validator or programmatically with
// error collection. Both report failures as an errors.AppError listing
// every offending field.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    URL  string `mapstructure:"url" validate:"required,amqp_url"`
//	    Port int    `mapstructure:"port" validate:"min=1,max=65535"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("name", cfg.Name).Range("port", cfg.Port, 1, 65535)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation

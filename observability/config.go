package observability

import (
	"fmt"
	"time"
)

// Exporter names accepted by TracerConfig and MeterConfig.
const (
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
	ExporterNone       = "none"
)

// Config groups tracing and metrics settings under one config section.
type Config struct {
	Tracing TracerConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MeterConfig  `yaml:"metrics" mapstructure:"metrics"`
}

// ApplyDefaults fills both sections with their defaults.
func (c *Config) ApplyDefaults() {
	c.Tracing.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate validates both sections.
func (c *Config) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}

// TracerConfig configures the OpenTelemetry tracer.
type TracerConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `yaml:"-" mapstructure:"-"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"-" mapstructure:"-"`
	// Environment is the deployment environment (development, staging, production).
	Environment string `yaml:"-" mapstructure:"-"`
	// Exporter selects the span exporter: otlp, stdout or none.
	Exporter string `yaml:"exporter" mapstructure:"exporter"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// SampleRate is the sampling rate (0.0 to 1.0).
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// DefaultTracerConfig returns sensible defaults for development.
func DefaultTracerConfig(serviceName string) TracerConfig {
	return TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Exporter:       ExporterNone,
		Endpoint:       "localhost:4318",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// ApplyDefaults sets defaults for unset tracer fields.
func (c *TracerConfig) ApplyDefaults() {
	if c.Exporter == "" {
		c.Exporter = ExporterNone
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// Validate validates tracer configuration.
func (c *TracerConfig) Validate() error {
	switch c.Exporter {
	case ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("observability.tracing.exporter must be one of otlp, stdout, none (got: %s)", c.Exporter)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.tracing.sample_rate must be between 0 and 1 (got: %v)", c.SampleRate)
	}
	return nil
}

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string `yaml:"-" mapstructure:"-"`
	// ServiceVersion is the version of the service.
	ServiceVersion string `yaml:"-" mapstructure:"-"`
	// Environment is the deployment environment (development, staging, production).
	Environment string `yaml:"-" mapstructure:"-"`
	// Exporter selects the metric reader: otlp, prometheus or none.
	Exporter string `yaml:"exporter" mapstructure:"exporter"`
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure allows insecure connections (for development).
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval for push exporters.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Exporter:       ExporterPrometheus,
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// ApplyDefaults sets defaults for unset meter fields.
func (c *MeterConfig) ApplyDefaults() {
	if c.Exporter == "" {
		c.Exporter = ExporterPrometheus
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Validate validates meter configuration.
func (c *MeterConfig) Validate() error {
	switch c.Exporter {
	case ExporterOTLP, ExporterPrometheus, ExporterNone:
	default:
		return fmt.Errorf("observability.metrics.exporter must be one of otlp, prometheus, none (got: %s)", c.Exporter)
	}
	return nil
}

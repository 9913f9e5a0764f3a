package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/service-template/logger"
)

// MeterProvider is the SDK meter provider plus, for the prometheus
// exporter, the registry it writes to.
type MeterProvider struct {
	*sdkmetric.MeterProvider
	registry *prometheus.Registry
}

// Handler returns the scrape handler for the prometheus exporter, or nil
// when metrics are pushed or disabled.
func (p *MeterProvider) Handler() http.Handler {
	if p == nil || p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// InitMeter initializes the OpenTelemetry meter provider and installs it as
// the global provider. The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*MeterProvider, error) {
	res, err := newResource(ctx, config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := &MeterProvider{}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	switch config.Exporter {
	case ExporterOTLP:
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating metric exporter: %w", err)
		}
		var readerOpts []sdkmetric.PeriodicReaderOption
		if config.Interval > 0 {
			readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)))
	case ExporterPrometheus:
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		provider.registry = registry
		opts = append(opts, sdkmetric.WithReader(exporter))
	case ExporterNone, "":
	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", config.Exporter)
	}

	provider.MeterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider.MeterProvider)

	logger.Info("Meter initialized", logger.Fields(
		"service", config.ServiceName,
		"exporter", config.Exporter,
		"interval", config.Interval.String(),
	))

	return provider, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

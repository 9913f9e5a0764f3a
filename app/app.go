package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kbukum/service-template/bootstrap"
	"github.com/kbukum/service-template/health"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/observability"
	"github.com/kbukum/service-template/postgres"
	"github.com/kbukum/service-template/rabbitmq"
	"github.com/kbukum/service-template/server"
	"github.com/kbukum/service-template/server/middleware"
)

// Service is the assembled application: the data store, the broker
// connection and the HTTP server, registered in that start order.
type Service struct {
	*bootstrap.App[*Config]

	Store  *postgres.Store
	Broker *rabbitmq.Manager
	Server *server.Server
	Health *health.Aggregator

	telemetry []func(context.Context) error
}

// Option configures New.
type Option func(*options)

type options struct {
	dialer    rabbitmq.Dialer
	dialector postgres.Dialector
	probes    map[string]health.Probe
	bootstrap []bootstrap.Option
}

// WithBrokerDialer replaces the AMQP dialer.
func WithBrokerDialer(d rabbitmq.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithStoreDialector replaces the gorm dialector.
func WithStoreDialector(d postgres.Dialector) Option {
	return func(o *options) { o.dialector = d }
}

// WithProbe overrides the health probe registered under name
// ("postgres" or "rabbit-mq").
func WithProbe(name string, p health.Probe) Option {
	return func(o *options) {
		if o.probes == nil {
			o.probes = make(map[string]health.Probe)
		}
		o.probes[name] = p
	}
}

// WithBootstrapOptions passes options through to bootstrap.NewApp.
func WithBootstrapOptions(opts ...bootstrap.Option) Option {
	return func(o *options) { o.bootstrap = append(o.bootstrap, opts...) }
}

// New builds the service from cfg. Telemetry providers are installed
// globally here so every component records into them from the first span.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg.ApplyDefaults()
	bootOpts := append([]bootstrap.Option{bootstrap.WithGracefulTimeout(cfg.ShutdownTimeout)}, o.bootstrap...)
	a, err := bootstrap.NewApp(cfg, bootOpts...)
	if err != nil {
		return nil, err
	}
	svc := &Service{App: a}

	tp, err := observability.InitTracer(ctx, cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	svc.telemetry = append(svc.telemetry, tp.Shutdown)

	mp, err := observability.InitMeter(ctx, &cfg.Observability.Metrics)
	if err != nil {
		_ = svc.shutdownTelemetry(ctx)
		return nil, fmt.Errorf("init meter: %w", err)
	}
	svc.telemetry = append(svc.telemetry, mp.Shutdown)

	metrics, err := observability.NewMetrics(mp.Meter(cfg.Name))
	if err != nil {
		_ = svc.shutdownTelemetry(ctx)
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	storeOpts := []postgres.Option{
		postgres.WithLogger(a.Logger),
		postgres.WithMetrics(metrics),
	}
	if o.dialector != nil {
		storeOpts = append(storeOpts, postgres.WithDialector(o.dialector))
	}
	svc.Store = postgres.NewStore(cfg.Postgres, storeOpts...)

	brokerOpts := []rabbitmq.Option{
		rabbitmq.WithLogger(a.Logger),
		rabbitmq.WithMetrics(metrics),
	}
	if o.dialer != nil {
		brokerOpts = append(brokerOpts, rabbitmq.WithDialer(o.dialer))
	}
	svc.Broker = rabbitmq.NewManager(cfg.RabbitMQ, brokerOpts...)

	svc.Health = health.NewAggregator(a.Logger,
		health.WithTimeout(cfg.Health.ProbeTimeout),
		health.WithMetrics(metrics),
	)
	probes := []struct {
		name  string
		probe health.Probe
	}{
		{"postgres", svc.Store.IsUp},
		{"rabbit-mq", health.BoolProbe(svc.Broker.IsUp)},
	}
	for _, p := range probes {
		probe := p.probe
		if override, ok := o.probes[p.name]; ok {
			probe = override
		}
		if err := svc.Health.Register(p.name, probe); err != nil {
			_ = svc.shutdownTelemetry(ctx)
			return nil, err
		}
	}

	svc.Server = server.New(cfg.Server, a.Logger)
	svc.Server.GinEngine().Use(middleware.Metrics(metrics))
	svc.Server.RegisterDefaultEndpoints(server.Endpoints{
		ServiceName: cfg.Name,
		Health:      svc.Health,
		Readiness:   a.Components.HealthAll,
		Metrics:     mp.Handler(),
	})

	if err := errors.Join(
		a.RegisterComponent(svc.Store),
		a.RegisterComponent(svc.Broker),
		a.RegisterComponent(server.NewComponent(svc.Server)),
	); err != nil {
		_ = svc.shutdownTelemetry(ctx)
		return nil, err
	}
	a.OnReady(svc.logDependencies)

	return svc, nil
}

// logDependencies logs the /health report the service starts serving with.
// Unavailable dependencies are reported, not fatal: /health exposes them.
func (s *Service) logDependencies(ctx context.Context) error {
	report := s.Health.CheckHealth(ctx)
	fields := logger.Fields("health", report)
	if !report.Healthy() {
		s.Logger.Warn("Starting with unavailable dependencies", fields)
		return nil
	}
	s.Logger.Info("Dependencies available", fields)
	return nil
}

// Run starts the service, blocks until a signal or ctx is done, then shuts
// everything down. Telemetry is flushed last so shutdown spans are exported.
func (s *Service) Run(ctx context.Context) error {
	err := s.App.Run(ctx)
	return errors.Join(err, s.shutdownTelemetry(context.Background()))
}

// Shutdown stops the components and flushes telemetry. It pairs with Start.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.App.Shutdown(ctx)
	return errors.Join(err, s.shutdownTelemetry(ctx))
}

func (s *Service) shutdownTelemetry(ctx context.Context) error {
	var errs []error
	for i := len(s.telemetry) - 1; i >= 0; i-- {
		if err := s.telemetry[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.telemetry = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/kbukum/service-template/errors"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/observability"
)

// TracerName is the tracer probe spans are opened on.
const TracerName = "health-router"

// DefaultTimeout bounds a single probe.
const DefaultTimeout = 5 * time.Second

// Probe reports whether a dependency is up. An error means the probe
// itself could not run and counts as down.
type Probe func(ctx context.Context) (bool, error)

// BoolProbe adapts a probe that cannot fail, such as rabbitmq.Manager.IsUp.
func BoolProbe(f func(ctx context.Context) bool) Probe {
	return func(ctx context.Context) (bool, error) {
		return f(ctx), nil
	}
}

type namedProbe struct {
	name  string
	probe Probe
}

// Aggregator runs registered probes and combines them into a Report.
type Aggregator struct {
	log     *logger.Logger
	metrics *observability.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	probes []namedProbe
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds each probe. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.timeout = d }
}

// WithMetrics records every probe outcome on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an Aggregator with no probes.
func NewAggregator(log *logger.Logger, opts ...Option) *Aggregator {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	a := &Aggregator{
		log:     log.WithComponent("health"),
		metrics: observability.NopMetrics(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds a probe. Reports list dependencies in registration order.
func (a *Aggregator) Register(name string, probe Probe) error {
	if name == "" || probe == nil {
		return apperrors.InvalidInput("name", "probe name and function are required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, p := range a.probes {
		if p.name == name {
			return fmt.Errorf("probe %s already registered", name)
		}
	}
	a.probes = append(a.probes, namedProbe{name: name, probe: probe})
	return nil
}

// CheckHealth runs every probe concurrently, each in its own span, and
// returns once all of them have finished. A failing probe only marks its
// own dependency as down.
func (a *Aggregator) CheckHealth(ctx context.Context) Report {
	a.mu.RLock()
	probes := append([]namedProbe(nil), a.probes...)
	a.mu.RUnlock()

	entries := make([]Entry, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			entries[i] = Entry{Name: p.name, Up: a.run(ctx, p)}
			return nil
		})
	}
	_ = g.Wait()

	report := NewReport(entries...)
	a.log.WithContext(ctx).Debug("Health checked", logger.Fields("healthy", report.Healthy()))
	return report
}

func (a *Aggregator) run(ctx context.Context, p namedProbe) bool {
	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: TracerName, Span: p.name + "-health-checker"}, observability.Here())
	defer scope.End()

	start := time.Now()
	up, err := a.call(ctx, p)
	if err != nil {
		a.log.WithContext(ctx).Critical("Failed to query "+p.name, logger.Fields(
			observability.AttrDependency, p.name,
			logger.FieldError, err,
		))
		scope.RecordError(err, "Failed to query "+p.name+".")
		up = false
	} else {
		scope.OK()
	}

	scope.SetAttributes(
		attribute.String(observability.AttrDependency, p.name),
		attribute.Bool("health.up", up),
	)
	a.metrics.RecordProbe(ctx, p.name, up, time.Since(start))
	return up
}

type probeResult struct {
	up  bool
	err error
}

// call runs the probe under the configured timeout. A probe that ignores
// its context is abandoned when the timeout fires.
func (a *Aggregator) call(ctx context.Context, p namedProbe) (bool, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	done := make(chan probeResult, 1)
	go func() {
		up, err := safeProbe(ctx, p)
		done <- probeResult{up: up, err: err}
	}()

	select {
	case r := <-done:
		return r.up, r.err
	case <-ctx.Done():
		return false, apperrors.Timeout(p.name + " probe").WithCause(ctx.Err())
	}
}

func safeProbe(ctx context.Context, p namedProbe) (up bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.HealthCheck(p.name, fmt.Errorf("probe panicked: %v", r))
		}
	}()
	return p.probe(ctx)
}

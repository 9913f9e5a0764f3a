package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kbukum/service-template/bootstrap"
	apperrors "github.com/kbukum/service-template/errors"
	"github.com/kbukum/service-template/health"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/rabbitmq"
)

type stubChannel struct {
	mu        sync.Mutex
	closed    bool
	listeners []chan *amqp.Error
}

func (c *stubChannel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, ch)
	return ch
}

func (c *stubChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *stubChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, l := range c.listeners {
		close(l)
	}
	return nil
}

type stubConnection struct {
	stubChannel
	ch *stubChannel
}

func (c *stubConnection) Channel() (rabbitmq.Channel, error) {
	c.ch = &stubChannel{}
	return c.ch, nil
}

func stubDialer(err error) rabbitmq.Dialer {
	return func(context.Context, string) (rabbitmq.Connection, error) {
		if err != nil {
			return nil, err
		}
		return &stubConnection{}, nil
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *Config {
	cfg := &Config{}
	cfg.Environment = "test"
	cfg.Observability.Tracing.Exporter = "none"
	cfg.Observability.Metrics.Exporter = "prometheus"
	cfg.Postgres.DSN = "file::memory:"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	return cfg
}

func newTestService(t *testing.T, dialErr error, opts ...Option) *Service {
	t.Helper()
	cfg := testConfig(t)
	opts = append([]Option{
		WithBrokerDialer(stubDialer(dialErr)),
		WithStoreDialector(sqlite.Open),
		WithBootstrapOptions(bootstrap.WithLogger(logger.Nop()), bootstrap.WithSummaryOutput(io.Discard)),
	}, opts...)
	svc, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func get(t *testing.T, svc *Service, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://%s%s", svc.Server.Addr(), path))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func TestServiceHealth(t *testing.T) {
	svc := newTestService(t, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	code, body := get(t, svc, "/health")
	if code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
	if body != `{"isPostgresUp":true,"isRabbitMqUp":true}` {
		t.Errorf("unexpected body %s", body)
	}

	if !svc.Broker.Disconnect(context.Background()) {
		t.Fatal("expected Disconnect to succeed")
	}

	code, body = get(t, svc, "/health")
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500 after disconnect, got %d", code)
	}
	if body != `{"isPostgresUp":true,"isRabbitMqUp":false}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestServiceLogsDependenciesWhenReady(t *testing.T) {
	tests := []struct {
		name      string
		probe     health.Probe
		wantLevel string
		wantMsg   string
	}{
		{
			name:      "all up",
			probe:     func(context.Context) (bool, error) { return true, nil },
			wantLevel: `"level":"info"`,
			wantMsg:   "Dependencies available",
		},
		{
			name:      "postgres down",
			probe:     func(context.Context) (bool, error) { return false, nil },
			wantLevel: `"level":"warn"`,
			wantMsg:   "Starting with unavailable dependencies",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&logger.Config{Level: "info", Format: logger.FormatJSON}, ServiceName, &buf)
			svc := newTestService(t, nil,
				WithProbe("postgres", tc.probe),
				WithBootstrapOptions(bootstrap.WithLogger(log)),
			)
			if err := svc.Start(context.Background()); err != nil {
				t.Fatalf("Start: %v", err)
			}
			t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

			var line string
			for _, l := range strings.Split(buf.String(), "\n") {
				if strings.Contains(l, tc.wantMsg) {
					line = l
					break
				}
			}
			if line == "" {
				t.Fatalf("expected %q in log output:\n%s", tc.wantMsg, buf.String())
			}
			if !strings.Contains(line, tc.wantLevel) {
				t.Errorf("expected %s in %s", tc.wantLevel, line)
			}
			if !strings.Contains(line, `"isRabbitMqUp":true`) {
				t.Errorf("expected the report in %s", line)
			}
		})
	}
}

func TestServiceHealthProbeFailure(t *testing.T) {
	svc := newTestService(t, nil, WithProbe("postgres", func(context.Context) (bool, error) {
		return false, errors.New("connection refused")
	}))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	code, body := get(t, svc, "/health")
	if code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", code)
	}
	if body != `{"isPostgresUp":false,"isRabbitMqUp":true}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestServiceAuxiliaryEndpoints(t *testing.T) {
	svc := newTestService(t, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	tests := []struct {
		path     string
		wantCode int
		contains string
	}{
		{"/alive", http.StatusOK, `"alive"`},
		{"/ready", http.StatusOK, `"ready"`},
		{"/info", http.StatusOK, `"service-template"`},
		{"/metrics", http.StatusOK, "go_goroutines"},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			code, body := get(t, svc, tc.path)
			if code != tc.wantCode {
				t.Errorf("expected %d, got %d", tc.wantCode, code)
			}
			if !strings.Contains(body, tc.contains) {
				t.Errorf("expected body to contain %s, got %s", tc.contains, body)
			}
		})
	}
}

func TestServiceStartFailsWithoutBroker(t *testing.T) {
	svc := newTestService(t, errors.New("dial tcp 127.0.0.1:5672: connect: connection refused"))
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })

	err := svc.Start(context.Background())
	if err == nil {
		t.Fatal("expected start-up to fail")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeBrokerConnection) {
		t.Errorf("expected broker connection error, got %v", err)
	}
	if up, _ := svc.Store.IsUp(context.Background()); up {
		t.Error("expected the store to be closed after a failed start")
	}
	if svc.Server.Running() {
		t.Error("expected the server not to be started")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.RabbitMQ.URL = "http://not-amqp"
	_, err := New(context.Background(), cfg,
		WithBootstrapOptions(bootstrap.WithLogger(logger.Nop())))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

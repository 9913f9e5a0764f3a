package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	apperrors "github.com/kbukum/service-template/errors"
	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/observability"
	"github.com/kbukum/service-template/resilience"
)

// TracerName is the tracer every Manager span is opened on.
const TracerName = "rabbit-mq-connection"

var (
	errConnectionClosed = errors.New("connection is closed")
	errChannelClosed    = errors.New("channel is closed")
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateChannelOpening
	StateReady
	StateDegraded
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateChannelOpening:
		return "channel_opening"
	case StateReady:
		return "ready"
	case StateDegraded:
		return "degraded"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session holds the handles of one SetUp. ch is non-nil only while the
// manager is Ready, and is always cleared before conn.
type session struct {
	conn     Connection
	ch       Channel
	connErrs chan *amqp.Error
	chErrs   chan *amqp.Error
}

// Manager owns one broker connection and one channel on top of it.
//
// SetUp and Disconnect are serialized, including the Disconnect issued by
// the supervisor when the broker reports a fault. IsUp only reads a
// snapshot of the handles and never waits on an in-flight dial.
type Manager struct {
	cfg     Config
	dial    Dialer
	log     *logger.Logger
	metrics *observability.Metrics

	ops sync.Mutex // serializes SetUp and Disconnect

	mu    sync.RWMutex // guards state and sess
	state State
	sess  *session

	supervisors sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the amqp091-go dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics records setup and teardown outcomes on metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a Manager in StateUninitialized. No I/O happens until
// SetUp.
func NewManager(cfg Config, opts ...Option) *Manager {
	cfg.ApplyDefaults()
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	if m.dial == nil {
		m.dial = NewDialer(cfg)
	}
	if m.log == nil {
		m.log = logger.GetGlobalLogger()
	}
	if m.metrics == nil {
		m.metrics = observability.NopMetrics()
	}
	m.log = m.log.WithComponent("rabbitmq")
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// SetUp connects to the broker and opens a channel. It returns nil without
// dialing when the manager is already Ready. Failures are returned as a
// BROKER_CONNECTION_FAILED AppError wrapping the cause; a channel failure
// closes the new connection first.
func (m *Manager) SetUp(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	start := time.Now()
	err := m.setUp(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	m.metrics.RecordOperation(ctx, "rabbitmq", "setup", status, time.Since(start))
	return err
}

func (m *Manager) setUp(ctx context.Context) error {
	m.mu.RLock()
	state, sess := m.state, m.sess
	m.mu.RUnlock()

	if state == StateReady && sess != nil && sess.ch != nil {
		return nil
	}

	// Handles left behind by a failed teardown must go before a new dial.
	if sess != nil && !m.disconnect(ctx) {
		return apperrors.BrokerConnection("setup", errors.New("previous session could not be closed"))
	}

	m.setState(StateConnecting)
	sess, err := m.connect(ctx)
	if err != nil {
		m.setState(StateClosed)
		return err
	}

	m.mu.Lock()
	m.sess = sess
	m.state = StateChannelOpening
	m.mu.Unlock()

	if err := m.openChannel(ctx, sess); err != nil {
		return err
	}

	m.log.Info("Connected to RabbitMQ", logger.Fields("address", m.cfg.Address()))
	m.supervise(sess)
	return nil
}

// connect dials the broker inside the connection-setup span.
func (m *Manager) connect(ctx context.Context) (*session, error) {
	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: TracerName, Span: "connection-setup"}, observability.Here())
	defer scope.End()

	conn, err := resilience.Retry(ctx, resilience.RetryConfig{
		Name:           "rabbitmq.connect",
		MaxAttempts:    m.cfg.ConnectAttempts,
		InitialBackoff: m.cfg.RetryBackoff,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			m.log.WithContext(ctx).Warn("Retrying broker connection", logger.Fields(
				"attempt", attempt,
				"backoff", backoff.String(),
				logger.FieldError, err,
			))
		},
	}, func(ctx context.Context) (Connection, error) {
		return m.dial(ctx, m.cfg.URL)
	})
	if err != nil {
		m.log.WithContext(ctx).Critical("Failed to connect", logger.Fields(logger.FieldError, err))
		scope.RecordError(err, "Failed to connect.")
		return nil, apperrors.BrokerConnection("connect", err)
	}

	sess := &session{conn: conn}
	sess.connErrs = conn.NotifyClose(make(chan *amqp.Error, 1))
	scope.OK()
	return sess, nil
}

// openChannel opens the channel inside the channel-setup span. On failure
// the session is torn down before the error is returned.
func (m *Manager) openChannel(ctx context.Context, sess *session) error {
	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: TracerName, Span: "channel-setup"}, observability.Here())
	defer scope.End()

	ch, err := sess.conn.Channel()
	if err != nil {
		m.log.WithContext(ctx).Critical("Disconnecting due to channel creation failing", logger.Fields(logger.FieldError, err))
		scope.RecordError(err, "Disconnecting due to channel creation failing.")
		m.disconnect(ctx)
		return apperrors.BrokerConnection("channel", err)
	}

	chErrs := ch.NotifyClose(make(chan *amqp.Error, 1))

	m.mu.Lock()
	sess.ch = ch
	sess.chErrs = chErrs
	m.state = StateReady
	m.mu.Unlock()

	scope.OK()
	return nil
}

// supervise waits for the broker to close either handle of sess. A close
// carrying an error tears sess down; a graceful close ends the supervisor.
func (m *Manager) supervise(sess *session) {
	m.supervisors.Add(1)
	go func() {
		defer m.supervisors.Done()

		var (
			reason *amqp.Error
			source string
		)
		select {
		case reason = <-sess.connErrs:
			source = "connection"
		case reason = <-sess.chErrs:
			source = "channel"
		}
		if reason == nil {
			return
		}
		m.handleFault(sess, source, reason)
	}()
}

func (m *Manager) handleFault(sess *session, source string, reason *amqp.Error) {
	ctx, scope := observability.Start(context.Background(), observability.Trace{Tracer: TracerName, Span: "on-error-callback"}, observability.Here())
	defer scope.End()

	m.ops.Lock()
	defer m.ops.Unlock()

	m.mu.Lock()
	if m.sess != sess {
		m.mu.Unlock()
		m.log.Debug("Ignoring close notification from a previous session", logger.Fields("source", source))
		return
	}
	m.state = StateDegraded
	m.mu.Unlock()

	msg := fmt.Sprintf("Disconnecting due to a %s error", source)
	m.log.WithContext(ctx).Critical(msg, logger.Fields(
		logger.FieldError, reason,
		"amqp_code", reason.Code,
		"server", reason.Server,
	))
	scope.RecordError(reason, msg+".")
	m.metrics.RecordError(ctx, "broker_"+source, "rabbitmq")

	m.disconnect(ctx)
}

// Disconnect closes the channel and then, if that worked, the connection.
// It returns false only when a close call fails, leaving that handle in
// place so Disconnect can be retried. On a manager with nothing open it
// returns true.
func (m *Manager) Disconnect(ctx context.Context) bool {
	m.ops.Lock()
	defer m.ops.Unlock()

	start := time.Now()
	ok := m.disconnect(ctx)
	status := "success"
	if !ok {
		status = "error"
	}
	m.metrics.RecordOperation(ctx, "rabbitmq", "disconnect", status, time.Since(start))
	return ok
}

func (m *Manager) disconnect(ctx context.Context) bool {
	m.mu.Lock()
	if m.sess == nil {
		if m.state != StateUninitialized {
			m.state = StateClosed
		}
		m.mu.Unlock()
		return true
	}
	m.state = StateClosing
	m.mu.Unlock()

	if !m.closeChannel(ctx) {
		return false
	}
	if !m.closeConnection(ctx) {
		return false
	}

	m.mu.Lock()
	m.sess = nil
	m.state = StateClosed
	m.mu.Unlock()

	m.log.Info("Disconnected from RabbitMQ")
	return true
}

func (m *Manager) closeChannel(ctx context.Context) bool {
	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: TracerName, Span: "channel-closer"}, observability.Here())
	defer scope.End()

	m.mu.RLock()
	ch := m.sess.ch
	m.mu.RUnlock()

	if ch != nil && !ch.IsClosed() {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			m.log.WithContext(ctx).Error("Failed to close channel", logger.Fields(logger.FieldError, err))
			scope.RecordError(err, "Failed to close channel.")
			return false
		}
	}

	m.mu.Lock()
	m.sess.ch = nil
	m.mu.Unlock()

	scope.OK()
	return true
}

func (m *Manager) closeConnection(ctx context.Context) bool {
	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: TracerName, Span: "connection-closer"}, observability.Here())
	defer scope.End()

	m.mu.RLock()
	conn := m.sess.conn
	m.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			m.log.WithContext(ctx).Error("Failed to close connection", logger.Fields(logger.FieldError, err))
			scope.RecordError(err, "Failed to close connection.")
			return false
		}
	}

	m.mu.Lock()
	m.sess.conn = nil
	m.mu.Unlock()

	scope.OK()
	return true
}

// IsUp reports whether the broker link is usable. It never requires SetUp
// and never returns an error: a failing or panicking probe yields false.
func (m *Manager) IsUp(ctx context.Context) bool {
	ctx, scope := observability.Start(ctx, observability.Trace{Tracer: TracerName, Span: "health-checker"}, observability.Here())
	defer scope.End()

	m.mu.RLock()
	state := m.state
	var conn Connection
	var ch Channel
	if m.sess != nil {
		conn, ch = m.sess.conn, m.sess.ch
	}
	m.mu.RUnlock()

	if state != StateReady || ch == nil {
		return false
	}

	if err := probe(conn, ch); err != nil {
		m.log.WithContext(ctx).Critical("Failed to check if RabbitMQ is up", logger.Fields(logger.FieldError, err))
		scope.RecordError(err, "Failed to check if RabbitMQ is up.")
		return false
	}
	scope.OK()
	return true
}

// probe runs a side-effect-free check against the held handles.
func probe(conn Connection, ch Channel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	if conn == nil || conn.IsClosed() {
		return errConnectionClosed
	}
	if ch.IsClosed() {
		return errChannelClosed
	}
	return nil
}

// Wait blocks until every supervisor goroutine has exited or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.supervisors.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

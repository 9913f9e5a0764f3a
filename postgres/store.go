package postgres

import (
	"context"
	"errors"
	"sync"
	"time"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/observability"
	"github.com/kbukum/service-template/resilience"
)

// Dialector builds a GORM dialector from a DSN.
type Dialector func(dsn string) gorm.Dialector

// Store is the PostgreSQL data store. It owns the connection pool and
// answers liveness probes.
type Store struct {
	cfg       Config
	dialector Dialector
	log       *logger.Logger
	metrics   *observability.Metrics

	mu sync.RWMutex
	db *gorm.DB
}

// Option configures a Store.
type Option func(*Store)

// WithDialector replaces the postgres driver, e.g. with sqlite in tests.
func WithDialector(d Dialector) Option {
	return func(s *Store) { s.dialector = d }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithMetrics records open and probe outcomes on metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a Store. No connection is made until Open.
func NewStore(cfg Config, opts ...Option) *Store {
	cfg.ApplyDefaults()
	s := &Store{cfg: cfg, dialector: pgdriver.Open}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetGlobalLogger()
	}
	if s.metrics == nil {
		s.metrics = observability.NopMetrics()
	}
	s.log = s.log.WithComponent("postgres")
	return s
}

// Open connects to the database with retry and configures the pool.
// Calling Open on an open Store is a no-op.
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	start := time.Now()
	gormCfg := &gorm.Config{
		Logger: newGormLogger(s.log, s.cfg.SlowQueryThreshold, parseLogLevel(s.cfg.LogLevel)),
	}

	db, err := resilience.Retry(ctx, resilience.RetryConfig{
		Name:           "postgres.open",
		MaxAttempts:    s.cfg.ConnectAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		RetryIf:        IsConnectionError,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			s.log.Warn("Database connection attempt failed, retrying", logger.Fields(
				"attempt", attempt,
				"backoff", backoff.String(),
				logger.FieldError, err,
			))
		},
	}, func(ctx context.Context) (*gorm.DB, error) {
		return s.connect(ctx, gormCfg)
	})
	if err != nil {
		s.metrics.RecordOperation(ctx, "postgres", "open", "error", time.Since(start))
		return fromDatabase(err)
	}

	s.db = db
	s.metrics.RecordOperation(ctx, "postgres", "open", "success", time.Since(start))
	s.log.Info("Database connection established", logger.Fields("address", s.cfg.Address()))
	return nil
}

func (s *Store) connect(ctx context.Context, gormCfg *gorm.Config) (*gorm.DB, error) {
	db, err := gorm.Open(s.dialector(s.cfg.DSN), gormCfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	sqlDB.SetMaxOpenConns(s.cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(s.cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(s.cfg.ConnMaxIdleTime)
	return db, nil
}

// Close closes the connection pool. Safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info("Closing database connection")
	s.db = nil
	return sqlDB.Close()
}

// DB returns a GORM session scoped to ctx, or nil before Open.
func (s *Store) DB(ctx context.Context) *gorm.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx)
}

// IsUp runs SELECT 1 against the pool. It reports false without an error
// before Open, and false with an error when the query fails.
func (s *Store) IsUp(ctx context.Context) (bool, error) {
	db := s.DB(ctx)
	if db == nil {
		return false, nil
	}

	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		return false, fromDatabase(err)
	}
	if one != 1 {
		return false, fromDatabase(errors.New("unexpected probe result"))
	}
	return true, nil
}

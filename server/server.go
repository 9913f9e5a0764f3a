package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/service-template/logger"
	"github.com/kbukum/service-template/server/endpoint"
	"github.com/kbukum/service-template/server/middleware"
)

// Server is the HTTP server backed by Gin. Requests pass through the
// net/http middleware chain before reaching the engine, and HTTP/2 cleartext
// is accepted alongside HTTP/1.1.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	log        *logger.Logger

	mu       sync.RWMutex
	listener net.Listener
	done     chan struct{}
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	middleware []middleware.Middleware
}

// WithMiddleware appends middleware after the standard stack.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(o *serverOptions) {
		o.middleware = append(o.middleware, mw...)
	}
}

// New creates a new Server. cfg should already have defaults applied.
// The standard middleware stack is installed in front of the engine:
// recovery, request ID, tracing, request logging and CORS.
func New(cfg Config, log *logger.Logger, opts ...Option) *Server {
	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}

	// Set Gin mode based on global zerolog level.
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log = log.WithComponent(componentName)
	engine := gin.New()

	stack := append([]middleware.Middleware{
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(),
		middleware.RequestLogger(log),
		middleware.CORS(&cfg.CORS),
	}, o.middleware...)

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          time.Duration(cfg.IdleTimeout) * time.Second,
	}
	handler := h2c.NewHandler(middleware.Chain(stack...)(engine), h2s)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           handler,
			ReadTimeout:       time.Duration(cfg.ReadTimeout) * time.Second,
			ReadHeaderTimeout: time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout:      time.Duration(cfg.WriteTimeout) * time.Second,
			IdleTimeout:       time.Duration(cfg.IdleTimeout) * time.Second,
		},
		engine: engine,
		config: cfg,
		log:    log,
	}
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// Handler returns the fully wrapped handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the port and begins serving. It returns once the listener is
// bound so the caller knows the port is ready; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Server error", logger.Fields("error", err.Error()))
		}
	}(s.done)

	s.log.Info("HTTP server started", logger.Fields("addr", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts down the server, waiting at most the configured stop
// timeout for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}

	s.log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.config.StopTimeout)*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("Server shutdown error", logger.Fields("error", err.Error()))
		return fmt.Errorf("server shutdown error: %w", err)
	}
	<-s.done
	s.listener = nil

	s.log.Info("HTTP server shut down successfully")
	return nil
}

// Running reports whether the server is bound and serving.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener != nil
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Endpoints selects the built-in endpoints to register. Nil fields skip the
// corresponding route, except /alive and /info which are always present.
type Endpoints struct {
	ServiceName string
	Health      endpoint.HealthChecker
	Readiness   endpoint.ReadinessChecker
	Metrics     http.Handler
}

// RegisterDefaultEndpoints registers /health, /alive, /ready, /info and
// /metrics.
func (s *Server) RegisterDefaultEndpoints(e Endpoints) {
	if e.Health != nil {
		s.engine.GET("/health", endpoint.Health(e.Health, s.log))
	}
	s.engine.GET("/alive", endpoint.Liveness(e.ServiceName))
	if e.Readiness != nil {
		s.engine.GET("/ready", endpoint.Readiness(e.ServiceName, e.Readiness))
	}
	s.engine.GET("/info", endpoint.Info(e.ServiceName))
	if e.Metrics != nil {
		s.engine.GET("/metrics", endpoint.Metrics(e.Metrics))
	}
	s.engine.NoRoute(notFound)
}

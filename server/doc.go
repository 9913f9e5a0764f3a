// Package server provides the service's HTTP server: a Gin engine behind a
// net/http middleware chain, served over HTTP/1.1 and h2c.
//
// The server is a component.Component, so the registry starts it after the
// dependencies it reports on and stops it first.
//
// # Middleware
//
// Installed by New, outermost first (server/middleware):
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation
//   - Tracing: server span per request, W3C trace context extraction
//   - RequestLogger: request logging; probe paths at debug level
//   - CORS: cross-origin headers and preflight handling
//
// middleware.Metrics is a Gin middleware so it can label by route pattern.
//
// # Endpoints
//
// Registered by RegisterDefaultEndpoints (server/endpoint):
//
//   - /health: dependency report, 200 when all are up, 500 otherwise
//   - /alive: liveness probe
//   - /ready: readiness from component lifecycle health
//   - /info: build information
//   - /metrics: Prometheus exposition
package server

package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/service-template/logger"
)

// RequestLogger returns middleware that logs every request with method,
// path, status code, size and duration. Probe paths are logged at debug level
// only, so scrapers and orchestrators don't flood the log.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)
			duration := time.Since(start)

			fields := map[string]interface{}{
				"method":             r.Method,
				"path":               r.URL.Path,
				logger.FieldStatus:   sw.status,
				logger.FieldDuration: duration.Milliseconds(),
				"bytes":              sw.written,
				"remote_addr":        r.RemoteAddr,
			}
			if id := RequestIDFromContext(r.Context()); id != "" {
				fields[logger.FieldRequestID] = id
			}

			l := log.WithContext(r.Context())
			if isProbeEndpoint(r.URL.Path) && sw.status < 500 {
				l.Debug("Request completed", fields)
				return
			}
			logByStatus(l, fields, sw.status)
		})
	}
}

func isProbeEndpoint(path string) bool {
	switch path {
	case "/health", "/alive", "/ready", "/metrics":
		return true
	}
	return false
}

// logByStatus logs request fields at the appropriate level based on HTTP status code.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	switch {
	case status >= 500:
		log.Error("Request completed", fields)
	case status >= 400:
		log.Warn("Request completed", fields)
	default:
		log.Info("Request completed", fields)
	}
}

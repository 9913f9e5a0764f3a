// Package errors provides the structured error type used across the
// service: machine-readable codes, HTTP status mapping and retryable
// detection, rendered to clients as RFC 7807 style bodies.
package errors

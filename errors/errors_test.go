package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAppError_New_Success(t *testing.T) {
	err := New(ErrCodeNotFound, "not found", http.StatusNotFound)
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "not found" {
		t.Errorf("expected message 'not found', got %q", err.Message)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Retryable {
		t.Error("NOT_FOUND should not be retryable")
	}
}

func TestAppError_New_Retryable(t *testing.T) {
	err := New(ErrCodeBrokerConnection, "broker down", http.StatusServiceUnavailable)
	if !err.Retryable {
		t.Error("BROKER_CONNECTION_FAILED should be retryable")
	}
}

func TestAppError_BrokerConnection(t *testing.T) {
	cause := stderrors.New("dial tcp 127.0.0.1:5672: connect: connection refused")
	err := BrokerConnection("connect", cause)

	if err.Code != ErrCodeBrokerConnection {
		t.Errorf("expected BROKER_CONNECTION_FAILED, got %s", err.Code)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", err.HTTPStatus)
	}
	if err.Details["operation"] != "connect" {
		t.Errorf("expected operation detail, got %v", err.Details["operation"])
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected cause to be reachable through errors.Is")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if !IsCode(fmt.Errorf("setup: %w", err), ErrCodeBrokerConnection) {
		t.Error("IsCode should see through wrapping")
	}
}

func TestAppError_NotFound_EmptyID(t *testing.T) {
	err := NotFound("queue", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
	err = NotFound("queue", "events")
	if err.Details["id"] != "events" {
		t.Errorf("expected id=events, got %v", err.Details["id"])
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := Timeout("probe").WithDetails(map[string]any{"probe": "postgres"}).WithDetail("attempt", 2)
	if err.Details["operation"] != "probe" {
		t.Errorf("existing detail lost: %v", err.Details)
	}
	if err.Details["probe"] != "postgres" || err.Details["attempt"] != 2 {
		t.Errorf("unexpected details: %v", err.Details)
	}

	bare := Validation("bad").WithDetail("field", "url")
	if bare.Details["field"] != "url" {
		t.Errorf("expected detail on nil map, got %v", bare.Details)
	}
}

func TestAppError_WithCause(t *testing.T) {
	cause := stderrors.New("root")
	err := ServiceUnavailable("broker").WithCause(cause)
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
	if NotFound("x", "").Unwrap() != nil {
		t.Error("Unwrap should return nil when no cause")
	}
}

func TestAppError_Error_Format(t *testing.T) {
	if got := Validation("bad url").Error(); got != "INVALID_INPUT: bad url" {
		t.Errorf("unexpected format: %q", got)
	}
}

func TestAppError_Constructors_Table(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"ServiceUnavailable", ServiceUnavailable("broker"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable, true},
		{"ConnectionFailed", ConnectionFailed("postgres", nil), ErrCodeConnectionFailed, http.StatusServiceUnavailable, true},
		{"BrokerConnection", BrokerConnection("channel", nil), ErrCodeBrokerConnection, http.StatusServiceUnavailable, true},
		{"Timeout", Timeout("query"), ErrCodeTimeout, http.StatusGatewayTimeout, true},
		{"HealthCheck", HealthCheck("rabbitmq", nil), ErrCodeHealthCheck, http.StatusServiceUnavailable, true},
		{"MissingField", MissingField("url"), ErrCodeMissingField, http.StatusBadRequest, false},
		{"InvalidInput", InvalidInput("port", "out of range"), ErrCodeInvalidInput, http.StatusBadRequest, false},
		{"DatabaseError", DatabaseError(nil), ErrCodeDatabaseError, http.StatusInternalServerError, true},
		{"Internal", Internal(nil), ErrCodeInternal, http.StatusInternalServerError, false},
		{"Validation", Validation("bad input"), ErrCodeInvalidInput, http.StatusBadRequest, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Code != tc.code {
				t.Errorf("expected code %s, got %s", tc.code, tc.err.Code)
			}
			if tc.err.HTTPStatus != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, tc.err.HTTPStatus)
			}
			if tc.err.Retryable != tc.retryable {
				t.Errorf("expected retryable=%v, got %v", tc.retryable, tc.err.Retryable)
			}
		})
	}
}

func TestErrorCode_IsRetryableCode_Table(t *testing.T) {
	retryable := []ErrorCode{ErrCodeServiceUnavailable, ErrCodeConnectionFailed, ErrCodeBrokerConnection, ErrCodeTimeout, ErrCodeDatabaseError, ErrCodeHealthCheck}
	for _, code := range retryable {
		if !IsRetryableCode(code) {
			t.Errorf("expected %s to be retryable", code)
		}
	}

	nonRetryable := []ErrorCode{ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeMissingField, ErrCodeInternal}
	for _, code := range nonRetryable {
		if IsRetryableCode(code) {
			t.Errorf("expected %s to NOT be retryable", code)
		}
	}
}

func TestAppError_ToResponse_Success(t *testing.T) {
	resp := BrokerConnection("connect", stderrors.New("refused")).ToResponse()
	if resp.Error.Code != ErrCodeBrokerConnection {
		t.Errorf("expected BROKER_CONNECTION_FAILED in response, got %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable=true in response")
	}
	if resp.Error.Details["operation"] != "connect" {
		t.Error("expected operation in response details")
	}
}

func TestAppError_AsAppError(t *testing.T) {
	appErr := Internal(nil)
	wrapped := fmt.Errorf("wrap: %w", appErr)

	if !IsAppError(wrapped) {
		t.Error("expected IsAppError to return true for wrapped AppError")
	}
	got, ok := AsAppError(wrapped)
	if !ok || got.Code != ErrCodeInternal {
		t.Fatalf("expected INTERNAL_ERROR, got %v (ok=%v)", got, ok)
	}
	if _, ok := AsAppError(fmt.Errorf("plain")); ok {
		t.Error("expected AsAppError to return false for non-AppError")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	orig := NotFound("item", "1")
	if Wrap(orig) != orig {
		t.Error("Wrap should return the original AppError unchanged")
	}
	if Wrap(fmt.Errorf("outer: %w", orig)) != orig {
		t.Error("Wrap should unwrap to the inner AppError")
	}

	plain := stderrors.New("disk full")
	got := Wrap(plain)
	if got.Code != ErrCodeInternal || got.Cause != plain {
		t.Errorf("expected internal error wrapping cause, got %+v", got)
	}
}

package postgres

import (
	"strings"

	apperrors "github.com/kbukum/service-template/errors"
)

// IsConnectionError checks if a database error is a connection error
// that might be resolved by retrying.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	patterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"connection closed",
		"driver: bad connection",
		"database is closed",
		"the database system is starting up",
	}
	for _, p := range patterns {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// fromDatabase converts a database error to an AppError. Connection
// failures become CONNECTION_FAILED, anything else DATABASE_ERROR.
func fromDatabase(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if IsConnectionError(err) {
		return apperrors.ConnectionFailed("postgres", err)
	}
	return apperrors.DatabaseError(err)
}

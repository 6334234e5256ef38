package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Error codes used across the engine
const (
	CodeValidation             = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidCollectionState = "INVALID_COLLECTION_STATE"
	CodeInsufficientPool       = "INSUFFICIENT_POOL"
	CodeNoActivePool           = "NO_ACTIVE_POOL"
	CodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	CodeStorageUnavailable     = "STORAGE_UNAVAILABLE"
)

// Error is a coded domain error. Handlers map the code to an HTTP status;
// services compare codes to decide whether a retry can change the outcome.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error with a formatted message.
func New(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a coded error.
func Wrap(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Validation flags malformed or missing input, caught before any storage access.
func Validation(format string, args ...interface{}) *Error {
	return New(CodeValidation, format, args...)
}

// NotFound flags a missing referenced record.
func NotFound(format string, args ...interface{}) *Error {
	return New(CodeNotFound, format, args...)
}

// InvalidCollectionState names the collections that are not approved+unconsumed.
func InvalidCollectionState(ids []string) *Error {
	return New(CodeInvalidCollectionState,
		"collections not eligible for pooling (must be APPROVED and unconsumed): %s",
		strings.Join(ids, ", "))
}

// InsufficientPool flags a withdrawal exceeding the remaining balance.
func InsufficientPool(requested, remaining decimal.Decimal) *Error {
	return New(CodeInsufficientPool,
		"withdrawal of %s L exceeds remaining pool balance of %s L",
		requested.StringFixed(3), remaining.StringFixed(3))
}

// NoActivePool flags a reset against a pool that is not the single active one.
func NoActivePool(format string, args ...interface{}) *Error {
	return New(CodeNoActivePool, format, args...)
}

// Conflict flags a lost optimistic-concurrency race; safe to retry.
func Conflict(format string, args ...interface{}) *Error {
	return New(CodeConcurrencyConflict, format, args...)
}

// Storage wraps a failure of the underlying store. The outcome is unknown;
// callers must re-query rather than assume rollback.
func Storage(err error) *Error {
	return Wrap(CodeStorageUnavailable, "storage operation failed", err)
}

// Code extracts the error code, or empty string for uncoded errors.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// IsRetryable reports whether retrying can change the outcome. Only lost
// concurrency races qualify; validation and state errors never do.
func IsRetryable(err error) bool {
	return Is(err, CodeConcurrencyConflict)
}

// Postgres SQLSTATEs that signal a lost serialization race
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// Postgres SQLSTATE classes that signal the store itself is unhealthy:
// 08 connection exceptions, 53 insufficient resources, 57P server shutdown.
var pgStorageClasses = []string{"08", "53", "57P"}

// ClassifyPg converts transient postgres failures into coded errors:
// serialization losses become retryable conflicts, connection and resource
// failures become STORAGE_UNAVAILABLE. Everything else passes through
// unchanged.
func ClassifyPg(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected {
			return Wrap(CodeConcurrencyConflict, "transaction lost a serialization race", err)
		}
		for _, class := range pgStorageClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return Wrap(CodeStorageUnavailable, "storage operation failed", err)
			}
		}
	}
	return err
}

// HTTPStatus maps an error code to the status handlers respond with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidCollectionState, CodeNoActivePool:
		return http.StatusConflict
	case CodeInsufficientPool:
		return http.StatusUnprocessableEntity
	case CodeConcurrencyConflict:
		return http.StatusConflict
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

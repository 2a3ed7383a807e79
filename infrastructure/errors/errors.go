// Package errors provides unified error handling for the transactional core.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code.
type ErrorCode string

const (
	// Invariant violations (HX1xx-HX9xx), raised by the store.
	ErrCodeInvariantXPTerminal      ErrorCode = "HX101" // I1: XP row requires terminal released-like escrow
	ErrCodeInvariantEscrowCompleted ErrorCode = "HX102" // I2: escrow RELEASED requires task COMPLETED
	ErrCodeInvariantTaskProof       ErrorCode = "HX103" // I3: task COMPLETED requires proof ACCEPTED
	ErrCodeInvariantAmountImmutable ErrorCode = "HX104" // I4: escrow.amount immutable once non-PENDING
	ErrCodeInvariantDuplicateXP     ErrorCode = "HX105" // I5: at most one XP row per (user, escrow)
	ErrCodeInvariantProgressSkip    ErrorCode = "HX106" // I6: progress transitions follow fixed adjacency
	ErrCodeInvariantAppendOnly      ErrorCode = "HX107" // I7: ledger rows are append-only
	ErrCodeInvariantMaxExpertise    ErrorCode = "HX108" // I8: at most two active expertise rows
	ErrCodeInvariantOutboxKey       ErrorCode = "HX109" // I9: outbox idempotency key globally unique

	// State transition errors.
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrCodeTaskTerminal      ErrorCode = "TASK_TERMINAL"
	ErrCodeEscrowTerminal    ErrorCode = "ESCROW_TERMINAL"

	// Authorization/ownership errors.
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Optimistic locking.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// External-service errors.
	ErrCodeAIUnavailable    ErrorCode = "AI_UNAVAILABLE"
	ErrCodeVerificationFail ErrorCode = "VERIFICATION_FAILED"
	ErrCodeExternalService  ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeCircuitOpen      ErrorCode = "CIRCUIT_OPEN"
	ErrCodeUpstreamTimeout  ErrorCode = "UPSTREAM_TIMEOUT"

	// Correction budget.
	ErrCodeBudgetExhausted ErrorCode = "BUDGET_EXHAUSTED"

	// Generic.
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeInternal      ErrorCode = "INTERNAL"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
)

// ServiceError represents a structured error with code, message, and HTTP status.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	HTTPStatus int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails adds additional details to the error.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new ServiceError.
func New(code ErrorCode, message string, httpStatus int) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap wraps an existing error with a ServiceError.
func Wrap(code ErrorCode, message string, httpStatus int, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Invariant violations

func InvariantViolation(code ErrorCode, message string) *ServiceError {
	return New(code, message, http.StatusConflict)
}

// State transition errors

func InvalidState(entity, state string) *ServiceError {
	return New(ErrCodeInvalidState, "invalid state for operation", http.StatusConflict).
		WithDetails("entity", entity).WithDetails("state", state)
}

func InvalidTransition(from, to string) *ServiceError {
	return New(ErrCodeInvalidTransition, "transition not permitted", http.StatusConflict).
		WithDetails("from", from).WithDetails("to", to)
}

func TaskTerminal(taskID string) *ServiceError {
	return New(ErrCodeTaskTerminal, "task is in a terminal state", http.StatusConflict).
		WithDetails("task_id", taskID)
}

func EscrowTerminal(escrowID string) *ServiceError {
	return New(ErrCodeEscrowTerminal, "escrow is in a terminal state", http.StatusConflict).
		WithDetails("escrow_id", escrowID)
}

// Authorization errors

func Forbidden(message string) *ServiceError {
	return New(ErrCodeForbidden, message, http.StatusForbidden)
}

func Unauthorized(message string) *ServiceError {
	return New(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

// Optimistic locking

func Conflict(message string) *ServiceError {
	return New(ErrCodeConflict, message, http.StatusConflict)
}

func VersionConflict(entity string, expected, actual int) *ServiceError {
	return New(ErrCodeConflict, "version conflict", http.StatusConflict).
		WithDetails("entity", entity).WithDetails("expected_version", expected).WithDetails("actual_version", actual)
}

// External-service errors

func AIUnavailable(vendor string) *ServiceError {
	return New(ErrCodeAIUnavailable, "external verifier unavailable", http.StatusServiceUnavailable).
		WithDetails("vendor", vendor)
}

func VerificationFailed(reason string) *ServiceError {
	return New(ErrCodeVerificationFail, "signature verification failed", http.StatusUnauthorized).
		WithDetails("reason", reason)
}

func ExternalService(service string, err error) *ServiceError {
	return Wrap(ErrCodeExternalService, "external service call failed", http.StatusBadGateway, err).
		WithDetails("service", service)
}

func CircuitOpen(service string) *ServiceError {
	return New(ErrCodeCircuitOpen, "circuit breaker open", http.StatusServiceUnavailable).
		WithDetails("service", service)
}

func UpstreamTimeout(service string) *ServiceError {
	return New(ErrCodeUpstreamTimeout, "upstream call timed out", http.StatusGatewayTimeout).
		WithDetails("service", service)
}

// Correction budget

func BudgetExhausted(scope string) *ServiceError {
	return New(ErrCodeBudgetExhausted, "correction budget exhausted", http.StatusOK).
		WithDetails("scope", scope)
}

// Generic

func NotFound(resource, id string) *ServiceError {
	return New(ErrCodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).WithDetails("id", id)
}

func AlreadyExists(resource, id string) *ServiceError {
	return New(ErrCodeAlreadyExists, "resource already exists", http.StatusConflict).
		WithDetails("resource", resource).WithDetails("id", id)
}

func InvalidInput(field, reason string) *ServiceError {
	return New(ErrCodeInvalidInput, "invalid input", http.StatusBadRequest).
		WithDetails("field", field).WithDetails("reason", reason)
}

func Internal(message string, err error) *ServiceError {
	return Wrap(ErrCodeInternal, message, http.StatusInternalServerError, err)
}

func DatabaseError(operation string, err error) *ServiceError {
	return Wrap(ErrCodeDatabaseError, "database operation failed", http.StatusInternalServerError, err).
		WithDetails("operation", operation)
}

// Helper functions

// IsServiceError checks if an error is a ServiceError.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// GetHTTPStatus returns the HTTP status code for an error.
func GetHTTPStatus(err error) int {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Is reports whether err carries the given ErrorCode.
func Is(err error, code ErrorCode) bool {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.Code == code
	}
	return false
}

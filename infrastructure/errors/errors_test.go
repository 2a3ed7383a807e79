package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestServiceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ServiceError
		want string
	}{
		{
			name: "error without underlying error",
			err:  New(ErrCodeUnauthorized, "test message", http.StatusUnauthorized),
			want: "[UNAUTHORIZED] test message",
		},
		{
			name: "error with underlying error",
			err:  Wrap(ErrCodeInternal, "test message", http.StatusInternalServerError, errors.New("underlying")),
			want: "[INTERNAL] test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestServiceError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(ErrCodeInternal, "test", http.StatusInternalServerError, underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestServiceError_WithDetails(t *testing.T) {
	err := New(ErrCodeInvalidInput, "test", http.StatusBadRequest)
	err.WithDetails("field", "username").WithDetails("reason", "too short")

	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	if err.Details["field"] != "username" {
		t.Errorf("Details[field] = %v, want username", err.Details["field"])
	}
	if err.Details["reason"] != "too short" {
		t.Errorf("Details[reason] = %v, want too short", err.Details["reason"])
	}
}

func TestForbidden(t *testing.T) {
	err := Forbidden("access denied")
	if err.Code != ErrCodeForbidden {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeForbidden)
	}
	if err.HTTPStatus != http.StatusForbidden {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusForbidden)
	}
}

func TestUnauthorized(t *testing.T) {
	err := Unauthorized("no session")
	if err.Code != ErrCodeUnauthorized {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnauthorized)
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusUnauthorized)
	}
}

func TestInvalidTransition(t *testing.T) {
	err := InvalidTransition("OPEN", "COMPLETED")
	if err.Code != ErrCodeInvalidTransition {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidTransition)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
	if err.Details["from"] != "OPEN" || err.Details["to"] != "COMPLETED" {
		t.Errorf("Details = %v, want from=OPEN to=COMPLETED", err.Details)
	}
}

func TestTaskTerminal(t *testing.T) {
	err := TaskTerminal("task-1")
	if err.Code != ErrCodeTaskTerminal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeTaskTerminal)
	}
	if err.Details["task_id"] != "task-1" {
		t.Errorf("Details[task_id] = %v, want task-1", err.Details["task_id"])
	}
}

func TestEscrowTerminal(t *testing.T) {
	err := EscrowTerminal("escrow-1")
	if err.Code != ErrCodeEscrowTerminal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeEscrowTerminal)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
}

func TestVersionConflict(t *testing.T) {
	err := VersionConflict("escrow", 2, 3)
	if err.Code != ErrCodeConflict {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConflict)
	}
	if err.Details["expected_version"] != 2 || err.Details["actual_version"] != 3 {
		t.Errorf("Details = %v, want expected=2 actual=3", err.Details)
	}
}

func TestAIUnavailable(t *testing.T) {
	err := AIUnavailable("liveness")
	if err.Code != ErrCodeAIUnavailable {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeAIUnavailable)
	}
	if err.HTTPStatus != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusServiceUnavailable)
	}
}

func TestVerificationFailed(t *testing.T) {
	err := VerificationFailed("bad signature")
	if err.Code != ErrCodeVerificationFail {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeVerificationFail)
	}
	if err.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusUnauthorized)
	}
}

func TestBudgetExhausted(t *testing.T) {
	err := BudgetExhausted("zone")
	if err.Code != ErrCodeBudgetExhausted {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeBudgetExhausted)
	}
	if err.Details["scope"] != "zone" {
		t.Errorf("Details[scope] = %v, want zone", err.Details["scope"])
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("user", "123")
	if err.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNotFound)
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusNotFound)
	}
	if err.Details["resource"] != "user" || err.Details["id"] != "123" {
		t.Errorf("Details = %v, want resource=user id=123", err.Details)
	}
}

func TestAlreadyExists(t *testing.T) {
	err := AlreadyExists("user_expertise", "u1:plumbing")
	if err.Code != ErrCodeAlreadyExists {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeAlreadyExists)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("email", "invalid format")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidInput)
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusBadRequest)
	}
	if err.Details["field"] != "email" {
		t.Errorf("Details[field] = %v, want email", err.Details["field"])
	}
}

func TestInternal(t *testing.T) {
	underlying := errors.New("database connection failed")
	err := Internal("internal error", underlying)
	if err.Code != ErrCodeInternal {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}
}

func TestDatabaseError(t *testing.T) {
	underlying := errors.New("connection timeout")
	err := DatabaseError("insert", underlying)
	if err.Code != ErrCodeDatabaseError {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeDatabaseError)
	}
	if err.Details["operation"] != "insert" {
		t.Errorf("Details[operation] = %v, want insert", err.Details["operation"])
	}
}

func TestIsServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "service error", err: New(ErrCodeInternal, "test", http.StatusInternalServerError), want: true},
		{name: "standard error", err: errors.New("standard error"), want: false},
		{name: "nil error", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsServiceError(tt.err); got != tt.want {
				t.Errorf("IsServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetServiceError(t *testing.T) {
	serviceErr := New(ErrCodeInternal, "test", http.StatusInternalServerError)
	standardErr := errors.New("standard error")

	tests := []struct {
		name string
		err  error
		want *ServiceError
	}{
		{name: "service error", err: serviceErr, want: serviceErr},
		{name: "standard error", err: standardErr, want: nil},
		{name: "nil error", err: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetServiceError(tt.err); got != tt.want {
				t.Errorf("GetServiceError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "service error", err: New(ErrCodeUnauthorized, "test", http.StatusUnauthorized), want: http.StatusUnauthorized},
		{name: "standard error", err: errors.New("standard error"), want: http.StatusInternalServerError},
		{name: "nil error", err: nil, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConflict(t *testing.T) {
	err := Conflict("resource locked")
	if err.Code != ErrCodeConflict {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConflict)
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", err.HTTPStatus, http.StatusConflict)
	}
}

func TestIs(t *testing.T) {
	err := TaskTerminal("task-1")
	if !Is(err, ErrCodeTaskTerminal) {
		t.Errorf("Is() = false, want true")
	}
	if Is(err, ErrCodeConflict) {
		t.Errorf("Is() = true, want false")
	}
	if Is(errors.New("plain"), ErrCodeConflict) {
		t.Errorf("Is() on non-ServiceError = true, want false")
	}
}

// Package errors defines the structured error taxonomy shared by all
// services. Handlers map error types to HTTP status codes at the outermost
// boundary; domain code never inspects status codes directly.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType classifies an application error
type ErrorType string

const (
	// ErrTypeNotFound represents a missing entity, or one owned by another user
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeValidation represents malformed or conflicting input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeConflict represents a resource busy condition, e.g. a held sync lock
	ErrTypeConflict ErrorType = "conflict"
	// ErrTypeAuth represents an authentication failure
	ErrTypeAuth ErrorType = "authentication"
	// ErrTypeForbidden represents an authorization failure
	ErrTypeForbidden ErrorType = "forbidden"
	// ErrTypeRateLimit represents a rate limit rejection
	ErrTypeRateLimit ErrorType = "rate_limit"
	// ErrTypeUpstream represents an orchestrator or external platform failure
	ErrTypeUpstream ErrorType = "upstream"
	// ErrTypeUnavailable represents a cache or datastore transport failure.
	// Distinct from a cache miss: readers must not treat it as "absent".
	ErrTypeUnavailable ErrorType = "unavailable"
	// ErrTypeInternal represents any other internal error
	ErrTypeInternal ErrorType = "internal"
)

// AppError is a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a key-value pair to the error context
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NotFoundError creates a not found error for a resource
func NotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// ValidationError creates a validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ConflictError creates a conflict error
func ConflictError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeConflict,
		Message: msg,
	}
}

// AuthError creates an authentication error
func AuthError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeAuth,
		Message: msg,
	}
}

// ForbiddenError creates an authorization error
func ForbiddenError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeForbidden,
		Message: msg,
	}
}

// RateLimitError creates a rate limit error
func RateLimitError(resource string) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limit exceeded for %s", resource),
	}
}

// UpstreamError creates an error for a failed external call
func UpstreamError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUpstream,
		Message: msg,
		Cause:   cause,
	}
}

// UnavailableError creates an error for an unreachable cache or datastore
func UnavailableError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeUnavailable,
		Message: msg,
		Cause:   cause,
	}
}

// InternalError creates an internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks whether err (or anything it wraps) is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the error type, defaulting to ErrTypeInternal for plain errors
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}

// HTTPStatus maps an error to the HTTP status code the boundary should return
func HTTPStatus(err error) int {
	switch GetType(err) {
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeConflict:
		return http.StatusConflict
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeForbidden:
		return http.StatusForbidden
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeValidation represents configuration validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeCycle represents circular stage dependency errors
	ErrTypeCycle ErrorType = "cycle"
	// ErrTypeDependency represents unsatisfied workflow dependency errors
	ErrTypeDependency ErrorType = "dependency"
	// ErrTypeNotFound represents resource not found errors
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
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

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// CycleError creates a new circular dependency error.
// The path describes the full cycle, e.g. "a -> b -> c -> a".
func CycleError(path string) *AppError {
	return &AppError{
		Type:    ErrTypeCycle,
		Message: fmt.Sprintf("circular stage dependency: %s", path),
	}
}

// DependencyError creates a new workflow dependency error
func DependencyError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeDependency,
		Message: msg,
		Cause:   cause,
	}
}

// NotFoundError creates a new not found error
func NotFoundError(msg string) *AppError {
	return &AppError{
		Type:    ErrTypeNotFound,
		Message: msg,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeTimeout,
		Message: msg,
		Cause:   cause,
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == errType
}

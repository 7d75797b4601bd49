package errors

import "fmt"

// ErrorCode represents an rpv error code.
type ErrorCode string

const (
	ErrCatalogLoadFailed ErrorCode = "CATALOG_LOAD_FAILED" // 502, catalog unreachable or malformed, fatal
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNoCheckpoint      ErrorCode = "NO_CHECKPOINT"       // 404, jump requested with no checkpoint set
	ErrNotReady          ErrorCode = "NOT_READY"           // 503, catalog not loaded yet
	ErrWriteFailed       ErrorCode = "WRITE_FAILED"        // 500, persistence write failed, non-fatal
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// RpvError represents a structured error with code, status, and details.
type RpvError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *RpvError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCatalogLoadFailed creates a 502 error for an unreachable or malformed catalog.
func NewCatalogLoadFailed(source string, cause error) *RpvError {
	msg := fmt.Sprintf("failed to load catalog from %s", source)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &RpvError{
		Code:    ErrCatalogLoadFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"source": source},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RpvError {
	return &RpvError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a paper cannot be found.
func NewNotFound(id string) *RpvError {
	return &RpvError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("paper not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewNoCheckpoint creates a 404 error for a jump with no usable checkpoint.
func NewNoCheckpoint(msg string) *RpvError {
	return &RpvError{
		Code:    ErrNoCheckpoint,
		Status:  404,
		Message: msg,
	}
}

// NewNotReady creates a 503 error for calls made before the catalog resolved.
func NewNotReady() *RpvError {
	return &RpvError{
		Code:    ErrNotReady,
		Status:  503,
		Message: "catalog is not loaded yet",
	}
}

// NewWriteFailed creates a 500 error for a failed persistence write.
// Callers treat this as non-fatal: in-memory state remains authoritative.
func NewWriteFailed(slot string, cause error) *RpvError {
	msg := fmt.Sprintf("failed to write %s", slot)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &RpvError{
		Code:    ErrWriteFailed,
		Status:  500,
		Message: msg,
		Details: map[string]any{"slot": slot},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RpvError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RpvError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is an RpvError with the given code.
func Is(err error, code ErrorCode) bool {
	if rErr, ok := err.(*RpvError); ok {
		return rErr.Code == code
	}
	return false
}

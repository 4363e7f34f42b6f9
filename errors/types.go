package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Watch errors
	ErrCodeWatchDirNotFound        ErrorCode = "WATCH_DIR_NOT_FOUND"
	ErrCodeWatchRegistrationFailed ErrorCode = "WATCH_REGISTRATION_FAILED"

	// Render collaborator errors
	ErrCodeRenderFailed ErrorCode = "RENDER_FAILED"

	// Process errors
	ErrCodeAlreadyRunning ErrorCode = "ALREADY_RUNNING"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// RenderwatchError represents a structured error with context
type RenderwatchError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *RenderwatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *RenderwatchError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *RenderwatchError) WithDetail(key string, value interface{}) *RenderwatchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *RenderwatchError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new RenderwatchError
func New(code ErrorCode, message string) *RenderwatchError {
	return &RenderwatchError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a RenderwatchError
func Wrap(err error, code ErrorCode, message string) *RenderwatchError {
	return &RenderwatchError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is reports whether err, or anything it wraps, carries the given code
func Is(err error, code ErrorCode) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from the first RenderwatchError in the chain
func GetCode(err error) ErrorCode {
	for err != nil {
		if rwErr, ok := err.(*RenderwatchError); ok {
			return rwErr.Code
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = unwrapper.Unwrap()
	}
	return ""
}

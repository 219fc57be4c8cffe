package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"

	// Command execution errors
	ErrCodeCommandTimeout  ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// Monitoring errors
	ErrCodeWatchFailed     ErrorCode = "WATCH_FAILED"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// LookoutError represents a structured error with context
type LookoutError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *LookoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *LookoutError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *LookoutError) WithDetail(key string, value interface{}) *LookoutError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *LookoutError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new LookoutError
func New(code ErrorCode, message string) *LookoutError {
	return &LookoutError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a LookoutError
func Wrap(err error, code ErrorCode, message string) *LookoutError {
	return &LookoutError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific LookoutError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	le, ok := err.(*LookoutError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return le.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	le, ok := err.(*LookoutError)
	if !ok {
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return le.Code
}

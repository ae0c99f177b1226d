// Package errors defines warden's coded error type. Errors crossing a
// package or API boundary carry an ErrorCode so the CLI and daemon clients
// can react to the condition instead of matching message text.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode names one failure condition.
type ErrorCode string

const (
	// Locking errors
	ErrCodeAlreadyLocked ErrorCode = "ALREADY_LOCKED"
	ErrCodeNoManualLock  ErrorCode = "NO_MANUAL_LOCK"

	// Adapter errors
	ErrCodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"
	ErrCodeAdapterUnknown     ErrorCode = "ADAPTER_UNKNOWN"
	ErrCodeLaunchFailed       ErrorCode = "LAUNCH_FAILED"
	ErrCodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"

	// State persistence errors
	ErrCodeStateCorrupt  ErrorCode = "STATE_CORRUPT"
	ErrCodePersistFailed ErrorCode = "PERSIST_FAILED"

	// Fuse errors
	ErrCodeFuseNotFound     ErrorCode = "FUSE_NOT_FOUND"
	ErrCodeFuseActionFailed ErrorCode = "FUSE_ACTION_FAILED"

	// Daemon errors
	ErrCodeDaemonUnavailable ErrorCode = "DAEMON_UNAVAILABLE"
	ErrCodeDaemonRunning     ErrorCode = "DAEMON_ALREADY_RUNNING"

	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Command execution errors
	ErrCodeCommandTimeout  ErrorCode = "COMMAND_TIMEOUT"
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
)

// WardenError is a coded error with optional structured details. It
// marshals cleanly for daemon API responses.
type WardenError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *WardenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *WardenError) Unwrap() error { return e.Cause }

// WithDetail attaches one key to the detail map and returns the error for
// chaining.
func (e *WardenError) WithDetail(key string, value interface{}) *WardenError {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// ToJSON renders the error for API responses and --json output.
func (e *WardenError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

func New(code ErrorCode, message string) *WardenError {
	return &WardenError{Code: code, Message: message}
}

func Wrap(err error, code ErrorCode, message string) *WardenError {
	return &WardenError{Code: code, Message: message, Cause: err}
}

// Is reports whether the first WardenError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	var werr *WardenError
	return stderrors.As(err, &werr) && werr.Code == code
}

// GetCode returns the code of the first WardenError in err's chain, or the
// empty string when there is none.
func GetCode(err error) ErrorCode {
	var werr *WardenError
	if stderrors.As(err, &werr) {
		return werr.Code
	}
	return ""
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrNotFound            = 404
	ErrConflict            = 409
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Faucet-specific error codes (1100+)
	ErrTooSoon             = 1101
	ErrSendFailure         = 1102
	ErrUnsupportedCurrency = 1103
	ErrInvalidRate         = 1104
	ErrNothingToClaim      = 1105
	ErrUpstreamFetch       = 1106
	ErrFaucetUnavailable   = 1107
	ErrStoreError          = 1108
	ErrKafkaError          = 1109
	ErrRedisError          = 1110
	ErrConfigError         = 1111
)

// Sentinels for errors.Is comparisons. Matching is by code only.
var (
	Validation          = New(ErrInvalidRequest, "validation error")
	TooSoon             = New(ErrTooSoon, "claim cooldown has not elapsed")
	NotFound            = New(ErrNotFound, "not found")
	SendFailure         = New(ErrSendFailure, "wallet send failed")
	ConcurrencyConflict = New(ErrConflict, "concurrent modification, retry")
	ServiceUnavailable  = New(ErrServiceUnavailable, "service unavailable")
	UnsupportedCurrency = New(ErrUnsupportedCurrency, "unsupported currency")
	InvalidRate         = New(ErrInvalidRate, "invalid rate")
	NothingToClaim      = New(ErrNothingToClaim, "nothing to claim")
	FaucetUnavailable   = New(ErrFaucetUnavailable, "faucet unavailable")
)

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapWithDebug wraps an existing error into an AppError with a debug message
func WrapWithDebug(err error, code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
		Err:          err,
	}
}

// Is forwards to the standard library so callers only import one errors package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As forwards to the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// GetCode extracts error code from an error
func GetCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest:
		return 400
	case ErrNotFound:
		return 404
	case ErrConflict:
		return 409
	case ErrInternalServerError:
		return 500
	case ErrServiceUnavailable:
		return 503
	case ErrTooSoon:
		return 429
	case ErrSendFailure:
		return 502
	case ErrUnsupportedCurrency, ErrNothingToClaim:
		return 400
	case ErrInvalidRate, ErrFaucetUnavailable:
		return 500
	default:
		return 500
	}
}

// PublicKind maps a code to the closed set of error kinds shown to API clients.
func PublicKind(code int) string {
	switch code {
	case ErrInvalidRequest, ErrUnsupportedCurrency:
		return "INVALID_ADDRESS"
	case ErrTooSoon:
		return "TOO_SOON"
	case ErrNothingToClaim:
		return "NOTHING_TO_CLAIM"
	case ErrConflict:
		return "CONFLICT"
	case ErrNotFound:
		return "NOT_FOUND"
	case ErrFaucetUnavailable, ErrServiceUnavailable:
		return "FAUCET_UNAVAILABLE"
	default:
		return "FAILED"
	}
}

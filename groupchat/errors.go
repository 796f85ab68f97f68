package groupchat

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Session errors
	ErrorFetch
	ErrorChannel
	ErrorUpload
	ErrorLeave
	ErrorProtocol

	// Client-side errors
	ErrorNotConnected
	ErrorChannelClosed
	ErrorAlreadyOpen
	ErrorInvalidConfig
	ErrorInvalidMessage
	ErrorInvalidAttachment
	ErrorStaleSession
	ErrorTimeout
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorFetch:
		return "fetch_error"
	case ErrorChannel:
		return "channel_error"
	case ErrorUpload:
		return "upload_error"
	case ErrorLeave:
		return "leave_error"
	case ErrorProtocol:
		return "protocol_error"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorChannelClosed:
		return "channel_closed"
	case ErrorAlreadyOpen:
		return "already_open"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorInvalidAttachment:
		return "invalid_attachment"
	case ErrorStaleSession:
		return "stale_session"
	case ErrorTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ChatError is a structured error with code and context.
type ChatError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a ChatError with the same code.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrFetch          = &ChatError{Code: ErrorFetch}
	ErrChannel        = &ChatError{Code: ErrorChannel}
	ErrUpload         = &ChatError{Code: ErrorUpload}
	ErrLeave          = &ChatError{Code: ErrorLeave}
	ErrProtocol       = &ChatError{Code: ErrorProtocol}
	ErrNotConnected   = &ChatError{Code: ErrorNotConnected}
	ErrChannelClosed  = &ChatError{Code: ErrorChannelClosed}
	ErrStaleSession   = &ChatError{Code: ErrorStaleSession}
	ErrInvalidMessage = &ChatError{Code: ErrorInvalidMessage}
)

// NewError creates a new ChatError with the given code and message.
func NewError(code ErrorCode, message string) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ChatError.
func WrapError(code ErrorCode, message string, err error) *ChatError {
	return &ChatError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// IsFetchError checks if an error came from the history load.
func IsFetchError(err error) bool {
	return hasCode(err, ErrorFetch)
}

// IsChannelError checks if an error is a live channel failure.
func IsChannelError(err error) bool {
	return hasCode(err, ErrorChannel) || hasCode(err, ErrorTimeout)
}

// IsProtocolError checks if an error is a malformed inbound frame.
func IsProtocolError(err error) bool {
	return hasCode(err, ErrorProtocol)
}

func hasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var ce *ChatError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}

package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents the different failure classes a scrape run can hit
type ErrorType string

const (
	ErrorTypeProtocol            ErrorType = "protocol"
	ErrorTypeUnknownConversation ErrorType = "unknown_conversation"
	ErrorTypeDownload            ErrorType = "download"
	ErrorTypeMalformedInput      ErrorType = "malformed_input"
	ErrorTypeNetwork             ErrorType = "network"
	ErrorTypeCredentials         ErrorType = "credentials"
)

// Error carries a typed failure with an optional HTTP status and cause
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error", e.Type)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates an error of the given type around a cause
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// Protocol reports a response that does not match the expected shape.
// summary is the remote errorSummary when the service supplied one.
func Protocol(summary string) *Error {
	return &Error{Type: ErrorTypeProtocol, Message: summary}
}

// UnknownConversation reports an id that the directory does not contain
func UnknownConversation(id string) *Error {
	return &Error{Type: ErrorTypeUnknownConversation, Message: fmt.Sprintf("conversation %q not found in directory", id)}
}

// MalformedInput reports an input dump file that cannot be decoded
func MalformedInput(path string, err error) *Error {
	return &Error{Type: ErrorTypeMalformedInput, Message: fmt.Sprintf("cannot decode %s", path), Err: err}
}

// Download reports a failed attachment transfer
func Download(url string, err error) *Error {
	return &Error{Type: ErrorTypeDownload, Message: url, Err: err}
}

// IsType reports whether err (or anything it wraps) is an *Error of type t
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsFatal checks if an error type ends the whole run.
// Download failures are recorded per request and never end a run on their own.
func IsFatal(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeProtocol, ErrorTypeUnknownConversation, ErrorTypeMalformedInput, ErrorTypeCredentials, ErrorTypeNetwork:
		return true
	case ErrorTypeDownload:
		return false
	default:
		return false
	}
}

// StatusError maps an unexpected HTTP status onto the error taxonomy
func StatusError(statusCode int, body string) *Error {
	switch {
	case statusCode == 401 || statusCode == 403:
		return &Error{Type: ErrorTypeCredentials, Message: "request rejected, request data may be expired", Code: statusCode}
	case statusCode >= 500:
		return &Error{Type: ErrorTypeNetwork, Message: fmt.Sprintf("server error: %s", body), Code: statusCode}
	default:
		return &Error{Type: ErrorTypeProtocol, Message: fmt.Sprintf("unexpected status: %s", body), Code: statusCode}
	}
}

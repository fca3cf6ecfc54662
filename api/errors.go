package api

import "fmt"

// Error codes carried in error documents.
const (
	ErrCodeInvalidMessage = "invalid_message"
	ErrCodeUnknownCommand = "unknown_command"
	ErrCodeInvalidFilter  = "invalid_filter"
	ErrCodeInternal       = "internal"
)

// Error is the error document sent to a client whose command could not be
// processed. It replaces the reply; the connection stays open.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError creates an error document with the given code and message.
func NewError(code, format string, args ...any) *Error {
	return &Error{
		Type:    TypeError,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code, so callers can
// match with errors.Is against a code-only sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

package capability

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Error codes for failures decided before an operation runs.
const (
	CodeUnsupportedOperation = "UNSUPPORTED_OPERATION"
	CodeEmptyPayload         = "EMPTY_PAYLOAD"
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeMissingField         = "MISSING_FIELD"
)

// Error is a structured error raised inside the action pipeline.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrorCode returns the machine-readable code carried by err: the AWS API error code,
// or the code of an *Error. It returns "" for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var capErr *Error
	if errors.As(err, &capErr) {
		return capErr.Code
	}
	return ""
}

// ErrorText returns the most specific human-readable text for err.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.ErrorMessage(); msg != "" {
			return apiErr.ErrorCode() + ": " + msg
		}
	}
	return err.Error()
}

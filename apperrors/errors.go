package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeNotFound         Code = "NOT_FOUND"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeInternal         Code = "INTERNAL"
	CodeUnavailable      Code = "UNAVAILABLE"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches on code and message so sentinel values survive wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error   { return New(CodeInvalidArgument, msg) }
func NotFound(msg string) error     { return New(CodeNotFound, msg) }
func Forbidden(msg string) error    { return New(CodePermissionDenied, msg) }
func Unauthorized(msg string) error { return New(CodeUnauthenticated, msg) }
func Internal(msg string) error     { return New(CodeInternal, msg) }

var (
	ErrNotParticipant        = Forbidden("you are not a participant in this conversation")
	ErrInvalidConversationID = InvalidArg("invalid conversation id")
	ErrUserNotFound          = NotFound("user not found")
	ErrStoreUnavailable      = New(CodeUnavailable, "message store unavailable")
)

// StoreFailure wraps a backend error so callers can tell "failed to save"
// apart from other failures.
func StoreFailure(cause error) error {
	return &AppError{Code: CodeUnavailable, Message: ErrStoreUnavailable.Error(), Cause: cause}
}

// CodeOf returns the code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus is the inverse of HTTPStatus for errors raised as plain HTTP
// statuses, e.g. by fiber itself.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusUpgradeRequired, http.StatusRequestEntityTooLarge:
		return CodeInvalidArgument
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusForbidden:
		return CodePermissionDenied
	case http.StatusUnauthorized:
		return CodeUnauthenticated
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	case http.StatusInternalServerError:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

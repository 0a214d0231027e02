package calendar

import (
	"errors"
	"net/http"
)

// Error kinds surfaced by the credential engine.
var (
	ErrUnsupportedProvider = errors.New("unsupported calendar provider")
	ErrMissingCode         = errors.New("authorization code not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrCredentialNotFound  = errors.New("calendar not found")
	ErrCacheNotFound       = errors.New("token cache not found")
	ErrAccountNotFound     = errors.New("account not found in token cache")
	ErrExchangeFailed      = errors.New("failed to connect to calendar provider")
	ErrRefreshFailed       = errors.New("failed to refresh token silently")
	ErrPersistenceFailed   = errors.New("failed to persist calendar credentials")
)

// ErrRecordNotFound is returned by stores on a point lookup miss.
var ErrRecordNotFound = errors.New("record not found")

// OpError ties an engine operation to an error kind and its underlying cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Cause returns the message of the underlying cause of an OpError, or the
// error's own message otherwise.
func Cause(err error) string {
	if err == nil {
		return ""
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		if opErr.Err != nil {
			return opErr.Err.Error()
		}
		return opErr.Kind.Error()
	}
	return err.Error()
}

// Message returns the user-facing message for an error: the kind for
// provider and lookup failures, the raw cause for persistence failures.
func Message(err error) string {
	var opErr *OpError
	if !errors.As(err, &opErr) {
		return err.Error()
	}
	if errors.Is(opErr.Kind, ErrPersistenceFailed) {
		return Cause(err)
	}
	return opErr.Kind.Error()
}

// HTTPStatus maps an error kind to the status used by JSON endpoints.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrCredentialNotFound),
		errors.Is(err, ErrCacheNotFound),
		errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPersistenceFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

package errs

import (
	"net/http"

	"github.com/pkg/errors"
)

// CodeError carries an HTTP status code alongside a stable, client-facing
// message. The taxonomy below is the complete set of failures a send or
// connect request can surface; anything else is an internal error.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`

	cause error
}

var (
	ErrAuthentication = New(http.StatusUnauthorized, "authentication required")
	ErrValidation     = New(http.StatusBadRequest, "invalid request")
	ErrUpload         = New(http.StatusBadGateway, "image upload failed")
	ErrPersistence    = New(http.StatusServiceUnavailable, "message store unavailable")
)

func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	if e.Detail != "" {
		return e.Msg + ": " + e.Detail
	}
	return e.Msg
}

func (e *CodeError) Unwrap() error { return e.cause }

// Is matches any CodeError carrying the same code, so wrapped instances
// produced by WithDetail/WithCause still compare equal to the sentinel.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	return ok && t.Code == e.Code
}

// WithDetail returns a copy with extra detail for the client.
func (e *CodeError) WithDetail(detail string) *CodeError {
	c := e.clone()
	if c.Detail == "" {
		c.Detail = detail
	} else {
		c.Detail = c.Detail + ", " + detail
	}
	return c
}

// WithCause returns a copy wrapping the underlying error. The cause is
// loggable via Unwrap but never serialized to the client.
func (e *CodeError) WithCause(err error) *CodeError {
	c := e.clone()
	c.cause = err
	return c
}

func (e *CodeError) clone() *CodeError {
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: e.Detail, cause: e.cause}
}

// AsCodeError extracts a CodeError from an error chain, or nil.
func AsCodeError(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

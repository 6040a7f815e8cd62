package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

var (
	// ErrUnauthenticated is returned when a request needed a session and the
	// session could not be kept alive.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrNoRefreshToken is returned by RefreshTokens when nothing is stored.
	ErrNoRefreshToken = errors.New("no refresh token")
)

// Codes used for failures that never reached the server.
const (
	CodeTimeout      = "TIMEOUT"
	CodeNetworkError = "NETWORK_ERROR"
)

// Error describes a failed API call. Status is zero for transport failures.
type Error struct {
	Status  int
	Code    string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStatus reports whether err is an *Error carrying the given HTTP status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}

func transportError(err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Code: CodeTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Code: CodeNetworkError, Message: err.Error(), Err: err}
}

// responseError builds an *Error from a non-2xx response. The server sends
// {"error","code","field"}; "message" is accepted as well.
func responseError(resp *http.Response) *Error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Code    string `json:"code"`
		Field   string `json:"field"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(raw, &body)

	e := &Error{Status: resp.StatusCode, Code: body.Code, Field: body.Field, Message: body.Error}
	if e.Message == "" {
		e.Message = body.Message
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	if e.Code == "" {
		e.Code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
	}
	return e
}

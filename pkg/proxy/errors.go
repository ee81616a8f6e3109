package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	// KindMissingParameter means the url query parameter was absent.
	KindMissingParameter ErrorKind = "MissingParameter"

	// KindHostNotAllowed means the target host is not BraceletBook.
	KindHostNotAllowed ErrorKind = "HostNotAllowed"

	// KindPathNotAllowed means the target is not a pattern.svg file.
	KindPathNotAllowed ErrorKind = "PathNotAllowed"

	// KindUpstreamError means BraceletBook answered with a non-2xx status.
	KindUpstreamError ErrorKind = "UpstreamError"

	// KindProxyError is the catch-all, malformed URLs included.
	KindProxyError ErrorKind = "ProxyError"
)

// Error is a pipeline failure with the status and message sent to the client.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (status %d): %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

var (
	errMissingParameter = &Error{
		Kind:    KindMissingParameter,
		Status:  http.StatusBadRequest,
		Message: "Missing url parameter",
	}

	errHostNotAllowed = &Error{
		Kind:    KindHostNotAllowed,
		Status:  http.StatusForbidden,
		Message: "Only braceletbook.com is allowed",
	}

	errPathNotAllowed = &Error{
		Kind:    KindPathNotAllowed,
		Status:  http.StatusForbidden,
		Message: "Only pattern.svg files are allowed",
	}
)

// upstreamError mirrors a non-2xx upstream status back to the client.
func upstreamError(status int) *Error {
	return &Error{
		Kind:    KindUpstreamError,
		Status:  status,
		Message: fmt.Sprintf("Failed to fetch from BraceletBook: %d", status),
	}
}

// asError maps any error onto the pipeline taxonomy. Anything that is not
// already an *Error becomes a 500 ProxyError carrying the error text.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{
		Kind:    KindProxyError,
		Status:  http.StatusInternalServerError,
		Message: "Proxy error: " + err.Error(),
		Err:     err,
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeJSONError writes {"error": message} with the error's status.
func writeJSONError(w http.ResponseWriter, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(errorBody{Error: e.Message})
}

// Package apperr classifies pipeline failures so the HTTP layer can map each
// one to a distinct status code and a machine-readable kind.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the class of a failure. The string value is what clients
// see in the "kind" field of an error response.
type Kind string

const (
	KindRequest       Kind = "RequestError"
	KindDecode        Kind = "DecodeError"
	KindStorage       Kind = "StorageError"
	KindLLM           Kind = "LlmRequestError"
	KindTimeout       Kind = "TimeoutError"
	KindConfiguration Kind = "ConfigurationError"
	KindInternal      Kind = "InternalError"
)

// Error is a classified failure. Op names the step that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// HTTPStatus maps the kind to the response status. An LLM failure caused by a
// deadline is reported as a gateway timeout.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindRequest, KindDecode:
		return http.StatusBadRequest
	case KindStorage:
		return http.StatusBadGateway
	case KindLLM:
		if errors.Is(e.Err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Request(op string, err error) error       { return newError(KindRequest, op, err) }
func Decode(op string, err error) error        { return newError(KindDecode, op, err) }
func Storage(op string, err error) error       { return newError(KindStorage, op, err) }
func LLM(op string, err error) error           { return newError(KindLLM, op, err) }
func Timeout(op string, err error) error       { return newError(KindTimeout, op, err) }
func Configuration(op string, err error) error { return newError(KindConfiguration, op, err) }

// KindOf returns the kind of the first classified error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

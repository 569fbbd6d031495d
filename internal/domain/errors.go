// Package domain provides shared domain-level sentinel errors and the
// backend error taxonomy surfaced to operators.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict.
var ErrConflict = errors.New("conflict: resource was modified by another request")

// ErrValidation indicates input rejected locally, before any network call.
var ErrValidation = errors.New("validation failed")

// ErrBusy is returned when a submission is attempted while another one is in flight.
var ErrBusy = errors.New("submission already in progress")

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	// KindServerValidation: the backend rejected the payload (400/422).
	KindServerValidation ErrorKind = iota + 1
	// KindNetwork: the request could not complete, no response was received.
	KindNetwork
	// KindServer: the backend reported an internal failure (5xx).
	KindServer
	// KindClient: any other 4xx (not found, permissions).
	KindClient
)

func (k ErrorKind) String() string {
	switch k {
	case KindServerValidation:
		return "server_validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// APIError is returned by backend adapters. Message carries the backend's
// message verbatim; Field names the first offending field when the backend
// says so and Fields holds every field-level message.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Field      string
	Fields     map[string]string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Kind == KindNetwork && e.Err != nil:
		return fmt.Sprintf("network error: %v", e.Err)
	case e.Field != "":
		return fmt.Sprintf("api error %d (%s): %s: %s", e.StatusCode, e.Kind, e.Field, e.Message)
	default:
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Kind, e.Message)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// NewNetworkError wraps a transport failure.
func NewNetworkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: err.Error(), Err: err}
}

// KindForStatus maps an HTTP status code onto the taxonomy.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 400 || status == 422:
		return KindServerValidation
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// AsAPIError is a convenience around errors.As.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// UserMessage renders err as the description shown in an error notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrBusy) {
		return "A submission is already in progress."
	}
	apiErr, ok := AsAPIError(err)
	if !ok {
		return err.Error()
	}
	switch apiErr.Kind {
	case KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case KindServer:
		return "The server failed to process the request."
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "Something went wrong."
	}
}

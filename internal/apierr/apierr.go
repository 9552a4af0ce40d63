// Package apierr carries the error-kind taxonomy the HTTP layer maps to
// status codes (see spec §7). Every exported error from pkg/docindex,
// pkg/peers, pkg/syncsvc and pkg/federation that should influence the
// status code returned to a client is wrapped with one of these kinds.
package apierr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds surfaced through the HTTP layer.
type Kind string

const (
	BadRequest      Kind = "bad-request"
	NotFound        Kind = "not-found"
	Forbidden       Kind = "forbidden"
	PeerOffline     Kind = "peer-offline"
	PeerTimeout     Kind = "peer-timeout"
	PeerUpstreamErr Kind = "peer-upstream-error"
	Internal        Kind = "internal"
)

// Error wraps an underlying error with a Kind the transport layer can
// use to pick an HTTP status code without string-matching error text.
type Error struct {
	Kind    Kind
	Status  int // only set for PeerUpstreamErr, where the upstream status passes through
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Upstream(status int, message string, err error) *Error {
	return &Error{Kind: PeerUpstreamErr, Status: status, Message: message, Err: err}
}

// As extracts an *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

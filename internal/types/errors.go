package types

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned before any upstream call is attempted when
// the provider API key is absent. It is a configuration error and is never
// retried automatically.
var ErrMissingCredential = errors.New("provider API key is not configured on the server")

// UpstreamError carries a non-success provider response. The raw body is kept
// for logging; handlers surface only a human-readable message to clients.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream provider returned status %d: %s", e.Status, e.Body)
}

// ProtocolError marks a local failure to parse provider or envelope data as
// the expected framing. Depending on the call site it is either skipped
// (tolerant line decoding) or fatal to the whole operation.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error in %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

package gateway

import (
	"fmt"
)

// TransportError means the management API could not be reached at all,
// including failures to obtain a token.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx answer from the management API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: management api http %d: %s", e.Op, e.StatusCode, e.Body)
}

package reconciler

import (
	"errors"
)

type Status int

const (
	Unchanged Status = iota
	Updated
	Failed
)

func (s Status) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	}
	return "unknown"
}

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrFetchFailed          = errors.New("fetch failed")
	ErrRequestRejected      = errors.New("request rejected")
	ErrVerificationMismatch = errors.New("post-update value mismatch")
	ErrUnexpected           = errors.New("unexpected error")
)

// Outcome is the result of a single reconciliation. Err is set only for
// Failed and always wraps one of the Err* classification errors.
type Outcome struct {
	Status   Status
	IP       string
	Previous string
	Err      error
}

func (o Outcome) Reason() string {
	for _, class := range []error{
		ErrInvalidInput,
		ErrFetchFailed,
		ErrRequestRejected,
		ErrVerificationMismatch,
		ErrUnexpected,
	} {
		if errors.Is(o.Err, class) {
			return class.Error()
		}
	}
	return ""
}

func (o Outcome) Succeeded() bool {
	return o.Status == Unchanged || o.Status == Updated
}

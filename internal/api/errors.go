package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by GetCandidate while the analysis is still running.
	ErrNotReady = errors.New("analysis not ready")
	// ErrUnexpectedStatus is returned for any status outside the documented contract.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrInvalidResult is returned when a result payload fails validation.
	ErrInvalidResult = errors.New("invalid analysis result")
	// ErrMissingCandidateID is returned when a submission is accepted without an id to poll.
	ErrMissingCandidateID = errors.New("server accepted the job without a candidate id")
)

// StatusError describes a response outside the accepted statuses.
// Message holds the server provided error text, if any.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Server error: %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

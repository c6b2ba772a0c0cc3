// Package remote defines the error kinds shared by every remote
// collaborator. A failure is either unavailability (transport problem, no
// decision was made) or an explicit rejection carrying the server's reason.
// Callers branch on the kind: unavailability invites a retry, a rejection
// does not.
package remote

import "github.com/go-faster/errors"

// ErrUnavailable indicates the collaborator could not be reached or did not
// produce a decision. Transient; the operation may be retried.
var ErrUnavailable = errors.New("backend unavailable")

// RejectedError is an explicit refusal from the collaborator. Message is the
// server's human-readable reason, suitable for display.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected"
	}
	return "request rejected: " + e.Message
}

// Reject builds a rejection with the server's message.
func Reject(message string) error {
	return &RejectedError{Message: message}
}

// Reason extracts the server's rejection message from err, or returns
// fallback when err carries no rejection.
func Reason(err error, fallback string) string {
	var rej *RejectedError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return fallback
}

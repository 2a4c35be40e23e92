// Package surface defines the boundary to the device agent that drives the
// phone. Everything behind it is best-effort and slow; callers bound every
// call with a context deadline.
package surface

import (
	"context"

	"jobdroid/internal/jobs"
)

// Confirmation is the agent's verdict on a submission attempt. Success must
// only be true when the agent positively confirmed the application went
// through; ambiguous reports map to false.
type Confirmation struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Message is a notification pulled from the applicant's mailbox.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// Agent executes high-level goals on the device and reports back structured
// results. Implementations translate free-form task reports into the types
// above; callers never see raw agent output.
type Agent interface {
	// Discover searches a job platform and returns the postings found.
	// An empty slice is a valid outcome.
	Discover(ctx context.Context, goal string) ([]*jobs.Posting, error)

	// Submit attempts a single application and reports whether the agent
	// confirmed completion.
	Submit(ctx context.Context, goal string) (*Confirmation, error)

	// FetchRecent pulls recent mailbox messages for classification.
	FetchRecent(ctx context.Context, goal string) ([]*Message, error)
}

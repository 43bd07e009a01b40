// Package dispatcher sends one rendered message for one queue item to the
// external delivery endpoint. It classifies outcomes and never retries;
// retry policy belongs to the orchestrator.
package dispatcher

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// FailureKind classifies an unsuccessful dispatch.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureNetwork FailureKind = "network" // timeout, connection error
	FailureStatus  FailureKind = "status"  // non-2xx response
)

// DispatchRequest carries one delivery attempt. Phone is the resolved
// destination (test-mode substitution happens at the call site, keeping the
// dispatcher destination-agnostic).
type DispatchRequest struct {
	ItemID     uuid.UUID
	CampaignID uuid.UUID
	Phone      string
	Message    string
	Timestamp  time.Time
}

// DispatchResult is the classified outcome of one attempt.
type DispatchResult struct {
	OK           bool
	StatusCode   int
	Failure      FailureKind
	ErrorMessage string
}

// Dispatcher issues a single outbound delivery with a bounded timeout.
type Dispatcher interface {
	Send(ctx context.Context, req DispatchRequest) (*DispatchResult, error)
	Name() string
}

package domain

import "errors"

var (
	// ErrNotFound is returned when a campaign, item, contact, or config row
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNoPendingItems is returned by ClaimNext when the queue holds no
	// claimable pending item for the campaign.
	ErrNoPendingItems = errors.New("no pending queue items")

	// ErrEmptyContactList rejects enqueue calls with nothing to schedule.
	ErrEmptyContactList = errors.New("contact list is empty")

	// ErrInvalidConfig rejects malformed sending configuration.
	ErrInvalidConfig = errors.New("invalid sending config")

	// ErrInvalidTransition is returned when an operator action is not legal
	// in the campaign's current status.
	ErrInvalidTransition = errors.New("invalid campaign status transition")
)

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxLifetimeAttempts caps dispatch attempts per contact across all
// campaigns targeting it. Contacts at the ceiling are excluded at enqueue
// time; the counter lives on the contact, not on any queue item.
const MaxLifetimeAttempts = 3

// ContactInput is what the contact-list collaborator supplies per recipient.
// Phone is an opaque, already-normalized digit string; Payload is owned by
// the caller and read-only to the scheduler.
type ContactInput struct {
	Phone   string            `json:"phone"`
	Name    string            `json:"name"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Contact is the account-scoped recipient record carrying the lifetime
// attempt counter.
type Contact struct {
	ID           uuid.UUID `json:"id"`
	AccountID    uuid.UUID `json:"account_id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name"`
	AttemptCount int       `json:"attempt_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

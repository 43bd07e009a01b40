package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// QueueItemStatus represents the lifecycle state of one delivery task.
type QueueItemStatus string

const (
	ItemPending   QueueItemStatus = "pending"
	ItemSent      QueueItemStatus = "sent"
	ItemError     QueueItemStatus = "error"
	ItemPaused    QueueItemStatus = "paused"
	ItemSkipped   QueueItemStatus = "skipped"
	ItemCancelled QueueItemStatus = "cancelled"
)

// IsTerminal reports whether a status transition mark must be a no-op.
// Terminal items are kept for audit and never deleted while the campaign lives.
func (s QueueItemStatus) IsTerminal() bool {
	switch s {
	case ItemSent, ItemError, ItemSkipped, ItemCancelled:
		return true
	}
	return false
}

// Skip reasons recorded by the duplicate-guard protocol.
const (
	SkipReasonAlreadyProcessed = "already_processed"
	SkipReasonDuplicate        = "duplicate"
)

// QueueItem is one scheduled delivery task for one contact within one
// campaign. ScheduledFor is advisory pacing data; actual throughput is
// enforced by the rate/window gate at dispatch time, and items are claimed
// FIFO by creation order. ClaimedAt marks an in-flight claim; the row lock
// plus the conditional update in ClaimNext guarantee a single claimer.
type QueueItem struct {
	ID             uuid.UUID         `json:"id"`
	CampaignID     uuid.UUID         `json:"campaign_id"`
	ContactPhone   string            `json:"contact_phone"`
	ContactName    string            `json:"contact_name"`
	ContactPayload map[string]string `json:"contact_payload,omitempty"`
	Status         QueueItemStatus   `json:"status"`
	ScheduledFor   time.Time         `json:"scheduled_for"`
	ClaimedAt      sql.NullTime      `json:"claimed_at,omitempty"`
	ErrorMessage   sql.NullString    `json:"error_message,omitempty"`
	SentAt         sql.NullTime      `json:"sent_at,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// NewQueueItem builds a pending item for one contact.
func NewQueueItem(campaignID uuid.UUID, contact ContactInput, scheduledFor time.Time) *QueueItem {
	return &QueueItem{
		ID:             uuid.New(),
		CampaignID:     campaignID,
		ContactPhone:   contact.Phone,
		ContactName:    contact.Name,
		ContactPayload: contact.Payload,
		Status:         ItemPending,
		ScheduledFor:   scheduledFor,
		CreatedAt:      time.Now().UTC(),
	}
}

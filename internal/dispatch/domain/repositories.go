package domain

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CampaignRepository persists campaign aggregates. Counter updates are
// atomic at the storage layer (SET sent = sent + 1, not read-modify-write).
type CampaignRepository interface {
	Create(ctx context.Context, c *Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	ListByStatus(ctx context.Context, status CampaignStatus) ([]*Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status CampaignStatus, message sql.NullString) error
	// SetAutoResume schedules an automatic resume for an auto-paused
	// campaign. Any subsequent status change clears the marker.
	SetAutoResume(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListDueForResume returns paused campaigns whose auto resume time is at
	// or before the given instant.
	ListDueForResume(ctx context.Context, before time.Time) ([]*Campaign, error)
	UpdateSendInterval(ctx context.Context, id uuid.UUID, intervalSeconds int, randomize bool) error
	AddToTotal(ctx context.Context, id uuid.UUID, delta int) error
	IncrementSent(ctx context.Context, id uuid.UUID) error
	IncrementFailed(ctx context.Context, id uuid.UUID) error
}

// QueueItemRepository is the durable ordered queue of delivery tasks.
type QueueItemRepository interface {
	// EnqueueBatch inserts pending items inside one transaction and returns
	// the number inserted.
	EnqueueBatch(ctx context.Context, items []*QueueItem) (int, error)

	// ClaimNext atomically hands the oldest pending item (creation order) to
	// exactly one caller. Claims older than staleBefore are considered
	// abandoned and become claimable again. Returns ErrNoPendingItems when
	// the queue is exhausted.
	ClaimNext(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) (*QueueItem, error)

	GetByID(ctx context.Context, id uuid.UUID) (*QueueItem, error)

	// HasSent reports whether any item for (campaignID, phone) other than
	// excludeItem has reached status sent. Pass uuid.Nil to exclude nothing.
	HasSent(ctx context.Context, campaignID uuid.UUID, phone string, excludeItem uuid.UUID) (bool, error)

	// Status marks are idempotent: a no-op when the item is already terminal.
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkError(ctx context.Context, id uuid.UUID, message string) error
	MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error

	MarkPausedBatch(ctx context.Context, campaignID uuid.UUID) (int64, error)
	MarkCancelledBatch(ctx context.Context, campaignID uuid.UUID) (int64, error)
	// MarkPendingBatch returns paused items to pending after a resume
	// reschedule.
	MarkPendingBatch(ctx context.Context, campaignID uuid.UUID) (int64, error)

	Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error
	// ListByStatus returns items ordered by creation time, or by current
	// scheduled_for when byScheduledFor is set (AdjustSpeed ordering).
	ListByStatus(ctx context.Context, campaignID uuid.UUID, status QueueItemStatus, byScheduledFor bool) ([]*QueueItem, error)
	CountByStatus(ctx context.Context, campaignID uuid.UUID, status QueueItemStatus) (int, error)
	StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[QueueItemStatus]int, error)
}

// ContactRepository owns the lifetime attempt counters consulted before a
// contact is ever (re-)enqueued.
type ContactRepository interface {
	AttemptCounts(ctx context.Context, accountID uuid.UUID, phones []string) (map[string]int, error)
	IncrementAttempt(ctx context.Context, accountID uuid.UUID, phone, name string) error
}

// SendingConfigRepository reads the per-account throughput policy; returns
// ErrNotFound when the account has no row (callers fall back to defaults).
type SendingConfigRepository interface {
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*SendingConfig, error)
}

// DispatchLogRepository appends audit records of dispatch attempts.
type DispatchLogRepository interface {
	Append(ctx context.Context, entry *DispatchLog) error
}

// TemplateRepository resolves message template bodies.
type TemplateRepository interface {
	GetBody(ctx context.Context, id uuid.UUID) (string, error)
}

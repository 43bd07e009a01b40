package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

const queueItemColumns = `id, campaign_id, contact_phone, contact_name, contact_payload,
       status, scheduled_for, claimed_at, error_message, sent_at, created_at`

// Statuses a mark may still transition away from. Marks against terminal
// rows are idempotent no-ops.
const nonTerminalStatuses = `('pending', 'paused')`

// PgQueueItemRepository implements domain.QueueItemRepository on
// PostgreSQL. ClaimNext is the single concurrency-critical operation in the
// system: it combines a locked read with a conditional update so two
// concurrent callers can never receive the same item.
type PgQueueItemRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewPgQueueItemRepository(db DBPool, logger *slog.Logger) *PgQueueItemRepository {
	return &PgQueueItemRepository{db: db, logger: logger.With("repository", "queue_items")}
}

func (r *PgQueueItemRepository) EnqueueBatch(ctx context.Context, items []*domain.QueueItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin enqueue batch: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO queue_items (id, campaign_id, contact_phone, contact_name, contact_payload,
		                         status, scheduled_for, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	inserted := 0
	for _, item := range items {
		payload, err := marshalPayload(item.ContactPayload)
		if err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, query,
			item.ID, item.CampaignID, item.ContactPhone, item.ContactName, payload,
			item.Status, item.ScheduledFor, item.CreatedAt,
		); err != nil {
			return 0, fmt.Errorf("insert queue item %s: %w", item.ID, err)
		}
		inserted++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit enqueue batch: %w", err)
	}
	return inserted, nil
}

// ClaimNext hands out the oldest pending item by creation order. The CTE
// takes a row lock with SKIP LOCKED so concurrent claimers pick different
// rows, and the update re-checks status and the claim marker, so a claim is
// handed out exactly once until it goes stale. Status stays pending; the
// orchestrator's duplicate guard re-reads it before dispatch.
func (r *PgQueueItemRepository) ClaimNext(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) (*domain.QueueItem, error) {
	query := `
		WITH next_item AS (
			SELECT id
			FROM queue_items
			WHERE campaign_id = $1
			  AND status = 'pending'
			  AND (claimed_at IS NULL OR claimed_at < $2)
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_items qi
		SET claimed_at = $3
		FROM next_item
		WHERE qi.id = next_item.id
		  AND qi.status = 'pending'
		  AND (qi.claimed_at IS NULL OR qi.claimed_at < $2)
		RETURNING ` + qualifiedColumns("qi")

	item, err := scanQueueItem(r.db.QueryRow(ctx, query, campaignID, staleBefore, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoPendingItems
		}
		r.logger.ErrorContext(ctx, "failed to claim next queue item", "campaign_id", campaignID, "error", err)
		return nil, fmt.Errorf("claim next queue item: %w", err)
	}
	return item, nil
}

func (r *PgQueueItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE id = $1`
	item, err := scanQueueItem(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

func (r *PgQueueItemRepository) HasSent(ctx context.Context, campaignID uuid.UUID, phone string, excludeItem uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM queue_items
			WHERE campaign_id = $1 AND contact_phone = $2 AND status = 'sent' AND id <> $3
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, campaignID, phone, excludeItem).Scan(&exists); err != nil {
		return false, fmt.Errorf("check sent duplicate: %w", err)
	}
	return exists, nil
}

func (r *PgQueueItemRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE queue_items
		SET status = 'sent', sent_at = $1, claimed_at = NULL, error_message = NULL
		WHERE id = $2 AND status IN ` + nonTerminalStatuses
	return r.mark(ctx, id, "sent", query, at, id)
}

func (r *PgQueueItemRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE queue_items
		SET status = 'error', error_message = $1, claimed_at = NULL
		WHERE id = $2 AND status IN ` + nonTerminalStatuses
	return r.mark(ctx, id, "error", query, message, id)
}

func (r *PgQueueItemRepository) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE queue_items
		SET status = 'skipped', error_message = $1, claimed_at = NULL
		WHERE id = $2 AND status IN ` + nonTerminalStatuses
	return r.mark(ctx, id, "skipped", query, reason, id)
}

func (r *PgQueueItemRepository) mark(ctx context.Context, id uuid.UUID, status, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to mark queue item", "item_id", id, "target_status", status, "error", err)
		return fmt.Errorf("mark queue item %s: %w", status, err)
	}
	if tag.RowsAffected() == 0 {
		// Already terminal; the transition is an idempotent no-op.
		r.logger.DebugContext(ctx, "queue item mark was a no-op", "item_id", id, "target_status", status)
	}
	return nil
}

func (r *PgQueueItemRepository) MarkPausedBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	query := `UPDATE queue_items SET status = 'paused', claimed_at = NULL WHERE campaign_id = $1 AND status = 'pending'`
	tag, err := r.db.Exec(ctx, query, campaignID)
	if err != nil {
		return 0, fmt.Errorf("pause queue items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgQueueItemRepository) MarkCancelledBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	query := `UPDATE queue_items SET status = 'cancelled', claimed_at = NULL WHERE campaign_id = $1 AND status IN ('pending', 'paused')`
	tag, err := r.db.Exec(ctx, query, campaignID)
	if err != nil {
		return 0, fmt.Errorf("cancel queue items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgQueueItemRepository) MarkPendingBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	query := `UPDATE queue_items SET status = 'pending', claimed_at = NULL WHERE campaign_id = $1 AND status = 'paused'`
	tag, err := r.db.Exec(ctx, query, campaignID)
	if err != nil {
		return 0, fmt.Errorf("unpause queue items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgQueueItemRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	query := `UPDATE queue_items SET scheduled_for = $1 WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, scheduledFor, id)
	if err != nil {
		return fmt.Errorf("reschedule queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgQueueItemRepository) ListByStatus(ctx context.Context, campaignID uuid.UUID, status domain.QueueItemStatus, byScheduledFor bool) ([]*domain.QueueItem, error) {
	order := "created_at ASC, id ASC"
	if byScheduledFor {
		order = "scheduled_for ASC, id ASC"
	}
	query := `SELECT ` + queueItemColumns + ` FROM queue_items WHERE campaign_id = $1 AND status = $2 ORDER BY ` + order
	rows, err := r.db.Query(ctx, query, campaignID, status)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*domain.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PgQueueItemRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID, status domain.QueueItemStatus) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM queue_items WHERE campaign_id = $1 AND status = $2`
	if err := r.db.QueryRow(ctx, query, campaignID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("count queue items: %w", err)
	}
	return count, nil
}

func (r *PgQueueItemRepository) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.QueueItemStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM queue_items WHERE campaign_id = $1 GROUP BY status`
	rows, err := r.db.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count queue items by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.QueueItemStatus]int)
	for rows.Next() {
		var status domain.QueueItemStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func qualifiedColumns(alias string) string {
	return alias + `.id, ` + alias + `.campaign_id, ` + alias + `.contact_phone, ` + alias + `.contact_name, ` +
		alias + `.contact_payload, ` + alias + `.status, ` + alias + `.scheduled_for, ` + alias + `.claimed_at, ` +
		alias + `.error_message, ` + alias + `.sent_at, ` + alias + `.created_at`
}

func marshalPayload(payload map[string]string) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal contact payload: %w", err)
	}
	return data, nil
}

func scanQueueItem(row pgx.Row) (*domain.QueueItem, error) {
	item := &domain.QueueItem{}
	var payload []byte
	err := row.Scan(
		&item.ID, &item.CampaignID, &item.ContactPhone, &item.ContactName, &payload,
		&item.Status, &item.ScheduledFor, &item.ClaimedAt, &item.ErrorMessage, &item.SentAt, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &item.ContactPayload); err != nil {
			return nil, fmt.Errorf("unmarshal contact payload: %w", err)
		}
	}
	return item, nil
}

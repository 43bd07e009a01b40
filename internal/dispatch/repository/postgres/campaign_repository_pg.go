package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

const campaignColumns = `id, account_id, name, template_id, contact_list_id, status, status_message,
       auto_resume_at, sent, failed, total, send_interval_seconds, randomize_interval, is_test_mode,
       created_at, updated_at`

// PgCampaignRepository implements domain.CampaignRepository on PostgreSQL.
type PgCampaignRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewPgCampaignRepository(db DBPool, logger *slog.Logger) *PgCampaignRepository {
	return &PgCampaignRepository{db: db, logger: logger.With("repository", "campaigns")}
}

func (r *PgCampaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (id, account_id, name, template_id, contact_list_id, status, status_message,
		                       auto_resume_at, sent, failed, total, send_interval_seconds, randomize_interval,
		                       is_test_mode, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.db.Exec(ctx, query,
		c.ID, c.AccountID, c.Name, c.TemplateID, c.ContactListID, c.Status, c.StatusMessage,
		c.AutoResumeAt, c.Sent, c.Failed, c.Total, c.SendIntervalSeconds, c.RandomizeInterval, c.IsTestMode,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to create campaign", "campaign_id", c.ID, "error", err)
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := row.Scan(
		&c.ID, &c.AccountID, &c.Name, &c.TemplateID, &c.ContactListID, &c.Status, &c.StatusMessage,
		&c.AutoResumeAt, &c.Sent, &c.Failed, &c.Total, &c.SendIntervalSeconds, &c.RandomizeInterval,
		&c.IsTestMode, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PgCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	c, err := scanCampaign(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *PgCampaignRepository) ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = $1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list campaigns by status: %w", err)
	}
	defer rows.Close()

	var campaigns []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateStatus also clears any scheduled auto resume: an explicit status
// change supersedes the gate's pending resumption.
func (r *PgCampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, message sql.NullString) error {
	query := `UPDATE campaigns SET status = $1, status_message = $2, auto_resume_at = NULL, updated_at = $3 WHERE id = $4`
	tag, err := r.db.Exec(ctx, query, status, message, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to update campaign status", "campaign_id", id, "status", status, "error", err)
		return fmt.Errorf("update campaign status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) SetAutoResume(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE campaigns SET auto_resume_at = $1, updated_at = $2 WHERE id = $3 AND status = 'paused'`
	tag, err := r.db.Exec(ctx, query, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set campaign auto resume: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) ListDueForResume(ctx context.Context, before time.Time) ([]*domain.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'paused' AND auto_resume_at IS NOT NULL AND auto_resume_at <= $1
		ORDER BY auto_resume_at ASC`
	rows, err := r.db.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list campaigns due for resume: %w", err)
	}
	defer rows.Close()

	var campaigns []*domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func (r *PgCampaignRepository) UpdateSendInterval(ctx context.Context, id uuid.UUID, intervalSeconds int, randomize bool) error {
	query := `UPDATE campaigns SET send_interval_seconds = $1, randomize_interval = $2, updated_at = $3 WHERE id = $4`
	tag, err := r.db.Exec(ctx, query, intervalSeconds, randomize, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update campaign send interval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgCampaignRepository) AddToTotal(ctx context.Context, id uuid.UUID, delta int) error {
	query := `UPDATE campaigns SET total = total + $1, updated_at = $2 WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, delta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update campaign total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Counter bumps are atomic adds in SQL, never read-modify-write.
func (r *PgCampaignRepository) IncrementSent(ctx context.Context, id uuid.UUID) error {
	return r.incrementCounter(ctx, id, "sent")
}

func (r *PgCampaignRepository) IncrementFailed(ctx context.Context, id uuid.UUID) error {
	return r.incrementCounter(ctx, id, "failed")
}

func (r *PgCampaignRepository) incrementCounter(ctx context.Context, id uuid.UUID, column string) error {
	// column is one of two compile-time constants, never user input.
	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = $1 WHERE id = $2`, column, column)
	tag, err := r.db.Exec(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("increment campaign %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

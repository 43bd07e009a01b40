package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// PgDispatchLogRepository appends audit records, one per dispatch attempt.
type PgDispatchLogRepository struct {
	db DBPool
}

func NewPgDispatchLogRepository(db DBPool) *PgDispatchLogRepository {
	return &PgDispatchLogRepository{db: db}
}

func (r *PgDispatchLogRepository) Append(ctx context.Context, entry *domain.DispatchLog) error {
	query := `
		INSERT INTO dispatch_logs (id, campaign_id, item_id, phone, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.CampaignID, entry.ItemID, entry.Phone, entry.Outcome, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append dispatch log: %w", err)
	}
	return nil
}

// PgTemplateRepository resolves message template bodies.
type PgTemplateRepository struct {
	db DBPool
}

func NewPgTemplateRepository(db DBPool) *PgTemplateRepository {
	return &PgTemplateRepository{db: db}
}

func (r *PgTemplateRepository) GetBody(ctx context.Context, id uuid.UUID) (string, error) {
	var body string
	err := r.db.QueryRow(ctx, `SELECT body FROM templates WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get template body: %w", err)
	}
	return body, nil
}

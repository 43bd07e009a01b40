package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// PgSendingConfigRepository reads per-account throughput policy rows.
// Writes happen through account settings management, outside this service.
type PgSendingConfigRepository struct {
	db DBPool
}

func NewPgSendingConfigRepository(db DBPool) *PgSendingConfigRepository {
	return &PgSendingConfigRepository{db: db}
}

func (r *PgSendingConfigRepository) GetByAccount(ctx context.Context, accountID uuid.UUID) (*domain.SendingConfig, error) {
	query := `
		SELECT base_interval_seconds, randomize, hourly_cap, daily_cap,
		       allowed_start, allowed_end, allowed_days, auto_pause_on_limit
		FROM sending_configs WHERE account_id = $1
	`
	cfg := &domain.SendingConfig{}
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&cfg.BaseIntervalSeconds, &cfg.Randomize, &cfg.HourlyCap, &cfg.DailyCap,
		&cfg.AllowedStart, &cfg.AllowedEnd, &cfg.AllowedDays, &cfg.AutoPauseOnLimit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get sending config: %w", err)
	}
	return cfg, nil
}

package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PgContactRepository owns contact rows and their lifetime attempt
// counters.
type PgContactRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewPgContactRepository(db DBPool, logger *slog.Logger) *PgContactRepository {
	return &PgContactRepository{db: db, logger: logger.With("repository", "contacts")}
}

func (r *PgContactRepository) AttemptCounts(ctx context.Context, accountID uuid.UUID, phones []string) (map[string]int, error) {
	counts := make(map[string]int, len(phones))
	if len(phones) == 0 {
		return counts, nil
	}
	query := `SELECT phone, attempt_count FROM contacts WHERE account_id = $1 AND phone = ANY($2)`
	rows, err := r.db.Query(ctx, query, accountID, phones)
	if err != nil {
		return nil, fmt.Errorf("load contact attempt counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var phone string
		var count int
		if err := rows.Scan(&phone, &count); err != nil {
			return nil, fmt.Errorf("scan attempt count: %w", err)
		}
		counts[phone] = count
	}
	return counts, rows.Err()
}

// IncrementAttempt bumps the lifetime counter on every dispatch attempt
// regardless of outcome. The upsert keeps the counter correct for contacts
// the account has not stored yet.
func (r *PgContactRepository) IncrementAttempt(ctx context.Context, accountID uuid.UUID, phone, name string) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO contacts (id, account_id, phone, name, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (account_id, phone)
		DO UPDATE SET attempt_count = contacts.attempt_count + 1, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Exec(ctx, query, uuid.New(), accountID, phone, name, now); err != nil {
		r.logger.ErrorContext(ctx, "failed to increment contact attempt", "account_id", accountID, "error", err)
		return fmt.Errorf("increment contact attempt: %w", err)
	}
	return nil
}

// Package ratelimit tracks per-account send counters in Redis. Hour and day
// buckets are plain keys incremented with INCR, the storage-level atomic add
// the counters require under concurrent campaigns for the same account.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

const (
	hourBucketLayout = "2006-01-02-15"
	dayBucketLayout  = "2006-01-02"

	// Buckets outlive their window by enough for late reads, then expire.
	hourBucketTTL = 2 * time.Hour
	dayBucketTTL  = 48 * time.Hour
)

// RedisTracker implements domain.RateTracker over a Redis client.
type RedisTracker struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewRedisTracker(client *redis.Client, logger *slog.Logger) *RedisTracker {
	return &RedisTracker{
		client: client,
		logger: logger.With("component", "rate_tracker"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the tracker's clock. Test hook.
func (t *RedisTracker) WithClock(now func() time.Time) *RedisTracker {
	t.now = now
	return t
}

func hourKey(accountID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("rate:%s:%s", accountID, at.Format(hourBucketLayout))
}

func dayKey(accountID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("rate:%s:%s", accountID, at.Format(dayBucketLayout))
}

// CheckLimits reads the current hour and day buckets (missing buckets read
// as zero) and evaluates them against the given caps.
func (t *RedisTracker) CheckLimits(ctx context.Context, accountID uuid.UUID, hourlyCap, dailyCap int) (*domain.RateUsage, error) {
	at := t.now()
	vals, err := t.client.MGet(ctx, hourKey(accountID, at), dayKey(accountID, at)).Result()
	if err != nil {
		return nil, fmt.Errorf("read rate buckets: %w", err)
	}

	hourly := parseCount(vals[0])
	daily := parseCount(vals[1])

	usage := &domain.RateUsage{
		HourlyCount:        hourly,
		DailyCount:         daily,
		HourlyRemaining:    max64(int64(hourlyCap)-hourly, 0),
		DailyRemaining:     max64(int64(dailyCap)-daily, 0),
		HourlyLimitReached: hourly >= int64(hourlyCap),
		DailyLimitReached:  daily >= int64(dailyCap),
	}
	return usage, nil
}

// Increment atomically bumps both the current hour bucket and the running
// daily total. Called exactly once per confirmed successful dispatch, never
// before the attempt.
func (t *RedisTracker) Increment(ctx context.Context, accountID uuid.UUID) error {
	at := t.now()
	hk := hourKey(accountID, at)
	dk := dayKey(accountID, at)

	pipe := t.client.TxPipeline()
	hourIncr := pipe.Incr(ctx, hk)
	dayIncr := pipe.Incr(ctx, dk)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment rate buckets: %w", err)
	}

	// First write in a bucket sets its TTL.
	if hourIncr.Val() == 1 {
		if err := t.client.Expire(ctx, hk, hourBucketTTL).Err(); err != nil {
			t.logger.WarnContext(ctx, "failed to set hour bucket ttl", "key", hk, "error", err)
		}
	}
	if dayIncr.Val() == 1 {
		if err := t.client.Expire(ctx, dk, dayBucketTTL).Err(); err != nil {
			t.logger.WarnContext(ctx, "failed to set day bucket ttl", "key", dk, "error", err)
		}
	}
	return nil
}

// ResetHourly zeroes the current hour bucket only, leaving the daily total
// intact. Administrative operation for forcing resumption before the hour
// rolls over.
func (t *RedisTracker) ResetHourly(ctx context.Context, accountID uuid.UUID) error {
	if err := t.client.Del(ctx, hourKey(accountID, t.now())).Err(); err != nil {
		return fmt.Errorf("reset hourly bucket: %w", err)
	}
	return nil
}

func parseCount(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

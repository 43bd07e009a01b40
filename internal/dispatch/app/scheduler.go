// Package app orchestrates campaign dispatch: queue construction, the
// single-step ProcessNext state machine, operator controls, and the polling
// driver.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leadpilot/golang_services/internal/dispatch/dispatcher"
	"github.com/leadpilot/golang_services/internal/dispatch/domain"
	"github.com/leadpilot/golang_services/internal/dispatch/render"
	"github.com/leadpilot/golang_services/internal/dispatch/schedule"
)

// StepOutcome tells the driver what a ProcessNext call did and whether
// calling again makes sense.
type StepOutcome string

const (
	OutcomeSent      StepOutcome = "sent"
	OutcomeError     StepOutcome = "error"
	OutcomeSkipped   StepOutcome = "skipped"
	OutcomeDone      StepOutcome = "done"
	OutcomePaused    StepOutcome = "paused"
	OutcomeNotActive StepOutcome = "not_active"
)

// Gate pause reasons.
const (
	ReasonHourlyLimit  = "hourly_limit"
	ReasonDailyLimit   = "daily_limit"
	ReasonOutsideHours = "outside_hours"
)

// StepResult is what one ProcessNext call reports back to its driver.
type StepResult struct {
	Outcome   StepOutcome `json:"outcome"`
	Reason    string      `json:"reason,omitempty"`
	ItemID    uuid.UUID   `json:"item_id,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	ResumeAt  *time.Time  `json:"resume_at,omitempty"`
	NextDelay time.Duration `json:"-"` // advisory pacing hint after a send
}

// EnqueueResult summarizes one QueueCampaign call.
type EnqueueResult struct {
	Scheduled           int `json:"scheduled"`
	SkippedAttemptLimit int `json:"skipped_attempt_limit"`
	SkippedDuplicate    int `json:"skipped_duplicate"`
}

// ReportPublisher pushes delivery reports to the message broker.
// Publishing is best-effort; a broker outage never fails a step.
type ReportPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// SchedulerDeps wires the scheduler's collaborators.
type SchedulerDeps struct {
	Campaigns  domain.CampaignRepository
	Queue      domain.QueueItemRepository
	Contacts   domain.ContactRepository
	Configs    domain.SendingConfigRepository
	Logs       domain.DispatchLogRepository
	Rates      domain.RateTracker
	Dispatcher dispatcher.Dispatcher
	Renderer   render.Renderer
	Publisher  ReportPublisher
	Calculator *schedule.Calculator
	Logger     *slog.Logger

	// DefaultConfig backs accounts without a sending_configs row.
	DefaultConfig domain.SendingConfig
	// TestDestination receives every send of a test-mode campaign.
	TestDestination string
	// ClaimStaleAfter re-eligibilizes claims abandoned by crashed drivers.
	ClaimStaleAfter time.Duration
}

// CampaignScheduler advances campaigns one queue item at a time. Every
// method is safe under concurrent callers: cross-call coordination happens
// through the queue store's atomic claim, never in-memory locks.
type CampaignScheduler struct {
	deps SchedulerDeps
	log  *slog.Logger
	now  func() time.Time
}

func NewCampaignScheduler(deps SchedulerDeps) *CampaignScheduler {
	if deps.ClaimStaleAfter <= 0 {
		deps.ClaimStaleAfter = 5 * time.Minute
	}
	return &CampaignScheduler{
		deps: deps,
		log:  deps.Logger.With("component", "campaign_scheduler"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the scheduler's clock. Test hook.
func (s *CampaignScheduler) WithClock(now func() time.Time) *CampaignScheduler {
	s.now = now
	return s
}

func (s *CampaignScheduler) configFor(ctx context.Context, accountID uuid.UUID) (*domain.SendingConfig, error) {
	cfg, err := s.deps.Configs.GetByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			defaults := s.deps.DefaultConfig
			return &defaults, nil
		}
		return nil, fmt.Errorf("load sending config: %w", err)
	}
	return cfg, nil
}

// CreateCampaign registers a new draft campaign.
func (s *CampaignScheduler) CreateCampaign(ctx context.Context, accountID, templateID, contactListID uuid.UUID, name string, intervalSeconds int, randomize, testMode bool) (*domain.Campaign, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", domain.ErrInvalidConfig)
	}
	campaign := domain.NewCampaign(accountID, templateID, contactListID, name, intervalSeconds, randomize, testMode)
	if err := s.deps.Campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "campaign created", "campaign_id", campaign.ID, "account_id", accountID, "name", name)
	return campaign, nil
}

// QueueCampaign turns a contact list into pending queue items. Contacts at
// the lifetime attempt ceiling and phones already sent for this campaign are
// filtered out before anything is persisted; validation failures persist
// nothing.
func (s *CampaignScheduler) QueueCampaign(ctx context.Context, campaignID uuid.UUID, contacts []domain.ContactInput) (*EnqueueResult, error) {
	if len(contacts) == 0 {
		return nil, domain.ErrEmptyContactList
	}
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignDraft && campaign.Status != domain.CampaignScheduled {
		return nil, fmt.Errorf("%w: cannot queue campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}

	cfg, err := s.configFor(ctx, campaign.AccountID)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	phones := make([]string, 0, len(contacts))
	for _, c := range contacts {
		phones = append(phones, c.Phone)
	}
	attempts, err := s.deps.Contacts.AttemptCounts(ctx, campaign.AccountID, phones)
	if err != nil {
		return nil, err
	}

	result := &EnqueueResult{}
	eligible := make([]domain.ContactInput, 0, len(contacts))
	for _, c := range contacts {
		if attempts[c.Phone] >= domain.MaxLifetimeAttempts {
			result.SkippedAttemptLimit++
			continue
		}
		sent, err := s.deps.Queue.HasSent(ctx, campaignID, c.Phone, uuid.Nil)
		if err != nil {
			return nil, err
		}
		if sent {
			result.SkippedDuplicate++
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) > 0 {
		times := s.deps.Calculator.Plan(len(eligible), campaign.SendIntervalSeconds, campaign.RandomizeInterval, cfg, s.now())
		items := make([]*domain.QueueItem, len(eligible))
		for i, c := range eligible {
			items[i] = domain.NewQueueItem(campaignID, c, times[i])
		}
		inserted, err := s.deps.Queue.EnqueueBatch(ctx, items)
		if err != nil {
			return nil, err
		}
		result.Scheduled = inserted
		if err := s.deps.Campaigns.AddToTotal(ctx, campaignID, inserted); err != nil {
			return nil, err
		}
	}

	if campaign.Status == domain.CampaignDraft {
		if err := s.deps.Campaigns.UpdateStatus(ctx, campaignID, domain.CampaignScheduled, sql.NullString{}); err != nil {
			return nil, err
		}
	}

	s.log.InfoContext(ctx, "campaign queued",
		"campaign_id", campaignID, "scheduled", result.Scheduled,
		"skipped_attempt_limit", result.SkippedAttemptLimit, "skipped_duplicate", result.SkippedDuplicate)
	return result, nil
}

// Start moves a scheduled campaign into sending.
func (s *CampaignScheduler) Start(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignScheduled {
		return nil, fmt.Errorf("%w: cannot start campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}
	if err := s.deps.Campaigns.UpdateStatus(ctx, campaignID, domain.CampaignSending, sql.NullString{}); err != nil {
		return nil, err
	}
	campaign.Status = domain.CampaignSending
	return campaign, nil
}

// ProcessNext advances the campaign by at most one queue item: gate check,
// claim, duplicate guard, dispatch, record. Idempotent and safe for
// concurrent drivers; each call re-reads campaign state, so Pause and
// Cancel are visible to the next step.
func (s *CampaignScheduler) ProcessNext(ctx context.Context, campaignID uuid.UUID) (*StepResult, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignSending {
		return s.finishStep(&StepResult{Outcome: OutcomeNotActive, Reason: string(campaign.Status)}), nil
	}

	cfg, err := s.configFor(ctx, campaign.AccountID)
	if err != nil {
		return nil, err
	}

	// The rate/window gate runs before the claim so a gated step never
	// strands a claimed item.
	if gated, err := s.checkGates(ctx, campaign, cfg); err != nil {
		return nil, err
	} else if gated != nil {
		return s.finishStep(gated), nil
	}

	now := s.now()
	item, err := s.deps.Queue.ClaimNext(ctx, campaignID, now, now.Add(-s.deps.ClaimStaleAfter))
	if err != nil {
		if errors.Is(err, domain.ErrNoPendingItems) {
			if err := s.deps.Campaigns.UpdateStatus(ctx, campaignID, domain.CampaignCompleted, sql.NullString{}); err != nil {
				return nil, err
			}
			campaignsCompletedCounter.Inc()
			s.log.InfoContext(ctx, "campaign completed", "campaign_id", campaignID)
			return s.finishStep(&StepResult{Outcome: OutcomeDone}), nil
		}
		return nil, err
	}

	if skipped, err := s.duplicateGuard(ctx, item); err != nil {
		return nil, err
	} else if skipped != nil {
		return s.finishStep(skipped), nil
	}

	return s.dispatchItem(ctx, campaign, cfg, item)
}

// checkGates consults the rate tracker and the allowed window. A tripped
// gate is a deliberate pause with a computed resume time, never an error.
func (s *CampaignScheduler) checkGates(ctx context.Context, campaign *domain.Campaign, cfg *domain.SendingConfig) (*StepResult, error) {
	usage, err := s.deps.Rates.CheckLimits(ctx, campaign.AccountID, cfg.HourlyCap, cfg.DailyCap)
	if err != nil {
		return nil, fmt.Errorf("check rate limits: %w", err)
	}

	now := s.now()
	var reason string
	var resumeAt time.Time
	switch {
	case usage.HourlyLimitReached:
		reason = ReasonHourlyLimit
		resumeAt = now.Truncate(time.Hour).Add(time.Hour)
	case usage.DailyLimitReached:
		reason = ReasonDailyLimit
		resumeAt = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	case !schedule.IsWithinAllowedWindow(cfg, now):
		reason = ReasonOutsideHours
		resumeAt = schedule.NextAllowedInstant(cfg, now)
	default:
		return nil, nil
	}

	gateRejectionsCounter.WithLabelValues(reason).Inc()
	s.log.InfoContext(ctx, "dispatch gated", "campaign_id", campaign.ID, "reason", reason, "resume_at", resumeAt)

	if cfg.AutoPauseOnLimit {
		if _, err := s.Pause(ctx, campaign.ID); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		// The marker lets the poller return the campaign to sending once
		// resumeAt passes, without operator intervention. ErrNotFound means
		// a concurrent transition already moved the campaign on.
		if err := s.deps.Campaigns.SetAutoResume(ctx, campaign.ID, resumeAt); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}
	return &StepResult{Outcome: OutcomePaused, Reason: reason, ResumeAt: &resumeAt}, nil
}

// duplicateGuard re-checks a claimed item before dispatch: its own status
// must still be pending, and no sibling item for the same phone may already
// be sent. A tripped guard resolves to skipped, not error, and the caller
// simply tries the next item.
func (s *CampaignScheduler) duplicateGuard(ctx context.Context, item *domain.QueueItem) (*StepResult, error) {
	fresh, err := s.deps.Queue.GetByID(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	if fresh.Status != domain.ItemPending {
		if err := s.deps.Queue.MarkSkipped(ctx, item.ID, domain.SkipReasonAlreadyProcessed); err != nil {
			return nil, err
		}
		return &StepResult{Outcome: OutcomeSkipped, Reason: domain.SkipReasonAlreadyProcessed, ItemID: item.ID, Phone: item.ContactPhone}, nil
	}

	sent, err := s.deps.Queue.HasSent(ctx, item.CampaignID, item.ContactPhone, item.ID)
	if err != nil {
		return nil, err
	}
	if sent {
		if err := s.deps.Queue.MarkSkipped(ctx, item.ID, domain.SkipReasonDuplicate); err != nil {
			return nil, err
		}
		return &StepResult{Outcome: OutcomeSkipped, Reason: domain.SkipReasonDuplicate, ItemID: item.ID, Phone: item.ContactPhone}, nil
	}
	return nil, nil
}

func (s *CampaignScheduler) dispatchItem(ctx context.Context, campaign *domain.Campaign, cfg *domain.SendingConfig, item *domain.QueueItem) (*StepResult, error) {
	// Test-mode substitution happens here, at the call site: the item keeps
	// its original contact identity for audit, the dispatcher stays
	// destination-agnostic.
	destination := item.ContactPhone
	if campaign.IsTestMode && s.deps.TestDestination != "" {
		destination = s.deps.TestDestination
	}

	data := make(map[string]string, len(item.ContactPayload)+2)
	for k, v := range item.ContactPayload {
		data[k] = v
	}
	data["name"] = item.ContactName
	data["phone"] = item.ContactPhone

	message, err := s.deps.Renderer.Render(ctx, campaign.TemplateID, data)
	if err != nil {
		return s.recordFailure(ctx, campaign, item, fmt.Sprintf("render: %v", err))
	}

	// Lifetime attempt counter bumps on every attempt, whatever the
	// outcome.
	if err := s.deps.Contacts.IncrementAttempt(ctx, campaign.AccountID, item.ContactPhone, item.ContactName); err != nil {
		s.log.WarnContext(ctx, "failed to increment contact attempt counter",
			"campaign_id", campaign.ID, "item_id", item.ID, "error", err)
	}

	timer := prometheus.NewTimer(dispatchDurationHist.WithLabelValues(s.deps.Dispatcher.Name()))
	result, err := s.deps.Dispatcher.Send(ctx, dispatcher.DispatchRequest{
		ItemID:     item.ID,
		CampaignID: campaign.ID,
		Phone:      destination,
		Message:    message,
		Timestamp:  s.now(),
	})
	timer.ObserveDuration()

	if err != nil {
		return s.recordFailure(ctx, campaign, item, fmt.Sprintf("dispatch: %v", err))
	}
	if !result.OK {
		return s.recordFailure(ctx, campaign, item, result.ErrorMessage)
	}
	return s.recordSuccess(ctx, campaign, item)
}

func (s *CampaignScheduler) recordSuccess(ctx context.Context, campaign *domain.Campaign, item *domain.QueueItem) (*StepResult, error) {
	now := s.now()
	if err := s.deps.Queue.MarkSent(ctx, item.ID, now); err != nil {
		return nil, err
	}
	if err := s.deps.Campaigns.IncrementSent(ctx, campaign.ID); err != nil {
		return nil, err
	}
	if err := s.deps.Rates.Increment(ctx, campaign.AccountID); err != nil {
		// The send happened; an undercounted bucket is better than a failed
		// step here.
		s.log.WarnContext(ctx, "failed to increment rate counters", "campaign_id", campaign.ID, "error", err)
	}
	s.appendLog(ctx, campaign, item, string(OutcomeSent), "")

	delay := time.Duration(s.deps.Calculator.RandomizedInterval(campaign.SendIntervalSeconds, campaign.RandomizeInterval)) * time.Second
	return s.finishStep(&StepResult{Outcome: OutcomeSent, ItemID: item.ID, Phone: item.ContactPhone, NextDelay: delay}), nil
}

func (s *CampaignScheduler) recordFailure(ctx context.Context, campaign *domain.Campaign, item *domain.QueueItem, message string) (*StepResult, error) {
	if err := s.deps.Queue.MarkError(ctx, item.ID, message); err != nil {
		return nil, err
	}
	if err := s.deps.Campaigns.IncrementFailed(ctx, campaign.ID); err != nil {
		return nil, err
	}
	s.appendLog(ctx, campaign, item, string(OutcomeError), message)
	return s.finishStep(&StepResult{Outcome: OutcomeError, Reason: message, ItemID: item.ID, Phone: item.ContactPhone}), nil
}

// appendLog writes the audit record and publishes the delivery report.
// Both are best-effort relative to the already-recorded item outcome.
func (s *CampaignScheduler) appendLog(ctx context.Context, campaign *domain.Campaign, item *domain.QueueItem, outcome, detail string) {
	now := s.now()
	entry := &domain.DispatchLog{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		ItemID:     item.ID,
		Phone:      item.ContactPhone,
		Outcome:    outcome,
		Detail:     detail,
		CreatedAt:  now,
	}
	if err := s.deps.Logs.Append(ctx, entry); err != nil {
		s.log.WarnContext(ctx, "failed to append dispatch log", "item_id", item.ID, "error", err)
	}

	if s.deps.Publisher == nil {
		return
	}
	report := domain.DispatchReport{
		ItemID:     item.ID,
		CampaignID: campaign.ID,
		AccountID:  campaign.AccountID,
		Phone:      item.ContactPhone,
		Outcome:    outcome,
		Detail:     detail,
		OccurredAt: now,
	}
	data, err := json.Marshal(report)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to marshal dispatch report", "item_id", item.ID, "error", err)
		return
	}
	if err := s.deps.Publisher.Publish(ctx, domain.SubjectDispatchReports, data); err != nil {
		s.log.WarnContext(ctx, "failed to publish dispatch report", "item_id", item.ID, "error", err)
	}
}

func (s *CampaignScheduler) finishStep(res *StepResult) *StepResult {
	stepsProcessedCounter.WithLabelValues(string(res.Outcome)).Inc()
	return res
}

// Pause stops a sending campaign and parks its pending items.
func (s *CampaignScheduler) Pause(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignSending && campaign.Status != domain.CampaignScheduled {
		return nil, fmt.Errorf("%w: cannot pause campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}
	if err := s.deps.Campaigns.UpdateStatus(ctx, campaignID, domain.CampaignPaused, sql.NullString{}); err != nil {
		return nil, err
	}
	paused, err := s.deps.Queue.MarkPausedBatch(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "campaign paused", "campaign_id", campaignID, "items_paused", paused)
	campaign.Status = domain.CampaignPaused
	return campaign, nil
}

// Resume reschedules paused items from now, preserving their relative
// order and applying the campaign's current interval settings, then
// returns them to pending and the campaign to sending.
func (s *CampaignScheduler) Resume(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignPaused {
		return nil, fmt.Errorf("%w: cannot resume campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}
	cfg, err := s.configFor(ctx, campaign.AccountID)
	if err != nil {
		return nil, err
	}

	items, err := s.deps.Queue.ListByStatus(ctx, campaignID, domain.ItemPaused, false)
	if err != nil {
		return nil, err
	}
	times := s.deps.Calculator.Plan(len(items), campaign.SendIntervalSeconds, campaign.RandomizeInterval, cfg, s.now())
	for i, item := range items {
		if err := s.deps.Queue.Reschedule(ctx, item.ID, times[i]); err != nil {
			return nil, err
		}
	}
	if _, err := s.deps.Queue.MarkPendingBatch(ctx, campaignID); err != nil {
		return nil, err
	}
	if err := s.deps.Campaigns.UpdateStatus(ctx, campaignID, domain.CampaignSending, sql.NullString{}); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "campaign resumed", "campaign_id", campaignID, "items_rescheduled", len(items))
	campaign.Status = domain.CampaignSending
	return campaign, nil
}

// Cancel forces the campaign into error with a cancellation message and
// cancels every item still in flight. Irreversible.
func (s *CampaignScheduler) Cancel(ctx context.Context, campaignID uuid.UUID, reason string) (*domain.Campaign, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == domain.CampaignCompleted || campaign.Status == domain.CampaignError {
		return nil, fmt.Errorf("%w: cannot cancel campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}
	message := "cancelled by operator"
	if reason != "" {
		message = fmt.Sprintf("cancelled by operator: %s", reason)
	}
	if err := s.deps.Campaigns.UpdateStatus(ctx, campaignID, domain.CampaignError, sql.NullString{String: message, Valid: true}); err != nil {
		return nil, err
	}
	cancelled, err := s.deps.Queue.MarkCancelledBatch(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "campaign cancelled", "campaign_id", campaignID, "items_cancelled", cancelled)
	campaign.Status = domain.CampaignError
	campaign.StatusMessage = sql.NullString{String: message, Valid: true}
	return campaign, nil
}

// AdjustSpeed re-paces all pending items cumulatively from now with the new
// interval, ordered by their current scheduled_for. Terminal items are
// untouched.
func (s *CampaignScheduler) AdjustSpeed(ctx context.Context, campaignID uuid.UUID, intervalSeconds int, randomize bool) (*domain.Campaign, error) {
	if intervalSeconds <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", domain.ErrInvalidConfig)
	}
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: cannot adjust speed of campaign in status %s", domain.ErrInvalidTransition, campaign.Status)
	}
	cfg, err := s.configFor(ctx, campaign.AccountID)
	if err != nil {
		return nil, err
	}

	if err := s.deps.Campaigns.UpdateSendInterval(ctx, campaignID, intervalSeconds, randomize); err != nil {
		return nil, err
	}

	items, err := s.deps.Queue.ListByStatus(ctx, campaignID, domain.ItemPending, true)
	if err != nil {
		return nil, err
	}
	times := s.deps.Calculator.Plan(len(items), intervalSeconds, randomize, cfg, s.now())
	for i, item := range items {
		if err := s.deps.Queue.Reschedule(ctx, item.ID, times[i]); err != nil {
			return nil, err
		}
	}
	s.log.InfoContext(ctx, "campaign speed adjusted",
		"campaign_id", campaignID, "interval_seconds", intervalSeconds, "randomize", randomize, "items_rescheduled", len(items))
	campaign.SendIntervalSeconds = intervalSeconds
	campaign.RandomizeInterval = randomize
	return campaign, nil
}

// CampaignSnapshot is the campaign plus its per-status queue stats.
type CampaignSnapshot struct {
	Campaign *domain.Campaign               `json:"campaign"`
	Stats    map[domain.QueueItemStatus]int `json:"stats"`
}

func (s *CampaignScheduler) Snapshot(ctx context.Context, campaignID uuid.UUID) (*CampaignSnapshot, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.deps.Queue.StatusCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return &CampaignSnapshot{Campaign: campaign, Stats: stats}, nil
}

// Preview estimates throughput and completion for the campaign's remaining
// pending items. User-facing only; it never gates sends.
func (s *CampaignScheduler) Preview(ctx context.Context, campaignID uuid.UUID) (*schedule.Preview, error) {
	campaign, err := s.deps.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.configFor(ctx, campaign.AccountID)
	if err != nil {
		return nil, err
	}
	pending, err := s.deps.Queue.CountByStatus(ctx, campaignID, domain.ItemPending)
	if err != nil {
		return nil, err
	}
	preview := schedule.BuildPreview(pending, campaign.SendIntervalSeconds, cfg, s.now())
	return &preview, nil
}

// ResetHourlyLimit zeroes the account's current hour bucket so sending can
// resume before the hour rolls over. Administrative operation.
func (s *CampaignScheduler) ResetHourlyLimit(ctx context.Context, accountID uuid.UUID) error {
	return s.deps.Rates.ResetHourly(ctx, accountID)
}

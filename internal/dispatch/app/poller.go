package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// PollerConfig holds configuration specific to the dispatch poller.
type PollerConfig struct {
	PollingInterval time.Duration `mapstructure:"POLLING_INTERVAL"`
	StepsPerTick    int           `mapstructure:"STEPS_PER_TICK"`
}

// Poller is the external driver that repeatedly invokes ProcessNext for
// every sending campaign. It is one of possibly many drivers: correctness
// under concurrent pollers comes from the queue's atomic claim, the poller
// only decides when to call. Between successful sends it honors the
// campaign's randomized interval as advisory pacing.
type Poller struct {
	scheduler *CampaignScheduler
	campaigns domain.CampaignRepository
	logger    *slog.Logger
	config    PollerConfig
	now       func() time.Time

	mu           sync.Mutex
	nextEligible map[uuid.UUID]time.Time
}

func NewPoller(scheduler *CampaignScheduler, campaigns domain.CampaignRepository, logger *slog.Logger, cfg PollerConfig) *Poller {
	if cfg.StepsPerTick <= 0 {
		cfg.StepsPerTick = 1
	}
	return &Poller{
		scheduler:    scheduler,
		campaigns:    campaigns,
		logger:       logger.With("component", "dispatch_poller"),
		config:       cfg,
		now:          func() time.Time { return time.Now().UTC() },
		nextEligible: make(map[uuid.UUID]time.Time),
	}
}

// WithClock overrides the poller's clock. Test hook.
func (p *Poller) WithClock(now func() time.Time) *Poller {
	p.now = now
	return p
}

// RunOnce performs one poll cycle and returns the number of steps taken.
// Per-item failures are isolated: a step error stops work on that campaign
// for this cycle but never the cycle itself. A failure to list campaigns is
// critical and returned.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	p.resumeDue(ctx)

	active, err := p.campaigns.ListByStatus(ctx, domain.CampaignSending)
	if err != nil {
		return 0, fmt.Errorf("list sending campaigns: %w", err)
	}

	steps := 0
	for _, campaign := range active {
		if p.waitingUntil(campaign.ID).After(p.now()) {
			continue
		}
		steps += p.advanceCampaign(ctx, campaign.ID)
	}
	return steps, nil
}

// resumeDue returns auto-paused campaigns to sending once their resume
// time has passed. Failures stay paused and are retried next cycle.
func (p *Poller) resumeDue(ctx context.Context) {
	due, err := p.campaigns.ListDueForResume(ctx, p.now())
	if err != nil {
		p.logger.ErrorContext(ctx, "list campaigns due for resume failed", "error", err)
		return
	}
	for _, campaign := range due {
		if _, err := p.scheduler.Resume(ctx, campaign.ID); err != nil {
			p.logger.ErrorContext(ctx, "auto resume failed", "campaign_id", campaign.ID, "error", err)
			continue
		}
		p.clearEligibility(campaign.ID)
		p.logger.InfoContext(ctx, "campaign auto resumed", "campaign_id", campaign.ID)
	}
}

func (p *Poller) advanceCampaign(ctx context.Context, campaignID uuid.UUID) int {
	steps := 0
	for i := 0; i < p.config.StepsPerTick; i++ {
		res, err := p.scheduler.ProcessNext(ctx, campaignID)
		if err != nil {
			p.logger.ErrorContext(ctx, "process next failed", "campaign_id", campaignID, "error", err)
			return steps
		}
		steps++

		switch res.Outcome {
		case OutcomeSent:
			p.setNextEligible(campaignID, p.now().Add(res.NextDelay))
			return steps
		case OutcomeSkipped, OutcomeError:
			// Nothing was dispatched; try the next item right away.
			continue
		case OutcomePaused:
			if res.ResumeAt != nil {
				p.setNextEligible(campaignID, *res.ResumeAt)
			}
			return steps
		default: // done, not_active
			p.clearEligibility(campaignID)
			return steps
		}
	}
	return steps
}

// Run drives poll cycles on a fixed ticker until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "dispatch poller starting", "polling_interval", p.config.PollingInterval)
	ticker := time.NewTicker(p.config.PollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			steps, err := p.RunOnce(ctx)
			if err != nil {
				p.logger.ErrorContext(ctx, "poll cycle failed", "error", err)
				continue
			}
			if steps > 0 {
				p.logger.DebugContext(ctx, "poll cycle finished", "steps", steps)
			}
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "dispatch poller stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

func (p *Poller) waitingUntil(campaignID uuid.UUID) time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextEligible[campaignID]
}

func (p *Poller) setNextEligible(campaignID uuid.UUID, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextEligible[campaignID] = at
}

func (p *Poller) clearEligibility(campaignID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nextEligible, campaignID)
}

package app

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/leadpilot/golang_services/internal/dispatch/dispatcher"
	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

func newTestPoller(f *schedulerFixture, cfg PollerConfig) *Poller {
	if cfg.PollingInterval == 0 {
		cfg.PollingInterval = time.Second
	}
	return NewPoller(f.scheduler, f.campaigns, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg).
		WithClock(func() time.Time { return wednesdayNoon })
}

func TestRunOncePacesCampaignAfterSend(t *testing.T) {
	f := newSchedulerFixture(t)
	campaign := sendingCampaign()
	item := pendingItem(campaign.ID, "+15551001")

	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{campaign}, nil)
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.useDefaults()
	f.rates.On("CheckLimits", mock.Anything, campaign.AccountID, 100, 500).Return(okUsage(), nil)
	f.queue.On("ClaimNext", mock.Anything, campaign.ID, mock.Anything, mock.Anything).Return(item, nil).Once()
	f.expectSuccessfulDispatch(campaign, item)

	poller := newTestPoller(f, PollerConfig{StepsPerTick: 5})

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps, "a successful send ends the campaign's turn")

	// The advisory interval has not elapsed yet, so the next cycle must
	// leave the campaign alone.
	steps, err = poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, steps)
	f.sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestRunOnceContinuesPastSkips(t *testing.T) {
	f := newSchedulerFixture(t)
	campaign := sendingCampaign()
	itemA := pendingItem(campaign.ID, "+15551001")
	itemB := pendingItem(campaign.ID, "+15551002")
	staleA := *itemA
	staleA.Status = domain.ItemSent

	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{campaign}, nil)
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.useDefaults()
	f.rates.On("CheckLimits", mock.Anything, campaign.AccountID, 100, 500).Return(okUsage(), nil)
	f.queue.On("ClaimNext", mock.Anything, campaign.ID, mock.Anything, mock.Anything).Return(itemA, nil).Once()
	f.queue.On("ClaimNext", mock.Anything, campaign.ID, mock.Anything, mock.Anything).Return(itemB, nil).Once()
	f.queue.On("GetByID", mock.Anything, itemA.ID).Return(&staleA, nil).Once()
	f.queue.On("MarkSkipped", mock.Anything, itemA.ID, domain.SkipReasonAlreadyProcessed).Return(nil).Once()
	f.expectSuccessfulDispatch(campaign, itemB)

	poller := newTestPoller(f, PollerConfig{StepsPerTick: 3})

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, steps, "a skip does not consume the campaign's turn")
	f.queue.AssertExpectations(t)
}

func TestRunOnceCompletesExhaustedCampaign(t *testing.T) {
	f := newSchedulerFixture(t)
	campaign := sendingCampaign()

	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{campaign}, nil)
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.useDefaults()
	f.rates.On("CheckLimits", mock.Anything, campaign.AccountID, 100, 500).Return(okUsage(), nil)
	f.queue.On("ClaimNext", mock.Anything, campaign.ID, mock.Anything, mock.Anything).
		Return(nil, domain.ErrNoPendingItems)
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, domain.CampaignCompleted, sql.NullString{}).
		Return(nil).Once()

	poller := newTestPoller(f, PollerConfig{StepsPerTick: 5})

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	f.campaigns.AssertExpectations(t)
}

func TestRunOnceHonorsGateResumeTime(t *testing.T) {
	f := newSchedulerFixture(t)
	campaign := sendingCampaign()

	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{campaign}, nil)
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil)
	f.useDefaults()
	f.rates.On("CheckLimits", mock.Anything, campaign.AccountID, 100, 500).
		Return(&domain.RateUsage{HourlyCount: 100, HourlyLimitReached: true}, nil)

	poller := newTestPoller(f, PollerConfig{StepsPerTick: 5})

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	// Gated until the top of the next hour; no more limit checks until then.
	steps, err = poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, steps)
	f.rates.AssertNumberOfCalls(t, "CheckLimits", 1)
}

func TestRunOnceStepErrorIsIsolated(t *testing.T) {
	f := newSchedulerFixture(t)
	broken := sendingCampaign()
	healthy := sendingCampaign()
	item := pendingItem(healthy.ID, "+15551001")

	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{broken, healthy}, nil)
	f.campaigns.On("GetByID", mock.Anything, broken.ID).Return(nil, assert.AnError)
	f.campaigns.On("GetByID", mock.Anything, healthy.ID).Return(healthy, nil)
	f.useDefaults()
	f.rates.On("CheckLimits", mock.Anything, healthy.AccountID, 100, 500).Return(okUsage(), nil)
	f.queue.On("ClaimNext", mock.Anything, healthy.ID, mock.Anything, mock.Anything).Return(item, nil).Once()
	f.expectSuccessfulDispatch(healthy, item)

	poller := newTestPoller(f, PollerConfig{StepsPerTick: 5})

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps, "the healthy campaign still advances")
	f.sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestRunOnceListFailureIsCritical(t *testing.T) {
	f := newSchedulerFixture(t)
	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return(nil, assert.AnError)

	poller := newTestPoller(f, PollerConfig{})

	_, err := poller.RunOnce(context.Background())
	assert.Error(t, err)
}

// An auto-paused campaign must come back on its own: the hourly cap trips
// and parks the campaign, and once the resume time passes the next poll
// cycle returns it to sending and dispatch continues.
func TestRunOnceResumesAfterHourlyGate(t *testing.T) {
	f := newSchedulerFixture(t)
	now := wednesdayNoon
	f.scheduler.WithClock(func() time.Time { return now })

	cfg := testConfig()
	cfg.AutoPauseOnLimit = true
	f.configs.On("GetByAccount", mock.Anything, mock.Anything).Return(&cfg, nil)

	campaign := sendingCampaign()
	item := pendingItem(campaign.ID, "+15551001")
	resumeAt := time.Date(2024, 3, 6, 13, 0, 0, 0, time.UTC)

	// Cycle one: the hourly cap is hit and the campaign auto-pauses with a
	// resume marker at the top of the next hour.
	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil).Once()
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{campaign}, nil).Once()
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil).Twice()
	f.rates.On("CheckLimits", mock.Anything, campaign.AccountID, 100, 500).
		Return(&domain.RateUsage{HourlyCount: 100, HourlyLimitReached: true}, nil).Once()
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, domain.CampaignPaused, sql.NullString{}).Return(nil).Once()
	f.queue.On("MarkPausedBatch", mock.Anything, campaign.ID).Return(int64(1), nil).Once()
	f.campaigns.On("SetAutoResume", mock.Anything, campaign.ID, resumeAt).Return(nil).Once()

	poller := NewPoller(f.scheduler, f.campaigns, slog.New(slog.NewTextHandler(io.Discard, nil)), PollerConfig{StepsPerTick: 5}).
		WithClock(func() time.Time { return now })

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	f.queue.AssertNotCalled(t, "ClaimNext")

	// Cycle two: the clock is past the resume time and the limit has
	// cleared; the poller resumes the campaign and the item goes out.
	now = resumeAt.Add(time.Minute)
	paused := *campaign
	paused.Status = domain.CampaignPaused
	paused.AutoResumeAt = sql.NullTime{Time: resumeAt, Valid: true}
	pausedItem := *item
	pausedItem.Status = domain.ItemPaused
	resumed := *campaign
	resumed.Status = domain.CampaignSending

	f.campaigns.On("ListDueForResume", mock.Anything, now).Return([]*domain.Campaign{&paused}, nil).Once()
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(&paused, nil).Once()
	f.queue.On("ListByStatus", mock.Anything, campaign.ID, domain.ItemPaused, false).
		Return([]*domain.QueueItem{&pausedItem}, nil).Once()
	f.queue.On("Reschedule", mock.Anything, item.ID, now).Return(nil).Once()
	f.queue.On("MarkPendingBatch", mock.Anything, campaign.ID).Return(int64(1), nil).Once()
	f.campaigns.On("UpdateStatus", mock.Anything, campaign.ID, domain.CampaignSending, sql.NullString{}).Return(nil).Once()

	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{&resumed}, nil).Once()
	f.campaigns.On("GetByID", mock.Anything, campaign.ID).Return(&resumed, nil).Once()
	f.rates.On("CheckLimits", mock.Anything, campaign.AccountID, 100, 500).Return(okUsage(), nil).Once()
	f.queue.On("ClaimNext", mock.Anything, campaign.ID, mock.Anything, mock.Anything).Return(item, nil).Once()
	f.queue.On("GetByID", mock.Anything, item.ID).Return(item, nil).Once()
	f.queue.On("HasSent", mock.Anything, campaign.ID, item.ContactPhone, item.ID).Return(false, nil).Once()
	f.renderer.On("Render", mock.Anything, campaign.TemplateID, mock.Anything).Return("hello Bob", nil).Once()
	f.contacts.On("IncrementAttempt", mock.Anything, campaign.AccountID, item.ContactPhone, item.ContactName).Return(nil).Once()
	f.sender.On("Send", mock.Anything, mock.Anything).Return(&dispatcher.DispatchResult{OK: true, StatusCode: 200}, nil).Once()
	f.queue.On("MarkSent", mock.Anything, item.ID, now).Return(nil).Once()
	f.campaigns.On("IncrementSent", mock.Anything, campaign.ID).Return(nil).Once()
	f.rates.On("Increment", mock.Anything, campaign.AccountID).Return(nil).Once()
	f.logs.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, domain.SubjectDispatchReports, mock.Anything).Return(nil).Once()

	steps, err = poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, steps)
	f.sender.AssertNumberOfCalls(t, "Send", 1)
	f.campaigns.AssertExpectations(t)
	f.queue.AssertExpectations(t)
}

func TestRunOnceAutoResumeFailureIsIsolated(t *testing.T) {
	f := newSchedulerFixture(t)
	stuck := sendingCampaign()
	stuck.Status = domain.CampaignPaused

	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).
		Return([]*domain.Campaign{stuck}, nil)
	f.campaigns.On("GetByID", mock.Anything, stuck.ID).Return(nil, assert.AnError)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{}, nil)

	poller := newTestPoller(f, PollerConfig{})

	steps, err := poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, steps)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newSchedulerFixture(t)
	f.campaigns.On("ListDueForResume", mock.Anything, mock.Anything).Return([]*domain.Campaign{}, nil)
	f.campaigns.On("ListByStatus", mock.Anything, domain.CampaignSending).
		Return([]*domain.Campaign{}, nil)

	poller := newTestPoller(f, PollerConfig{PollingInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := poller.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

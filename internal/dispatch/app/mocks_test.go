package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/leadpilot/golang_services/internal/dispatch/dispatcher"
	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// --- testify mocks for the scheduler's collaborators ---

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *domain.Campaign) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) ListByStatus(ctx context.Context, status domain.CampaignStatus) ([]*domain.Campaign, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus, message sql.NullString) error {
	return m.Called(ctx, id, status, message).Error(0)
}

func (m *MockCampaignRepository) SetAutoResume(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockCampaignRepository) ListDueForResume(ctx context.Context, before time.Time) ([]*domain.Campaign, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) UpdateSendInterval(ctx context.Context, id uuid.UUID, intervalSeconds int, randomize bool) error {
	return m.Called(ctx, id, intervalSeconds, randomize).Error(0)
}

func (m *MockCampaignRepository) AddToTotal(ctx context.Context, id uuid.UUID, delta int) error {
	return m.Called(ctx, id, delta).Error(0)
}

func (m *MockCampaignRepository) IncrementSent(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCampaignRepository) IncrementFailed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockQueueItemRepository struct {
	mock.Mock
}

func (m *MockQueueItemRepository) EnqueueBatch(ctx context.Context, items []*domain.QueueItem) (int, error) {
	args := m.Called(ctx, items)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueItemRepository) ClaimNext(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) (*domain.QueueItem, error) {
	args := m.Called(ctx, campaignID, now, staleBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueItem), args.Error(1)
}

func (m *MockQueueItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QueueItem), args.Error(1)
}

func (m *MockQueueItemRepository) HasSent(ctx context.Context, campaignID uuid.UUID, phone string, excludeItem uuid.UUID) (bool, error) {
	args := m.Called(ctx, campaignID, phone, excludeItem)
	return args.Bool(0), args.Error(1)
}

func (m *MockQueueItemRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockQueueItemRepository) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	return m.Called(ctx, id, message).Error(0)
}

func (m *MockQueueItemRepository) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *MockQueueItemRepository) MarkPausedBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueItemRepository) MarkCancelledBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueItemRepository) MarkPendingBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockQueueItemRepository) Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	return m.Called(ctx, id, scheduledFor).Error(0)
}

func (m *MockQueueItemRepository) ListByStatus(ctx context.Context, campaignID uuid.UUID, status domain.QueueItemStatus, byScheduledFor bool) ([]*domain.QueueItem, error) {
	args := m.Called(ctx, campaignID, status, byScheduledFor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.QueueItem), args.Error(1)
}

func (m *MockQueueItemRepository) CountByStatus(ctx context.Context, campaignID uuid.UUID, status domain.QueueItemStatus) (int, error) {
	args := m.Called(ctx, campaignID, status)
	return args.Int(0), args.Error(1)
}

func (m *MockQueueItemRepository) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.QueueItemStatus]int, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.QueueItemStatus]int), args.Error(1)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) AttemptCounts(ctx context.Context, accountID uuid.UUID, phones []string) (map[string]int, error) {
	args := m.Called(ctx, accountID, phones)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockContactRepository) IncrementAttempt(ctx context.Context, accountID uuid.UUID, phone, name string) error {
	return m.Called(ctx, accountID, phone, name).Error(0)
}

type MockSendingConfigRepository struct {
	mock.Mock
}

func (m *MockSendingConfigRepository) GetByAccount(ctx context.Context, accountID uuid.UUID) (*domain.SendingConfig, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SendingConfig), args.Error(1)
}

type MockDispatchLogRepository struct {
	mock.Mock
}

func (m *MockDispatchLogRepository) Append(ctx context.Context, entry *domain.DispatchLog) error {
	return m.Called(ctx, entry).Error(0)
}

type MockRateTracker struct {
	mock.Mock
}

func (m *MockRateTracker) CheckLimits(ctx context.Context, accountID uuid.UUID, hourlyCap, dailyCap int) (*domain.RateUsage, error) {
	args := m.Called(ctx, accountID, hourlyCap, dailyCap)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RateUsage), args.Error(1)
}

func (m *MockRateTracker) Increment(ctx context.Context, accountID uuid.UUID) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockRateTracker) ResetHourly(ctx context.Context, accountID uuid.UUID) error {
	return m.Called(ctx, accountID).Error(0)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, req dispatcher.DispatchRequest) (*dispatcher.DispatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatcher.DispatchResult), args.Error(1)
}

func (m *MockDispatcher) Name() string { return "mock" }

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(ctx context.Context, templateID uuid.UUID, data map[string]string) (string, error) {
	args := m.Called(ctx, templateID, data)
	return args.String(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

// --- in-memory queue fake for claim-race tests ---

// fakeQueue implements domain.QueueItemRepository over a guarded map with
// the same claim and mark semantics the postgres store enforces. Used where
// mock expectations cannot express real interleavings.
type fakeQueue struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.QueueItem
	order []uuid.UUID
}

func newFakeQueue(items ...*domain.QueueItem) *fakeQueue {
	q := &fakeQueue{items: make(map[uuid.UUID]*domain.QueueItem)}
	for _, item := range items {
		copied := *item
		q.items[item.ID] = &copied
		q.order = append(q.order, item.ID)
	}
	return q
}

func (q *fakeQueue) snapshot(id uuid.UUID) domain.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *q.items[id]
}

func (q *fakeQueue) EnqueueBatch(ctx context.Context, items []*domain.QueueItem) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range items {
		copied := *item
		q.items[item.ID] = &copied
		q.order = append(q.order, item.ID)
	}
	return len(items), nil
}

func (q *fakeQueue) ClaimNext(ctx context.Context, campaignID uuid.UUID, now, staleBefore time.Time) (*domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range q.order {
		item := q.items[id]
		if item.CampaignID != campaignID || item.Status != domain.ItemPending {
			continue
		}
		if item.ClaimedAt.Valid && !item.ClaimedAt.Time.Before(staleBefore) {
			continue
		}
		item.ClaimedAt = sql.NullTime{Time: now, Valid: true}
		copied := *item
		return &copied, nil
	}
	return nil, domain.ErrNoPendingItems
}

func (q *fakeQueue) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (q *fakeQueue) HasSent(ctx context.Context, campaignID uuid.UUID, phone string, excludeItem uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, item := range q.items {
		if item.CampaignID == campaignID && item.ContactPhone == phone && item.Status == domain.ItemSent && item.ID != excludeItem {
			return true, nil
		}
	}
	return false, nil
}

func (q *fakeQueue) markIf(id uuid.UUID, to domain.QueueItemStatus, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok || item.Status.IsTerminal() {
		return nil // idempotent no-op
	}
	item.Status = to
	if message != "" {
		item.ErrorMessage = sql.NullString{String: message, Valid: true}
	}
	item.ClaimedAt = sql.NullTime{}
	return nil
}

func (q *fakeQueue) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok || item.Status.IsTerminal() {
		return nil // idempotent no-op
	}
	item.Status = domain.ItemSent
	item.SentAt = sql.NullTime{Time: at, Valid: true}
	item.ClaimedAt = sql.NullTime{}
	return nil
}

func (q *fakeQueue) MarkError(ctx context.Context, id uuid.UUID, message string) error {
	return q.markIf(id, domain.ItemError, message)
}

func (q *fakeQueue) MarkSkipped(ctx context.Context, id uuid.UUID, reason string) error {
	return q.markIf(id, domain.ItemSkipped, reason)
}

func (q *fakeQueue) batchTransition(campaignID uuid.UUID, from []domain.QueueItemStatus, to domain.QueueItemStatus) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, item := range q.items {
		if item.CampaignID != campaignID {
			continue
		}
		for _, f := range from {
			if item.Status == f {
				item.Status = to
				item.ClaimedAt = sql.NullTime{}
				n++
				break
			}
		}
	}
	return n
}

func (q *fakeQueue) MarkPausedBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	return q.batchTransition(campaignID, []domain.QueueItemStatus{domain.ItemPending}, domain.ItemPaused), nil
}

func (q *fakeQueue) MarkCancelledBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	return q.batchTransition(campaignID, []domain.QueueItemStatus{domain.ItemPending, domain.ItemPaused}, domain.ItemCancelled), nil
}

func (q *fakeQueue) MarkPendingBatch(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	return q.batchTransition(campaignID, []domain.QueueItemStatus{domain.ItemPaused}, domain.ItemPending), nil
}

func (q *fakeQueue) Reschedule(ctx context.Context, id uuid.UUID, scheduledFor time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.ScheduledFor = scheduledFor
	return nil
}

func (q *fakeQueue) ListByStatus(ctx context.Context, campaignID uuid.UUID, status domain.QueueItemStatus, byScheduledFor bool) ([]*domain.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var items []*domain.QueueItem
	for _, id := range q.order {
		item := q.items[id]
		if item.CampaignID == campaignID && item.Status == status {
			copied := *item
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (q *fakeQueue) CountByStatus(ctx context.Context, campaignID uuid.UUID, status domain.QueueItemStatus) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, item := range q.items {
		if item.CampaignID == campaignID && item.Status == status {
			n++
		}
	}
	return n, nil
}

func (q *fakeQueue) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.QueueItemStatus]int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	counts := make(map[domain.QueueItemStatus]int)
	for _, item := range q.items {
		if item.CampaignID == campaignID {
			counts[item.Status]++
		}
	}
	return counts, nil
}

package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// CampaignStatus represents the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignError     CampaignStatus = "error"
)

// IsTerminal reports whether no further transitions are possible.
// Cancel forces CampaignError, so error is terminal too.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignCompleted || s == CampaignError
}

// Campaign is the aggregate driving one bulk messaging run. Counters are
// mutated only by the scheduler; status additionally by operator actions.
type Campaign struct {
	ID                  uuid.UUID      `json:"id"`
	AccountID           uuid.UUID      `json:"account_id"`
	Name                string         `json:"name"`
	TemplateID          uuid.UUID      `json:"template_id"`
	ContactListID       uuid.UUID      `json:"contact_list_id"`
	Status              CampaignStatus `json:"status"`
	StatusMessage       sql.NullString `json:"status_message,omitempty"`
	AutoResumeAt        sql.NullTime   `json:"auto_resume_at,omitempty"`
	Sent                int            `json:"sent"`
	Failed              int            `json:"failed"`
	Total               int            `json:"total"`
	SendIntervalSeconds int            `json:"send_interval_seconds"`
	RandomizeInterval   bool           `json:"randomize_interval"`
	IsTestMode          bool           `json:"is_test_mode"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// NewCampaign creates a draft campaign with zeroed counters.
func NewCampaign(accountID, templateID, contactListID uuid.UUID, name string, intervalSeconds int, randomize, testMode bool) *Campaign {
	now := time.Now().UTC()
	return &Campaign{
		ID:                  uuid.New(),
		AccountID:           accountID,
		Name:                name,
		TemplateID:          templateID,
		ContactListID:       contactListID,
		Status:              CampaignDraft,
		SendIntervalSeconds: intervalSeconds,
		RandomizeInterval:   randomize,
		IsTestMode:          testMode,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

package http

import (
	"time"

	"github.com/leadpilot/golang_services/internal/dispatch/domain"
)

// --- Request DTOs ---

// CreateCampaignRequestDTO registers a new draft campaign.
type CreateCampaignRequestDTO struct {
	AccountID           string `json:"account_id" validate:"required,uuid"`
	Name                string `json:"name" validate:"required,max=200"`
	TemplateID          string `json:"template_id" validate:"required,uuid"`
	ContactListID       string `json:"contact_list_id" validate:"required,uuid"`
	SendIntervalSeconds int    `json:"send_interval_seconds" validate:"required,min=1"`
	RandomizeInterval   bool   `json:"randomize_interval"`
	IsTestMode          bool   `json:"is_test_mode"`
}

// ContactDTO is one contact submitted for queueing.
type ContactDTO struct {
	Phone   string            `json:"phone" validate:"required,max=32"`
	Name    string            `json:"name" validate:"max=200"`
	Payload map[string]string `json:"payload,omitempty"`
}

// QueueCampaignRequestDTO carries the contact list to enqueue.
type QueueCampaignRequestDTO struct {
	Contacts []ContactDTO `json:"contacts" validate:"required,min=1,dive"`
}

// CancelCampaignRequestDTO carries the optional cancellation reason.
type CancelCampaignRequestDTO struct {
	Reason string `json:"reason,omitempty" validate:"max=255"`
}

// AdjustSpeedRequestDTO changes the campaign's pacing.
type AdjustSpeedRequestDTO struct {
	SendIntervalSeconds int  `json:"send_interval_seconds" validate:"required,min=1"`
	RandomizeInterval   bool `json:"randomize_interval"`
}

// --- Response DTOs ---

// CampaignDTO represents a campaign in API responses.
type CampaignDTO struct {
	ID                  string     `json:"id"`
	AccountID           string     `json:"account_id"`
	Name                string     `json:"name"`
	TemplateID          string     `json:"template_id"`
	ContactListID       string     `json:"contact_list_id"`
	Status              string     `json:"status"`
	StatusMessage       string     `json:"status_message,omitempty"`
	AutoResumeAt        *time.Time `json:"auto_resume_at,omitempty"`
	Sent                int        `json:"sent"`
	Failed              int        `json:"failed"`
	Total               int        `json:"total"`
	SendIntervalSeconds int        `json:"send_interval_seconds"`
	RandomizeInterval   bool       `json:"randomize_interval"`
	IsTestMode          bool       `json:"is_test_mode"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toCampaignDTO(c *domain.Campaign) CampaignDTO {
	dto := CampaignDTO{
		ID:                  c.ID.String(),
		AccountID:           c.AccountID.String(),
		Name:                c.Name,
		TemplateID:          c.TemplateID.String(),
		ContactListID:       c.ContactListID.String(),
		Status:              string(c.Status),
		Sent:                c.Sent,
		Failed:              c.Failed,
		Total:               c.Total,
		SendIntervalSeconds: c.SendIntervalSeconds,
		RandomizeInterval:   c.RandomizeInterval,
		IsTestMode:          c.IsTestMode,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
	if c.StatusMessage.Valid {
		dto.StatusMessage = c.StatusMessage.String
	}
	if c.AutoResumeAt.Valid {
		at := c.AutoResumeAt.Time
		dto.AutoResumeAt = &at
	}
	return dto
}

// QueueCampaignResponseDTO summarizes an enqueue call.
type QueueCampaignResponseDTO struct {
	Scheduled           int `json:"scheduled"`
	SkippedAttemptLimit int `json:"skipped_attempt_limit"`
	SkippedDuplicate    int `json:"skipped_duplicate"`
}

// CampaignSnapshotDTO is the campaign plus per-status queue counts.
type CampaignSnapshotDTO struct {
	Campaign CampaignDTO    `json:"campaign"`
	Stats    map[string]int `json:"stats"`
}

// PreviewDTO is the user-facing throughput estimate.
type PreviewDTO struct {
	EstimatedEnd  time.Time `json:"estimated_end"`
	MsgsPerHour   int       `json:"msgs_per_hour"`
	MsgsPerDay    int       `json:"msgs_per_day"`
	EstimatedDays int       `json:"estimated_days"`
}

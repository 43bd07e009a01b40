package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/leadpilot/golang_services/internal/dispatch/app"
	"github.com/leadpilot/golang_services/internal/dispatch/domain"
	"github.com/leadpilot/golang_services/internal/dispatch/schedule"
)

// CampaignService is the application surface the handler drives.
type CampaignService interface {
	CreateCampaign(ctx context.Context, accountID, templateID, contactListID uuid.UUID, name string, intervalSeconds int, randomize, testMode bool) (*domain.Campaign, error)
	QueueCampaign(ctx context.Context, campaignID uuid.UUID, contacts []domain.ContactInput) (*app.EnqueueResult, error)
	Start(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	Pause(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	Resume(ctx context.Context, campaignID uuid.UUID) (*domain.Campaign, error)
	Cancel(ctx context.Context, campaignID uuid.UUID, reason string) (*domain.Campaign, error)
	AdjustSpeed(ctx context.Context, campaignID uuid.UUID, intervalSeconds int, randomize bool) (*domain.Campaign, error)
	Snapshot(ctx context.Context, campaignID uuid.UUID) (*app.CampaignSnapshot, error)
	Preview(ctx context.Context, campaignID uuid.UUID) (*schedule.Preview, error)
	ResetHourlyLimit(ctx context.Context, accountID uuid.UUID) error
}

type CampaignHandler struct {
	service  CampaignService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewCampaignHandler(service CampaignService, logger *slog.Logger, validate *validator.Validate) *CampaignHandler {
	return &CampaignHandler{
		service:  service,
		logger:   logger,
		validate: validate,
	}
}

// mapDomainErrorToHTTPStatus translates application errors to HTTP responses.
func mapDomainErrorToHTTPStatus(w http.ResponseWriter, logger *slog.Logger, err error, operation string, resourceID string) {
	if err == nil {
		return
	}
	logEntry := logger.With("operation", operation, "resource_id", resourceID, "error", err)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		logEntry.Warn("resource not found")
		http.Error(w, "Resource not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidTransition):
		logEntry.Warn("invalid state transition")
		http.Error(w, fmt.Sprintf("Conflict: %s", err.Error()), http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrEmptyContactList):
		logEntry.Warn("invalid request")
		http.Error(w, fmt.Sprintf("Invalid request: %s", err.Error()), http.StatusBadRequest)
	default:
		logEntry.Error("unhandled application error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *CampaignHandler) campaignID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid campaign id", "id", raw)
		http.Error(w, "Invalid campaign ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CampaignHandler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var reqDTO CreateCampaignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "failed to decode request body for CreateCampaign", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "validation failed for CreateCampaign", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	accountID, _ := uuid.Parse(reqDTO.AccountID)
	templateID, _ := uuid.Parse(reqDTO.TemplateID)
	contactListID, _ := uuid.Parse(reqDTO.ContactListID)

	campaign, err := h.service.CreateCampaign(ctx, accountID, templateID, contactListID,
		reqDTO.Name, reqDTO.SendIntervalSeconds, reqDTO.RandomizeInterval, reqDTO.IsTestMode)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "CreateCampaign", "")
		return
	}
	h.writeJSON(ctx, w, http.StatusCreated, toCampaignDTO(campaign))
}

func (h *CampaignHandler) QueueCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	var reqDTO QueueCampaignRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "failed to decode request body for QueueCampaign", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "validation failed for QueueCampaign", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	contacts := make([]domain.ContactInput, len(reqDTO.Contacts))
	for i, c := range reqDTO.Contacts {
		contacts[i] = domain.ContactInput{Phone: c.Phone, Name: c.Name, Payload: c.Payload}
	}

	result, err := h.service.QueueCampaign(ctx, id, contacts)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "QueueCampaign", id.String())
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, QueueCampaignResponseDTO{
		Scheduled:           result.Scheduled,
		SkippedAttemptLimit: result.SkippedAttemptLimit,
		SkippedDuplicate:    result.SkippedDuplicate,
	})
}

func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "StartCampaign", h.service.Start)
}

func (h *CampaignHandler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "PauseCampaign", h.service.Pause)
}

func (h *CampaignHandler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ResumeCampaign", h.service.Resume)
}

// transition factors the shared shape of the parameterless lifecycle actions.
func (h *CampaignHandler) transition(w http.ResponseWriter, r *http.Request, operation string, action func(context.Context, uuid.UUID) (*domain.Campaign, error)) {
	ctx := r.Context()
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}
	campaign, err := action(ctx, id)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, operation, id.String())
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, toCampaignDTO(campaign))
}

func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	var reqDTO CancelCampaignRequestDTO
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
			h.logger.WarnContext(ctx, "failed to decode request body for CancelCampaign", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
			h.logger.WarnContext(ctx, "validation failed for CancelCampaign", "error", err)
			http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
			return
		}
	}

	campaign, err := h.service.Cancel(ctx, id, reqDTO.Reason)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "CancelCampaign", id.String())
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, toCampaignDTO(campaign))
}

func (h *CampaignHandler) AdjustSpeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	var reqDTO AdjustSpeedRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		h.logger.WarnContext(ctx, "failed to decode request body for AdjustSpeed", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		h.logger.WarnContext(ctx, "validation failed for AdjustSpeed", "error", err)
		http.Error(w, fmt.Sprintf("Validation error: %s", err.Error()), http.StatusBadRequest)
		return
	}

	campaign, err := h.service.AdjustSpeed(ctx, id, reqDTO.SendIntervalSeconds, reqDTO.RandomizeInterval)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "AdjustSpeed", id.String())
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, toCampaignDTO(campaign))
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	snap, err := h.service.Snapshot(ctx, id)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "GetCampaign", id.String())
		return
	}

	stats := make(map[string]int, len(snap.Stats))
	for status, count := range snap.Stats {
		stats[string(status)] = count
	}
	h.writeJSON(ctx, w, http.StatusOK, CampaignSnapshotDTO{
		Campaign: toCampaignDTO(snap.Campaign),
		Stats:    stats,
	})
}

func (h *CampaignHandler) PreviewCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.campaignID(w, r)
	if !ok {
		return
	}

	preview, err := h.service.Preview(ctx, id)
	if err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "PreviewCampaign", id.String())
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, PreviewDTO{
		EstimatedEnd:  preview.EstimatedEnd,
		MsgsPerHour:   preview.MsgsPerHour,
		MsgsPerDay:    preview.MsgsPerDay,
		EstimatedDays: preview.EstimatedDays,
	})
}

func (h *CampaignHandler) ResetHourlyLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := chi.URLParam(r, "accountID")
	accountID, err := uuid.Parse(raw)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid account id", "id", raw)
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return
	}

	if err := h.service.ResetHourlyLimit(ctx, accountID); err != nil {
		mapDomainErrorToHTTPStatus(w, h.logger, err, "ResetHourlyLimit", accountID.String())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers campaign routes on a Chi router.
func (h *CampaignHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.CreateCampaign)
	r.Get("/{id}", h.GetCampaign)
	r.Get("/{id}/preview", h.PreviewCampaign)
	r.Post("/{id}/queue", h.QueueCampaign)
	r.Post("/{id}/start", h.StartCampaign)
	r.Post("/{id}/pause", h.PauseCampaign)
	r.Post("/{id}/resume", h.ResumeCampaign)
	r.Post("/{id}/cancel", h.CancelCampaign)
	r.Put("/{id}/speed", h.AdjustSpeed)
}

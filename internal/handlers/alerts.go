package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultAlertPageSize = 20

// AlertLister pages through a user's alerts, newest first
type AlertLister interface {
	ListUserAlerts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.SecurityAlert, int, error)
}

// AlertHandler serves the read side used by triage tooling
type AlertHandler struct {
	service AlertLister
	logger  *slog.Logger
}

// NewAlertHandler creates a new AlertHandler
func NewAlertHandler(service AlertLister, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		logger:  logger,
	}
}

// AlertResponse represents a security alert in the HTTP response
type AlertResponse struct {
	ID                   string                 `json:"id"`
	UserID               string                 `json:"user_id"`
	AlertType            string                 `json:"alert_type"`
	Severity             string                 `json:"severity"`
	Details              string                 `json:"details"`
	SourceLoginAttemptID string                 `json:"source_login_attempt_id"`
	Metadata             map[string]interface{} `json:"metadata"`
	CreatedAt            string                 `json:"created_at"`
	Resolved             bool                   `json:"resolved"`
}

// ListAlertsResponse represents a page of alerts
type ListAlertsResponse struct {
	Alerts []*AlertResponse `json:"alerts"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func alertModelToResponse(alert *models.SecurityAlert) *AlertResponse {
	return &AlertResponse{
		ID:                   alert.ID.String(),
		UserID:               alert.UserID.String(),
		AlertType:            string(alert.AlertType),
		Severity:             string(alert.Severity),
		Details:              alert.Details,
		SourceLoginAttemptID: alert.SourceLoginAttemptID.String(),
		Metadata:             alert.Metadata,
		CreatedAt:            alert.CreatedAt.UTC().Format(time.RFC3339),
		Resolved:             alert.Resolved,
	}
}

// ListUserAlerts returns a page of a user's alerts
//
// @Summary List alerts for a user
// @Param id path string true "User ID"
// @Param limit query int false "Page size (1-100)"
// @Param offset query int false "Offset"
// @Produce json
// @Success 200 {object} ListAlertsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /v1/users/{id}/alerts [get]
func (h *AlertHandler) ListUserAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	limit, err := queryInt(r, "limit", defaultAlertPageSize)
	if err != nil {
		pkghttp.WriteBadRequest(w, "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		pkghttp.WriteBadRequest(w, "offset must be an integer")
		return
	}

	alerts, total, err := h.service.ListUserAlerts(r.Context(), userID, limit, offset)
	if err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "limit must be between 1 and 100 and offset cannot be negative")
			return
		}
		h.logger.Error("failed to list alerts",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to list alerts")
		return
	}

	resp := ListAlertsResponse{
		Alerts: make([]*AlertResponse, 0, len(alerts)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, alert := range alerts {
		resp.Alerts = append(resp.Alerts, alertModelToResponse(alert))
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(raw)
}

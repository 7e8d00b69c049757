package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/BradenHooton/loginsentry/internal/services"
	pkghttp "github.com/BradenHooton/loginsentry/pkg/http"
	"github.com/google/uuid"
)

const maxLoginEventBytes = 64 << 10

// LoginRecorder records a reported login attempt and queues it for detection
type LoginRecorder interface {
	RecordLoginAttempt(ctx context.Context, event services.LoginEvent) *models.LoginAttempt
}

// LoginEventHandler accepts login events from the authentication subsystem
type LoginEventHandler struct {
	recorder LoginRecorder
	ipConfig *pkghttp.IPConfig
}

// NewLoginEventHandler creates a new LoginEventHandler
func NewLoginEventHandler(recorder LoginRecorder, ipConfig *pkghttp.IPConfig) *LoginEventHandler {
	return &LoginEventHandler{
		recorder: recorder,
		ipConfig: ipConfig,
	}
}

// LoginEventRequest is one authentication attempt as seen by the auth subsystem
type LoginEventRequest struct {
	UserID            *string    `json:"user_id" validate:"omitempty,uuid"`
	Email             string     `json:"email" validate:"omitempty,max=320"`
	Timestamp         *time.Time `json:"timestamp"`
	IPAddress         string     `json:"ip_address" validate:"omitempty,ip"`
	UserAgent         string     `json:"user_agent" validate:"max=1024"`
	AcceptLanguage    string     `json:"accept_language" validate:"max=256"`
	AcceptEncoding    string     `json:"accept_encoding" validate:"max=256"`
	DeviceFingerprint *string    `json:"device_fingerprint" validate:"omitempty,max=128"`
	Country           *string    `json:"country" validate:"omitempty,max=100"`
	City              *string    `json:"city" validate:"omitempty,max=100"`
	Latitude          *float64   `json:"latitude" validate:"required_with=Longitude,omitempty,gte=-90,lte=90"`
	Longitude         *float64   `json:"longitude" validate:"required_with=Latitude,omitempty,gte=-180,lte=180"`
	Outcome           string     `json:"outcome" validate:"required,oneof=success failure mfa_required locked"`
	FailureReason     *string    `json:"failure_reason" validate:"omitempty,max=255"`
}

// LoginEventResponse acknowledges an ingested event. Recorded is false when
// storage failed; the caller's login flow must not depend on it.
type LoginEventResponse struct {
	ID       *string `json:"id,omitempty"`
	Recorded bool    `json:"recorded"`
}

// Ingest records a login event
//
// @Summary Ingest a login event
// @Accept json
// @Produce json
// @Success 202 {object} LoginEventResponse
// @Failure 400 {object} ErrorResponse
// @Router /v1/login-events [post]
func (h *LoginEventHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginEventBytes)

	var req LoginEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if fieldErrors := ValidateRequest(req); len(fieldErrors) > 0 {
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_failed", "Invalid login event", summarize(fieldErrors))
		return
	}

	event := h.toEvent(r, req)
	if event.IPAddress == "" {
		pkghttp.WriteBadRequest(w, "Unable to determine client IP address")
		return
	}

	attempt := h.recorder.RecordLoginAttempt(r.Context(), event)
	if attempt == nil {
		pkghttp.WriteJSON(w, http.StatusAccepted, LoginEventResponse{Recorded: false})
		return
	}

	id := attempt.ID.String()
	pkghttp.WriteJSON(w, http.StatusAccepted, LoginEventResponse{ID: &id, Recorded: true})
}

func (h *LoginEventHandler) toEvent(r *http.Request, req LoginEventRequest) services.LoginEvent {
	event := services.LoginEvent{
		Email:             req.Email,
		UserAgent:         req.UserAgent,
		AcceptLanguage:    req.AcceptLanguage,
		AcceptEncoding:    req.AcceptEncoding,
		DeviceFingerprint: req.DeviceFingerprint,
		Country:           req.Country,
		City:              req.City,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		Outcome:           models.LoginOutcome(req.Outcome),
		FailureReason:     req.FailureReason,
	}

	if req.UserID != nil {
		if id, err := uuid.Parse(*req.UserID); err == nil {
			event.UserID = &id
		}
	}

	if req.Timestamp != nil {
		event.Timestamp = *req.Timestamp
	}

	// The reporting service may omit the address when it is itself the proxy
	raw := req.IPAddress
	if raw == "" {
		raw = pkghttp.ExtractClientIP(r, h.ipConfig)
	}
	if ip, ok := pkghttp.NormalizeIP(raw); ok {
		event.IPAddress = ip
	}

	return event
}

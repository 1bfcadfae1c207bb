package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/campus-api/internal/authz"
	"github.com/stanstork/campus-api/internal/models"
	"github.com/stanstork/campus-api/internal/notification"
)

type NotificationHandler struct {
	service notification.Service
	logger  zerolog.Logger
}

func NewNotificationHandler(service notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

type dispatchRequest struct {
	Audience models.AudienceSpec `json:"audience"`
	Type     string              `json:"type"`
	Title    string              `json:"title"`
	Message  string              `json:"message"`
	Payload  json.RawMessage     `json:"payload,omitempty"`
}

func (req dispatchRequest) content() models.Content {
	return models.Content{Type: req.Type, Title: req.Title, Message: req.Message, Payload: req.Payload}
}

type retryRequest struct {
	RecipientIDs []string        `json:"recipient_ids"`
	Type         string          `json:"type"`
	Title        string          `json:"title"`
	Message      string          `json:"message"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type failedRecipient struct {
	RecipientID string `json:"recipient_id"`
	Error       string `json:"error"`
}

type partialResponse struct {
	Succeeded []notification.Delivery `json:"succeeded"`
	Failed    []failedRecipient       `json:"failed"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	limit := queryInt(r, "limit", 25)
	offset := queryInt(r, "offset", 0)

	page, err := h.service.List(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	if page.Notifications == nil {
		page.Notifications = []models.Notification{}
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if notifID == "" {
		writeError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	updated, err := h.service.MarkRead(r.Context(), notifID, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to mark notification as read")
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"updated": updated})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	updated, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to mark all notifications as read")
		writeError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (h *NotificationHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	senderID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Dispatch(r.Context(), &senderID, req.Audience, req.content())
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Retry re-sends content to the recipients listed in the body, typically the
// failed half of an earlier 207 response.
func (h *NotificationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	senderID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req retryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	previous := &notification.PartialDispatchError{}
	for _, id := range req.RecipientIDs {
		previous.Failed = append(previous.Failed, notification.FailedDelivery{RecipientID: id})
	}
	content := models.Content{Type: req.Type, Title: req.Title, Message: req.Message, Payload: req.Payload}

	result, err := h.service.RetryFailed(r.Context(), &senderID, previous, content)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *NotificationHandler) writeDispatchError(w http.ResponseWriter, err error) {
	var (
		verr    *notification.ValidationError
		derr    *notification.DirectoryError
		partial *notification.PartialDispatchError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, notification.ErrNoRecipients):
		writeError(w, http.StatusUnprocessableEntity, "no recipients")
	case errors.As(err, &derr):
		h.logger.Error().Err(err).Msg("directory lookup failed")
		writeError(w, http.StatusBadGateway, "directory unavailable")
	case errors.As(err, &partial):
		resp := partialResponse{
			Succeeded: partial.Succeeded,
			Failed:    make([]failedRecipient, 0, len(partial.Failed)),
		}
		if resp.Succeeded == nil {
			resp.Succeeded = []notification.Delivery{}
		}
		for _, f := range partial.Failed {
			msg := "unknown error"
			if f.Err != nil {
				msg = f.Err.Error()
			}
			resp.Failed = append(resp.Failed, failedRecipient{RecipientID: f.RecipientID, Error: msg})
		}
		writeJSON(w, http.StatusMultiStatus, resp)
	default:
		h.logger.Error().Err(err).Msg("dispatch failed")
		writeError(w, http.StatusInternalServerError, "dispatch failed")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

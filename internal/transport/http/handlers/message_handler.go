package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
	"github.com/vedran77/chorus/pkg/validator"
)

// MessageHandler is the canonical write path for room messages. The room
// is addressed by the roomId query parameter on every route.
type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomQuery(w, r)
	if !ok {
		return
	}

	var input service.SendMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateMessage(input.Content, input.FileURL); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), userID, roomID, input)
	if err != nil {
		writeServiceError(w, r, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomQuery(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var input service.ListMessagesInput
	for name, dst := range map[string]**int64{"before": &input.Before, "after": &input.After} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		seq, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seq < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_CURSOR", "Invalid "+name+" cursor")
			return
		}
		*dst = &seq
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			input.Limit = l
		}
	}

	page, err := h.messageService.List(r.Context(), userID, roomID, input)
	if err != nil {
		writeServiceError(w, r, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomQuery(w, r)
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, r, "messageId", "message")
	if !ok {
		return
	}

	// Content is checked by the service after the author check, so a
	// forbidden edit answers 403 whatever the body holds.
	var input service.EditMessageInput
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.messageService.Edit(r.Context(), userID, roomID, messageID, input)
	if err != nil {
		writeServiceError(w, r, "edit message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// Delete answers 200 with the tombstone, also when it was already deleted.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := roomQuery(w, r)
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, r, "messageId", "message")
	if !ok {
		return
	}

	msg, err := h.messageService.Delete(r.Context(), userID, roomID, messageID)
	if err != nil {
		writeServiceError(w, r, "delete message", err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func roomQuery(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("roomId")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ROOM", "roomId query parameter is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid room ID")
		return uuid.Nil, false
	}
	return id, true
}

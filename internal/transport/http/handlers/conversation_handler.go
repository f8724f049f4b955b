package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
}

func NewConversationHandler(conversationService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// Start finds or creates the conversation with another server member.
func (h *ConversationHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	var input service.StartConversationInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.MemberID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "MISSING_MEMBER", "member_id is required")
		return
	}

	conv, err := h.conversationService.GetOrCreate(r.Context(), userID, serverID, input)
	if err != nil {
		writeServiceError(w, r, "start conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

package handlers

import (
	"net/http"

	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
)

type MediaHandler struct {
	roomService *service.RoomService
}

func NewMediaHandler(roomService *service.RoomService) *MediaHandler {
	return &MediaHandler{roomService: roomService}
}

func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := pathUUID(w, r, "roomId", "room")
	if !ok {
		return
	}

	media, err := h.roomService.Media(r.Context(), userID, roomID)
	if err != nil {
		writeServiceError(w, r, "media room", err)
		return
	}

	writeJSON(w, http.StatusOK, media)
}

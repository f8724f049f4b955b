package handlers

import (
	"net/http"

	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
	"github.com/vedran77/chorus/pkg/validator"
)

type ChannelHandler struct {
	channelService *service.ChannelService
}

func NewChannelHandler(channelService *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelService: channelService}
}

func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	var input service.CreateChannelInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateChannel(input.Name, string(input.Type)); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	ch, err := h.channelService.Create(r.Context(), userID, serverID, input)
	if err != nil {
		writeServiceError(w, r, "create channel", err)
		return
	}

	writeJSON(w, http.StatusCreated, ch)
}

func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	channels, err := h.channelService.List(r.Context(), userID, serverID)
	if err != nil {
		writeServiceError(w, r, "list channels", err)
		return
	}

	writeJSON(w, http.StatusOK, channels)
}

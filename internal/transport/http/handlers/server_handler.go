package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/internal/transport/http/middleware"
	"github.com/vedran77/chorus/pkg/validator"
)

type ServerHandler struct {
	serverService *service.ServerService
}

func NewServerHandler(serverService *service.ServerService) *ServerHandler {
	return &ServerHandler{serverService: serverService}
}

func (h *ServerHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateServerInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := validator.ValidateServer(input.Name); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	server, err := h.serverService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, r, "create server", err)
		return
	}

	writeJSON(w, http.StatusCreated, server)
}

func (h *ServerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	servers, err := h.serverService.ListByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "list servers", err)
		return
	}

	writeJSON(w, http.StatusOK, servers)
}

func (h *ServerHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	server, err := h.serverService.Get(r.Context(), userID, serverID)
	if err != nil {
		writeServiceError(w, r, "get server", err)
		return
	}

	writeJSON(w, http.StatusOK, server)
}

func (h *ServerHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	var input service.UpdateServerInput
	if !decodeJSON(w, r, &input) {
		return
	}
	if input.Name != nil {
		if errs := validator.ValidateServer(*input.Name); errs.HasErrors() {
			writeValidationErrors(w, errs)
			return
		}
	}

	server, err := h.serverService.Update(r.Context(), userID, serverID, input)
	if err != nil {
		writeServiceError(w, r, "update server", err)
		return
	}

	writeJSON(w, http.StatusOK, server)
}

func (h *ServerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	if err := h.serverService.Delete(r.Context(), userID, serverID); err != nil {
		writeServiceError(w, r, "delete server", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ServerHandler) RegenerateInvite(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	server, err := h.serverService.RegenerateInvite(r.Context(), userID, serverID)
	if err != nil {
		writeServiceError(w, r, "regenerate invite", err)
		return
	}

	writeJSON(w, http.StatusOK, server)
}

func (h *ServerHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	server, err := h.serverService.JoinByInvite(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, r, "join server", err)
		return
	}

	writeJSON(w, http.StatusOK, server)
}

func (h *ServerHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}

	if err := h.serverService.Leave(r.Context(), userID, serverID); err != nil {
		writeServiceError(w, r, "leave server", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ServerHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}
	memberID, ok := pathUUID(w, r, "memberId", "member")
	if !ok {
		return
	}

	var input service.UpdateMemberInput
	if !decodeJSON(w, r, &input) {
		return
	}

	member, err := h.serverService.UpdateMemberRole(r.Context(), userID, serverID, memberID, input)
	if err != nil {
		writeServiceError(w, r, "update member", err)
		return
	}

	writeJSON(w, http.StatusOK, member)
}

func (h *ServerHandler) KickMember(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	serverID, ok := pathUUID(w, r, "id", "server")
	if !ok {
		return
	}
	memberID, ok := pathUUID(w, r, "memberId", "member")
	if !ok {
		return
	}

	if err := h.serverService.KickMember(r.Context(), userID, serverID, memberID); err != nil {
		writeServiceError(w, r, "kick member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

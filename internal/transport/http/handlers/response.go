package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vedran77/chorus/internal/domain"
	"github.com/vedran77/chorus/internal/service"
	"github.com/vedran77/chorus/pkg/validator"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func writeValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"code":   "VALIDATION_ERROR",
			"fields": errs,
		},
	})
}

// errorKinds maps domain error kinds to HTTP responses, checked in order.
var errorKinds = []struct {
	kind   error
	status int
	code   string
	text   string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "You do not have access to this resource"},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{domain.ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request"},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT", "Conflicting update, retry the request"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", "Service temporarily unavailable"},
}

// writeServiceError answers with the status of err's kind. Unknown errors
// are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.kind) {
			msg, ok := service.Describe(err)
			if !ok {
				msg = k.text
			}
			writeError(w, k.status, k.code, msg)
			return
		}
	}

	slog.ErrorContext(r.Context(), "request failed", "op", op, "err", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

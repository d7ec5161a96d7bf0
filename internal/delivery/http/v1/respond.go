package v1

import (
	"net/http"

	"shopfront-backend/internal/delivery/http/middleware"
	"shopfront-backend/internal/domain"
	"shopfront-backend/pkg/logger"
	"shopfront-backend/pkg/utils"
)

func respondJSON(w http.ResponseWriter, status int, message string, data any) {
	utils.WriteJSON(w, status, domain.Response{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

func respondPage(w http.ResponseWriter, data any, page domain.Pagination) {
	utils.WriteJSON(w, http.StatusOK, domain.Response{
		Success:    true,
		StatusCode: http.StatusOK,
		Data:       data,
		Meta:       page,
	})
}

// respondError maps a domain error kind onto a status. Internal errors are
// logged with their cause and surface only a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindBadRequest:
		status = http.StatusBadRequest
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindConflict:
		status = http.StatusConflict
	default:
		logger.WithContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	utils.WriteError(w, status, domain.PublicMessage(err))
}

// currentUser writes a 401 and returns false when no principal is present.
func currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := utils.DecodeJSON(r, dst); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

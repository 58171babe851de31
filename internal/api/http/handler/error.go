package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keysmith-dev/keysmith-server/internal/model"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func statusForCode(code string) int {
	switch code {
	case model.CodeAuthenticationFailed:
		return http.StatusUnauthorized
	case model.CodeInsufficientPermissions, model.CodeMissingAccess, model.CodeKeyMismatch, model.CodeVerificationRequired:
		return http.StatusForbidden
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeAlreadyExists:
		return http.StatusConflict
	case model.CodeInvalidRequest:
		return http.StatusBadRequest
	case model.CodeInviteExpired:
		return http.StatusGone
	case model.CodeDecryptionFailed:
		return http.StatusUnprocessableEntity
	case model.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps service errors to HTTP statuses. Unknown errors become
// an opaque 500 so internals never leak.
func writeError(w http.ResponseWriter, err error) {
	if apiErr := model.AsError(err); apiErr != nil {
		writeJSON(w, statusForCode(apiErr.Code), errorBody{Code: apiErr.Code, Message: apiErr.Message})
		return
	}
	if errors.Is(err, model.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Code: model.CodeNotFound, Message: "not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: model.CodeServerError, Message: "internal server error"})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Code: model.CodeInvalidRequest, Message: message})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, errorBody{Code: model.CodeAuthenticationFailed, Message: "authentication required"})
}

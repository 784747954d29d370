package http

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jeseias/djezyas/internal/apperr"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondAppError maps service errors onto the HTTP surface. Anything that
// is not an application error is an internal error and its detail stays out
// of the response body.
func respondAppError(w http.ResponseWriter, err error) {
	if appErr := apperr.From(err); appErr != nil {
		respondError(w, appErr.Status, appErr.Code, appErr.Message)
		return
	}
	zap.L().Error("unhandled error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

// Package api exposes the claim workflow over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tcar-claims-service/pkg/apperror"
	"tcar-claims-service/pkg/logger"
)

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error   string                 `json:"error"`
	Code    apperror.Code          `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps err onto its HTTP status. Errors outside the taxonomy are
// reported as internal without leaking their text.
func respondError(w http.ResponseWriter, log logger.Logger, err error) {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal("internal server error", err)
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "code", appErr.Code, "error", err)
	}

	respondJSON(w, status, errorBody{
		Error:   appErr.Message,
		Code:    appErr.Code,
		Details: appErr.Details,
	})
}

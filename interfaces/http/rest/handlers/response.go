package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "schemacanvas-backend/pkg/errors"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError maps an AppError to its HTTP status; anything untyped becomes
// a 500 with a generic message so internals never leak.
func respondError(w http.ResponseWriter, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		respondJSON(w, appErr.HTTPStatus, errorBody{
			Type:    string(appErr.Type),
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}
	respondJSON(w, http.StatusInternalServerError, errorBody{
		Type:    string(apperrors.ErrorTypeInternal),
		Message: "internal error",
	})
}

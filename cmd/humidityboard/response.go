package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

// respondWithJSON sends a JSON success response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondWithError sends the error object with the status carried by apiErr
func respondWithError(w http.ResponseWriter, apiErr *models.APIError) {
	respondWithJSON(w, apiErr.StatusCode, apiErr)
}

func newAPIError(code models.ErrorCode, message string, status int) *models.APIError {
	return &models.APIError{Code: code, Message: message, StatusCode: status}
}

package main

import (
	"errors"
	"mime"
	"net/http"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

const maxRecordBodyBytes = 64 << 10

// recordReadingHandler stores one reading posted as
// {"value": number, "location": string}
func (rm *RouteManager) recordReadingHandler(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r.Header.Get("Content-Type")) {
		respondWithError(w, newAPIError(models.ErrorCodeUnsupportedMediaType,
			"Content-Type must be application/json", http.StatusUnsupportedMediaType))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRecordBodyBytes)

	req, err := models.DecodeRecordRequest(r.Body)
	if err != nil {
		var verr *models.ValidationError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &verr):
			respondWithError(w, newAPIError(models.ErrorCodeValidationFailed, verr.Error(), http.StatusBadRequest))
		case errors.As(err, &maxErr):
			respondWithError(w, newAPIError(models.ErrorCodeBadRequest, "Request body too large", http.StatusBadRequest))
		default:
			respondWithError(w, newAPIError(models.ErrorCodeBadRequest, "Malformed JSON body", http.StatusBadRequest))
		}
		return
	}

	reading, err := rm.store.StoreReading(r.Context(), req.Value, req.Location)
	if err != nil {
		rm.logger.Error("failed to store reading",
			"location", req.Location,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		respondWithError(w, newAPIError(models.ErrorCodeInternalServerError,
			"Failed to store reading", http.StatusInternalServerError))
		return
	}

	respondWithJSON(w, http.StatusCreated, reading)
}

// listReadingsHandler returns the newest readings as a JSON array
func (rm *RouteManager) listReadingsHandler(w http.ResponseWriter, r *http.Request) {
	readings, err := rm.store.GetLatestReadings(r.Context(), models.DefaultListLimit)
	if err != nil {
		rm.logger.Error("failed to list readings",
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		respondWithError(w, newAPIError(models.ErrorCodeInternalServerError,
			"Failed to fetch readings", http.StatusInternalServerError))
		return
	}

	if readings == nil {
		readings = []models.Reading{}
	}

	respondWithJSON(w, http.StatusOK, readings)
}

func isJSONContentType(header string) bool {
	if header == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(header)
	return err == nil && mediaType == "application/json"
}

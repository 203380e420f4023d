package main

import (
	"net/http"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

// healthHandler returns server health status
func (rm *RouteManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := models.HealthStatus{Status: models.HealthStatusOK, Database: rm.store.IsConnectionHealthy()}

	status := http.StatusOK
	if !health.Database {
		health.Status = models.HealthStatusDegraded
		status = http.StatusServiceUnavailable
	}

	respondWithJSON(w, status, health)
}

func (rm *RouteManager) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, newAPIError(models.ErrorCodeNotFound, "Not found", http.StatusNotFound))
}

func (rm *RouteManager) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, newAPIError(models.ErrorCodeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed))
}

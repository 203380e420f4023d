package models

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// HealthStatus is the body of the health endpoint
type HealthStatus struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
}

// Healthy reports whether the service and its database are reachable
func (h HealthStatus) Healthy() bool {
	return h.Status == HealthStatusOK && h.Database
}

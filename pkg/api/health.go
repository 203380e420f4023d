package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

// Health checks if the API is healthy. A degraded server answers 503 with a
// regular status body, which is returned without error.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		Get(healthPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusServiceUnavailable:
	default:
		return nil, apiError(resp)
	}

	var health models.HealthStatus
	if err := json.Unmarshal(resp.Body(), &health); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &health, nil
}

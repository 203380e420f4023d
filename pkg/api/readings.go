package api

import (
	"context"
	"fmt"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

// RecordReading stores one humidity reading and returns the stored row
func (c *Client) RecordReading(ctx context.Context, value float64, location string) (models.Reading, error) {
	var reading models.Reading

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(models.RecordRequest{Value: value, Location: location}).
		SetResult(&reading).
		SetError(&models.APIError{}).
		Post(readingsPath)
	if err != nil {
		return models.Reading{}, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		return models.Reading{}, apiError(resp)
	}

	return reading, nil
}

// ListReadings returns the latest readings, newest first
func (c *Client) ListReadings(ctx context.Context) ([]models.Reading, error) {
	readings := []models.Reading{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&readings).
		SetError(&models.APIError{}).
		Get(readingsPath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.IsError() {
		return nil, apiError(resp)
	}

	return readings, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/udec-estadio/humidityboard/pkg/models"
)

const readingColumns = `id, value, location, "timestamp"`

// StoreReading inserts a humidity reading and returns the stored row with
// its generated id and server-side timestamp.
func (dm *DatabaseManager) StoreReading(ctx context.Context, value float64, location string) (models.Reading, error) {
	query := `
        INSERT INTO readings (value, location)
        VALUES ($1, $2)
        RETURNING ` + readingColumns

	rows, err := dm.QueryWithHealthCheck(ctx, query, value, location)
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Reading{}, fmt.Errorf("failed to insert reading: %w", err)
		}
		return models.Reading{}, fmt.Errorf("failed to insert reading: %w", sql.ErrNoRows)
	}

	reading, err := scanReading(rows)
	if err != nil {
		return models.Reading{}, fmt.Errorf("failed to scan inserted reading: %w", err)
	}

	return reading, rows.Err()
}

// GetLatestReadings returns up to limit readings, newest first. Ties on
// timestamp are broken by id so insertion order is preserved.
func (dm *DatabaseManager) GetLatestReadings(ctx context.Context, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		limit = models.DefaultListLimit
	}

	query := `
        SELECT ` + readingColumns + `
        FROM readings
        ORDER BY "timestamp" DESC, id DESC
        LIMIT $1
    `

	rows, err := dm.QueryWithHealthCheck(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	readings := make([]models.Reading, 0, limit)
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	return readings, rows.Err()
}

// ListReadings returns the default window of latest readings
func (dm *DatabaseManager) ListReadings(ctx context.Context) ([]models.Reading, error) {
	return dm.GetLatestReadings(ctx, models.DefaultListLimit)
}

// CountReadings returns the total number of stored readings
func (dm *DatabaseManager) CountReadings(ctx context.Context) (int64, error) {
	rows, err := dm.QueryWithHealthCheck(ctx, "SELECT COUNT(*) FROM readings")
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	defer rows.Close()

	var count int64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan count: %w", err)
		}
	}

	return count, rows.Err()
}

func scanReading(rows *sql.Rows) (models.Reading, error) {
	var r models.Reading
	if err := rows.Scan(&r.ID, &r.Value, &r.Location, &r.Timestamp); err != nil {
		return models.Reading{}, err
	}
	r.Timestamp = r.Timestamp.UTC()
	return r, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/udec-estadio/humidityboard/pkg/config"
)

// ErrMissingDatabaseURL is returned when no connection string is configured
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set")

const healthCheckInterval = 10 * time.Second

// DatabaseManager owns the connection pool and all database operations
type DatabaseManager struct {
	db            *sql.DB
	healthChecker *HealthChecker
	logger        *slog.Logger
}

// NewDatabaseManager opens the connection pool and starts health checking
func NewDatabaseManager(cfg config.DatabaseConfig, logger *slog.Logger) (*DatabaseManager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dm := &DatabaseManager{
		db:            db,
		healthChecker: NewHealthChecker(db, healthCheckInterval, logger),
		logger:        logger,
	}

	dm.healthChecker.Start()

	return dm, nil
}

// GetDB returns the underlying connection pool
func (dm *DatabaseManager) GetDB() *sql.DB {
	return dm.db
}

// Close stops health checking and drains the connection pool
func (dm *DatabaseManager) Close() error {
	if dm.healthChecker != nil {
		dm.healthChecker.Stop()
	}
	if dm.db != nil {
		return dm.db.Close()
	}
	return nil
}

// QueryWithHealthCheck executes a query with connection health verification
func (dm *DatabaseManager) QueryWithHealthCheck(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.db.QueryContext(ctx, query, args...)
}

// ExecWithHealthCheck executes a statement with connection health verification
func (dm *DatabaseManager) ExecWithHealthCheck(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if err := dm.healthChecker.EnsureConnection(ctx); err != nil {
		return nil, err
	}

	return dm.db.ExecContext(ctx, query, args...)
}

// IsConnectionHealthy returns the current health status
func (dm *DatabaseManager) IsConnectionHealthy() bool {
	return dm.healthChecker.IsHealthy()
}

// Init initializes the database with migrations
func (dm *DatabaseManager) Init() error {
	dm.logger.Info("running database migrations")

	runner, err := NewMigrationsRunner(dm.db)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	runner.SetLogger(dm.logger)

	if err := runner.Run(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dm.logger.Info("database initialization completed")
	return nil
}

func connectDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, ErrMissingDatabaseURL
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

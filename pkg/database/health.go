package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrConnectionUnhealthy is returned while the last health check failed
var ErrConnectionUnhealthy = errors.New("database connection is not healthy")

const (
	checkTimeout = 5 * time.Second

	// While unhealthy, requests trigger at most one ping per recheckAfter
	recheckAfter   = time.Second
	recheckTimeout = time.Second
)

// HealthChecker monitors database connection health.
//
// It only observes the pool; database/sql replaces broken connections on its
// own, so a failed check never swaps or reopens the *sql.DB.
type HealthChecker struct {
	db            *sql.DB
	checkInterval time.Duration
	logger        *slog.Logger
	stopChan      chan struct{}
	stopOnce      sync.Once
	ticker        *time.Ticker
	ping          func(ctx context.Context) error
	recheck       singleflight.Group
	mu            sync.RWMutex
	isHealthy     bool
	lastCheck     time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(db *sql.DB, checkInterval time.Duration, logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{
		db:            db,
		checkInterval: checkInterval,
		logger:        logger,
		stopChan:      make(chan struct{}),
		ping:          db.PingContext,
		isHealthy:     true,
	}
}

// Start begins monitoring the database connection
func (chc *HealthChecker) Start() {
	chc.ticker = time.NewTicker(chc.checkInterval)

	go func() {
		for {
			select {
			case <-chc.stopChan:
				chc.ticker.Stop()
				return
			case <-chc.ticker.C:
				_ = chc.checkConnection(checkTimeout)
			}
		}
	}()
}

// Stop stops monitoring the database connection. It is safe to call more than once.
func (chc *HealthChecker) Stop() {
	chc.stopOnce.Do(func() {
		close(chc.stopChan)
	})
}

func (chc *HealthChecker) checkConnection(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := chc.ping(ctx)
	chc.setHealthy(err)
	return err
}

func (chc *HealthChecker) setHealthy(err error) {
	chc.mu.Lock()
	defer chc.mu.Unlock()

	chc.lastCheck = time.Now()

	if err != nil {
		if chc.isHealthy {
			chc.logger.Error("database health check failed", "error", err)
		}
		chc.isHealthy = false
		return
	}

	if !chc.isHealthy {
		chc.logger.Info("database connection restored")
	}
	chc.isHealthy = true
}

// IsHealthy returns the current health status of the connection
func (chc *HealthChecker) IsHealthy() bool {
	chc.mu.RLock()
	defer chc.mu.RUnlock()
	return chc.isHealthy
}

// EnsureConnection fails fast while the pool is known to be unreachable.
// When the last check is older than recheckAfter the pool is pinged again,
// so a recovered database is usable before the next scheduled check.
func (chc *HealthChecker) EnsureConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if chc.IsHealthy() {
		return nil
	}

	chc.mu.RLock()
	due := time.Since(chc.lastCheck) >= recheckAfter
	chc.mu.RUnlock()
	if !due {
		return ErrConnectionUnhealthy
	}

	ch := chc.recheck.DoChan("ping", func() (interface{}, error) {
		return nil, chc.checkConnection(recheckTimeout)
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionUnhealthy, res.Err)
		}
		return nil
	}
}

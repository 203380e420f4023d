package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migration represents a single schema migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// MigrationsRunner applies embedded .up.sql files in version order
type MigrationsRunner struct {
	db         *sql.DB
	migrations []Migration
	logger     *slog.Logger
	saved      *slog.Logger
}

// NewMigrationsRunner creates a new migration runner
func NewMigrationsRunner(db *sql.DB) (*MigrationsRunner, error) {
	runner := &MigrationsRunner{
		db:         db,
		migrations: []Migration{},
		logger:     slog.Default(),
	}

	if err := runner.loadMigrations(); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return runner, nil
}

// SetLogger replaces the runner's logger
func (r *MigrationsRunner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// DisableLogging silences progress output, used by tests
func (r *MigrationsRunner) DisableLogging() {
	if r.saved == nil {
		r.saved = r.logger
	}
	r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// EnableLogging restores the logger replaced by DisableLogging
func (r *MigrationsRunner) EnableLogging() {
	if r.saved != nil {
		r.logger = r.saved
		r.saved = nil
	}
}

// Migrations returns the loaded migrations sorted by version
func (r *MigrationsRunner) Migrations() []Migration {
	out := make([]Migration, len(r.migrations))
	copy(out, r.migrations)
	return out
}

func (r *MigrationsRunner) loadMigrations() error {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		migration, ok, err := parseMigrationName(entry.Name())
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		content, err := migrationFiles.ReadFile("sql/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		migration.SQL = string(content)

		r.migrations = append(r.migrations, migration)
	}

	sort.Slice(r.migrations, func(i, j int) bool {
		return r.migrations[i].Version < r.migrations[j].Version
	})

	for i := 1; i < len(r.migrations); i++ {
		if r.migrations[i].Version == r.migrations[i-1].Version {
			return fmt.Errorf("duplicate migration version %d", r.migrations[i].Version)
		}
	}

	return nil
}

// parseMigrationName splits "000001_create_readings.up.sql" into version and
// name. Files that are not .up.sql report ok=false.
func parseMigrationName(filename string) (Migration, bool, error) {
	if !strings.HasSuffix(filename, ".up.sql") {
		return Migration{}, false, nil
	}

	prefix, name, found := strings.Cut(strings.TrimSuffix(filename, ".up.sql"), "_")
	if !found || name == "" {
		return Migration{}, false, fmt.Errorf("invalid migration file name: %s", filename)
	}

	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return Migration{}, false, fmt.Errorf("invalid migration version in %s", filename)
	}

	return Migration{Version: version, Name: name}, true, nil
}

func (r *MigrationsRunner) createMigrationsTable(ctx context.Context) error {
	query := `
        CREATE TABLE IF NOT EXISTS schema_migrations (
            version INTEGER PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        )
    `
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// AppliedVersions returns the set of migration versions already recorded
func (r *MigrationsRunner) AppliedVersions(ctx context.Context) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := r.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// Run executes all pending migrations
func (r *MigrationsRunner) Run() error {
	return r.RunContext(context.Background())
}

// RunContext executes all pending migrations, each in its own transaction
func (r *MigrationsRunner) RunContext(ctx context.Context) error {
	if err := r.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.AppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := 0
	for _, migration := range r.migrations {
		if !applied[migration.Version] {
			pending++
		}
	}

	if pending == 0 {
		r.logger.Info("no pending migrations")
		return nil
	}

	r.logger.Info("found pending migrations", "count", pending)

	for _, migration := range r.migrations {
		if applied[migration.Version] {
			continue
		}

		if err := r.apply(ctx, migration); err != nil {
			return err
		}

		r.logger.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	r.logger.Info("all migrations completed successfully")
	return nil
}

func (r *MigrationsRunner) apply(ctx context.Context, migration Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		migration.Version, migration.Name,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      string
}

// The statements are written to run unchanged on SQLite and PostgreSQL.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_users_table",
		Up: `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				api_key TEXT NOT NULL UNIQUE,
				tier TEXT NOT NULL DEFAULT 'free',
				credits_remaining INTEGER NOT NULL DEFAULT 3,
				credits_used_total INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL,
				last_reset TIMESTAMP NOT NULL
			);
		`,
	},
	{
		Version: 2,
		Name:    "create_analyses_table",
		Up: `
			CREATE TABLE IF NOT EXISTS analyses (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				url TEXT NOT NULL,
				overall_score INTEGER NOT NULL,
				report TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_analyses_user_created ON analyses(user_id, created_at);
		`,
	},
	{
		Version: 3,
		Name:    "create_plans_table",
		Up: `
			CREATE TABLE IF NOT EXISTS plans (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				monthly_credits INTEGER NOT NULL,
				price_cents INTEGER NOT NULL,
				features TEXT NOT NULL
			);
			INSERT INTO plans (id, name, monthly_credits, price_cents, features) VALUES
				('free', 'Free', 3, 0, '["3 analyses per month","Category scores","Top recommendations"]'),
				('starter', 'Starter', 50, 2900, '["50 analyses per month","AI conversion critique","Analysis history"]'),
				('professional', 'Professional', 250, 9900, '["250 analyses per month","AI conversion critique","API access","Priority support"]'),
				('enterprise', 'Enterprise', 1000, 29900, '["1000 analyses per month","AI conversion critique","API access","Dedicated support"]')
			ON CONFLICT (id) DO NOTHING;
		`,
	},
	{
		Version: 4,
		Name:    "create_api_logs_table",
		Up: `
			CREATE TABLE IF NOT EXISTS api_logs (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				endpoint TEXT NOT NULL,
				status_code INTEGER NOT NULL,
				response_time_ms INTEGER NOT NULL,
				created_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_api_logs_user ON api_logs(user_id);
		`,
	},
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	for _, m := range sorted {
		if m.Version <= currentVersion {
			continue
		}
		if err := runMigration(ctx, db, m); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return getCurrentVersion(ctx, s.conn)
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func getCurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func runMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

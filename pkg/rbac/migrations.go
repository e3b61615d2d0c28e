package rbac

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create access_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_roles (
					id BIGSERIAL PRIMARY KEY,
					tag VARCHAR(50) NOT NULL UNIQUE,
					description VARCHAR(256),
					rank INT NOT NULL DEFAULT 0,
					active BOOLEAN NOT NULL DEFAULT TRUE
				);
			`,
		},
		{
			Version:     2,
			Description: "Create access_groups table",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_groups (
					id BIGSERIAL PRIMARY KEY,
					tag VARCHAR(50) NOT NULL UNIQUE,
					description VARCHAR(256)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create access_role_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS access_role_permissions (
					id BIGSERIAL PRIMARY KEY,
					role_id BIGINT NOT NULL REFERENCES access_roles(id) ON DELETE CASCADE,
					group_id BIGINT NOT NULL REFERENCES access_groups(id) ON DELETE CASCADE,
					read BOOLEAN NOT NULL DEFAULT FALSE,
					"create" BOOLEAN NOT NULL DEFAULT FALSE,
					"update" BOOLEAN NOT NULL DEFAULT FALSE,
					"delete" BOOLEAN NOT NULL DEFAULT FALSE,
					UNIQUE(role_id, group_id)
				);

				CREATE INDEX IF NOT EXISTS idx_access_role_permissions_group_id
					ON access_role_permissions(group_id);
			`,
		},
		{
			Version:     4,
			Description: "Create user_access_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_access_roles (
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES access_roles(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_id)
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

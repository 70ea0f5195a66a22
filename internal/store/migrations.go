package store

import (
	"database/sql"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// migration is a single versioned schema step.
type migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

func allMigrations() []migration {
	return []migration{
		{
			Version:     1,
			Description: "sync state tables",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS signals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    signal TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS flags (
    name TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    event_type TEXT NOT NULL CHECK(event_type IN ('CREATE_FILE', 'CREATE_DIR', 'UPDATE', 'DELETE')),
    local_path TEXT NOT NULL,
    remote_path TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING' CHECK(status IN ('PENDING', 'PROCESSING', 'SYNCED', 'BLOCKED')),
    retry_at TIMESTAMP,
    n_retries INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    change_token TEXT,
    old_local_path TEXT,
    old_remote_path TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_jobs_status ON sync_jobs(status, created_at);
CREATE INDEX IF NOT EXISTS idx_sync_jobs_retry_at ON sync_jobs(retry_at);

CREATE TABLE IF NOT EXISTS processing_queue (
    local_path TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS file_state (
    local_path TEXT PRIMARY KEY,
    change_token TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_file_state_prefix ON file_state(local_path);

CREATE TABLE IF NOT EXISTS node_mapping (
    local_path TEXT NOT NULL,
    remote_path TEXT NOT NULL,
    node_uid TEXT NOT NULL,
    parent_node_uid TEXT NOT NULL,
    is_directory BOOLEAN NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (local_path, remote_path)
);

CREATE INDEX IF NOT EXISTS idx_node_mapping_local ON node_mapping(local_path);
CREATE INDEX IF NOT EXISTS idx_node_mapping_remote ON node_mapping(remote_path);
`)
				return err
			},
		},
	}
}

// migrate brings the schema up to the latest version. Applied versions
// are tracked in schema_version so upgrades are idempotent.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var current int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	migrations := allMigrations()
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_version (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"version":     m.Version,
			"description": m.Description,
		}).Info("Applied schema migration")
	}

	return nil
}

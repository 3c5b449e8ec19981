package main

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// migration is one numbered schema change. Its statements run in order in
// a single transaction together with the version record.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations owns every table of the request log. Append only; applied
// versions are never edited.
var migrations = []migration{
	{
		version: 1,
		name:    "create request_log",
		stmts: []string{`
			CREATE TABLE IF NOT EXISTS request_log (
				id VARCHAR PRIMARY KEY,
				method VARCHAR NOT NULL,
				url VARCHAR NOT NULL,
				full_url VARCHAR NOT NULL,
				body TEXT,
				status INTEGER NOT NULL,
				response TEXT,
				error VARCHAR,
				duration_ms BIGINT NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "create entry_tags",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS entry_tags (
				id VARCHAR PRIMARY KEY,
				entry_id VARCHAR NOT NULL,
				tag_key VARCHAR NOT NULL,
				tag_value VARCHAR,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tags_entry ON entry_tags(entry_id)`,
			`CREATE INDEX IF NOT EXISTS idx_tags_key_value ON entry_tags(tag_key, tag_value)`,
		},
	},
	{
		version: 3,
		name:    "index request_log by creation time",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_request_log_created ON request_log(created_at)`,
		},
	},
}

// RunMigrations applies the migrations not yet recorded in
// schema_migrations and returns the resulting schema version.
func RunMigrations(db *sql.DB, logger *zap.Logger) (int, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return 0, err
	}

	version := 0
	for _, m := range migrations {
		if !applied[m.version] {
			if err := applyMigration(db, m); err != nil {
				return version, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
			logger.Info("applied migration", zap.Int("version", m.version), zap.String("name", m.name))
		}
		version = m.version
	}
	return version, nil
}

func appliedVersions(db *sql.DB) (map[int]bool, error) {
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan schema version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
		m.version, m.name, time.Now(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

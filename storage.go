package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"
	"github.com/orian/querybuilder/models"
	"go.uber.org/zap"
)

// DuckDBStorage keeps the request log in DuckDB.
type DuckDBStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ models.Storage = (*DuckDBStorage)(nil)

// NewDuckDBStorage opens the request log at dbPath. An empty path opens an
// in-memory database that is gone when the process exits.
func NewDuckDBStorage(dbPath string, logger *zap.Logger) (*DuckDBStorage, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	version, err := RunMigrations(db, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Debug("request log ready", zap.String("path", dbPath), zap.Int("schema_version", version))

	return &DuckDBStorage{db: db, logger: logger}, nil
}

const entryColumns = `id, method, url, full_url, COALESCE(body, ''), status, COALESCE(response, ''), COALESCE(error, ''), duration_ms, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LogEntry, error) {
	var e models.LogEntry
	var method string
	if err := row.Scan(&e.ID, &method, &e.URL, &e.FullURL, &e.Body, &e.Status, &e.Response, &e.Error, &e.DurationMs, &e.Timestamp); err != nil {
		return nil, err
	}
	e.Method = models.Method(method)
	e.Tags = []*models.EntryTag{}
	return &e, nil
}

// SaveEntry appends an entry to the log.
func (s *DuckDBStorage) SaveEntry(entry *models.LogEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	_, err := s.db.Exec(
		`INSERT INTO request_log (id, method, url, full_url, body, status, response, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Method), entry.URL, entry.FullURL, nullString(entry.Body),
		entry.Status, nullString(entry.Response), nullString(entry.Error), entry.DurationMs, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntry returns the entry with its tags.
func (s *DuckDBStorage) GetEntry(id string) (*models.LogEntry, bool) {
	entry, err := scanEntry(s.db.QueryRow(`SELECT `+entryColumns+` FROM request_log WHERE id = ?`, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load entry", zap.String("entry", id), zap.Error(err))
		}
		return nil, false
	}

	tags, err := s.GetEntryTags(id)
	if err != nil {
		s.logger.Warn("failed to load entry tags", zap.String("entry", id), zap.Error(err))
	} else if tags != nil {
		entry.Tags = tags
	}
	return entry, true
}

// ListEntries returns the newest entries first.
func (s *DuckDBStorage) ListEntries(limit int) ([]*models.LogEntry, error) {
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT %s
		FROM request_log
		ORDER BY created_at DESC
		LIMIT %d
	`, entryColumns, limit))
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return s.collectEntries(rows)
}

// collectEntries scans all rows and attaches the tags of every entry.
func (s *DuckDBStorage) collectEntries(rows *sql.Rows) ([]*models.LogEntry, error) {
	entries := []*models.LogEntry{}
	var ids []string
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		tags, err := s.getTagsForEntries(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load tags: %w", err)
		}

		tagsByEntry := make(map[string][]*models.EntryTag)
		for _, tag := range tags {
			tagsByEntry[tag.EntryID] = append(tagsByEntry[tag.EntryID], tag)
		}
		for _, entry := range entries {
			if tags, ok := tagsByEntry[entry.ID]; ok {
				entry.Tags = tags
			}
		}
	}

	return entries, nil
}

// getTagsForEntries loads the tags of several entries in one query.
func (s *DuckDBStorage) getTagsForEntries(entryIDs []string) ([]*models.EntryTag, error) {
	placeholders := make([]string, len(entryIDs))
	args := make([]any, len(entryIDs))
	for i, id := range entryIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, entry_id, tag_key, COALESCE(tag_value, ''), created_at
		FROM entry_tags
		WHERE entry_id IN (%s)
		ORDER BY created_at ASC
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTags(rows)
}

func (s *DuckDBStorage) Close() error {
	return s.db.Close()
}

// Helper functions
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func generateID() string {
	return uuid.New().String()
}

package main

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/orian/querybuilder/models"
)

var (
	// ErrEntryNotFound is returned when tagging an entry that is not logged.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrTagExists is returned when the entry already carries the tag.
	ErrTagExists = errors.New("tag already exists on this entry")

	// ErrTagNotFound is returned when removing an unknown tag.
	ErrTagNotFound = errors.New("tag not found")

	// ErrReservedTag is returned when a user tag uses the system prefix.
	ErrReservedTag = errors.New("tag key is reserved")
)

// AddTag tags an entry on behalf of a user. Keys under the system prefix
// are refused; the server sets those itself.
func (s *DuckDBStorage) AddTag(entryID, tag string) (*models.EntryTag, error) {
	key, value := models.ParseTag(tag)
	if key == "" {
		return nil, fmt.Errorf("tag key is required")
	}
	if models.IsSystemKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrReservedTag, key)
	}
	return s.insertTag(entryID, key, value)
}

func (s *DuckDBStorage) insertTag(entryID, key, value string) (*models.EntryTag, error) {
	var exists bool
	if err := s.db.QueryRow("SELECT COUNT(*) > 0 FROM request_log WHERE id = ?", entryID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check entry: %w", err)
	}
	if !exists {
		return nil, ErrEntryNotFound
	}

	err := s.db.QueryRow(`
		SELECT COUNT(*) > 0 FROM entry_tags
		WHERE entry_id = ? AND tag_key = ? AND COALESCE(tag_value, '') = ?
	`, entryID, key, value).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing tag: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrTagExists, models.EntryTag{Key: key, Value: value})
	}

	tag := &models.EntryTag{
		ID:        generateID(),
		EntryID:   entryID,
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO entry_tags (id, entry_id, tag_key, tag_value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, tag.ID, tag.EntryID, tag.Key, nullString(tag.Value), tag.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert tag: %w", err)
	}
	return tag, nil
}

// RemoveTag removes a tag by id.
func (s *DuckDBStorage) RemoveTag(tagID string) error {
	result, err := s.db.Exec("DELETE FROM entry_tags WHERE id = ?", tagID)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTagNotFound
	}
	return nil
}

// GetEntryTags gets all tags of an entry, oldest first.
func (s *DuckDBStorage) GetEntryTags(entryID string) ([]*models.EntryTag, error) {
	rows, err := s.db.Query(`
		SELECT id, entry_id, tag_key, COALESCE(tag_value, ''), created_at
		FROM entry_tags
		WHERE entry_id = ?
		ORDER BY created_at ASC
	`, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]*models.EntryTag, error) {
	var tags []*models.EntryTag
	for rows.Next() {
		var tag models.EntryTag
		if err := rows.Scan(&tag.ID, &tag.EntryID, &tag.Key, &tag.Value, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &tag)
	}
	return tags, rows.Err()
}

// GetEntriesByTag finds entries that carry a specific tag, newest first.
func (s *DuckDBStorage) GetEntriesByTag(tag string) ([]*models.LogEntry, error) {
	key, value := models.ParseTag(tag)

	rows, err := s.db.Query(`
		SELECT `+entryColumns+`
		FROM request_log
		WHERE id IN (
			SELECT entry_id FROM entry_tags
			WHERE tag_key = ? AND COALESCE(tag_value, '') = ?
		)
		ORDER BY created_at DESC
	`, key, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries by tag: %w", err)
	}
	defer rows.Close()

	return s.collectEntries(rows)
}

// ToggleStarred toggles the system:starred tag on an entry.
func (s *DuckDBStorage) ToggleStarred(entryID string) (bool, error) {
	var tagID string
	err := s.db.QueryRow(`
		SELECT id FROM entry_tags
		WHERE entry_id = ? AND tag_key = ?
	`, entryID, models.StarredTag).Scan(&tagID)

	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.insertTag(entryID, models.StarredTag, ""); err != nil {
			return false, fmt.Errorf("failed to star entry: %w", err)
		}
		return true, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to check star status: %w", err)
	}

	if err := s.RemoveTag(tagID); err != nil {
		return false, fmt.Errorf("failed to unstar entry: %w", err)
	}
	return false, nil
}

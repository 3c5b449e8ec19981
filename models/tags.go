package models

import (
	"encoding/json"
	"strings"
	"time"
)

const systemTagPrefix = "system:"

// StarredTag is the system tag that marks starred log entries.
const StarredTag = systemTagPrefix + "starred"

// EntryTag annotates a request log entry. Users write tags as "key" or
// "key=value"; keys under the "system:" prefix are set by the server only.
type EntryTag struct {
	ID        string    `json:"id"`
	EntryID   string    `json:"entryId"`
	Key       string    `json:"tagKey"`
	Value     string    `json:"tagValue,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ParseTag splits a tag on its first '=' and trims both halves.
func ParseTag(tag string) (key, value string) {
	key, value, _ = strings.Cut(tag, "=")
	return strings.TrimSpace(key), strings.TrimSpace(value)
}

// IsSystemKey reports whether key is reserved for tags the server sets.
func IsSystemKey(key string) bool {
	return strings.HasPrefix(key, systemTagPrefix)
}

// String renders the tag the way it is typed, so it can be fed back to
// ParseTag or used as a history filter.
func (t EntryTag) String() string {
	if t.Value == "" {
		return t.Key
	}
	return t.Key + "=" + t.Value
}

// System reports whether the server owns the tag.
func (t EntryTag) System() bool {
	return IsSystemKey(t.Key)
}

// MarshalJSON adds the typed form and the system flag for the history view.
func (t EntryTag) MarshalJSON() ([]byte, error) {
	type plain EntryTag
	return json.Marshal(struct {
		plain
		Label  string `json:"label"`
		System bool   `json:"system"`
	}{plain(t), t.String(), t.System()})
}

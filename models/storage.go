package models

// Storage defines the request log of the query builder.
//
// Every completed request submission is appended as a LogEntry. Entries
// can carry tags, and a system tag marks starred entries. The primary
// implementation is DuckDBStorage, which keeps the log in an in-memory
// DuckDB database unless a file path is configured.
//
// The interface is organized into two categories:
//   - Entry management: SaveEntry, GetEntry, ListEntries
//   - Tag management: AddTag, RemoveTag, GetEntryTags, GetEntriesByTag, ToggleStarred
//
// Thread Safety: Implementations should be safe for concurrent use.
type Storage interface {
	// SaveEntry appends an entry to the log.
	//
	// The entry's ID must be set before calling this method.
	SaveEntry(entry *LogEntry) error

	// GetEntry retrieves an entry by its ID, including its tags.
	//
	// Returns the entry and true if found, nil and false otherwise.
	GetEntry(id string) (*LogEntry, bool)

	// ListEntries returns at most limit entries, newest first, with tags.
	ListEntries(limit int) ([]*LogEntry, error)

	// Close releases any resources held by the storage.
	Close() error

	// AddTag adds a tag to an entry.
	//
	// Tag format can be:
	//   - Simple tag: "tagname" (e.g., "baseline")
	//   - Key-value tag: "key=value" (e.g., "profile=bm25")
	//
	// Returns an error if the entry doesn't exist, already has the tag, or
	// the key uses the reserved "system:" prefix.
	AddTag(entryID, tag string) (*EntryTag, error)

	// RemoveTag removes a tag by its ID.
	RemoveTag(tagID string) error

	// GetEntryTags returns all tags of an entry, oldest first.
	GetEntryTags(entryID string) ([]*EntryTag, error)

	// GetEntriesByTag returns entries matching a tag filter, newest first.
	//
	// Tag format:
	//   - "key": Matches entries with this tag key and no value
	//   - "key=value": Matches entries with exact key-value pair
	GetEntriesByTag(tag string) ([]*LogEntry, error)

	// ToggleStarred toggles the "system:starred" tag on an entry and
	// returns the new state.
	ToggleStarred(entryID string) (bool, error)
}

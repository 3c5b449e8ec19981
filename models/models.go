// Package models defines the core of querybuilder, a tool for composing,
// sending and inspecting search API requests: the parameter schema, the
// editable parameter tree with its reducer and text codecs, and the types
// of the request log.
package models

import "time"

// LogEntry records one submitted request and its outcome.
// Entries are immutable once saved.
type LogEntry struct {
	// ID is the unique identifier for this entry (UUID).
	ID string `json:"id"`

	// Method is the HTTP method the request was sent with.
	Method Method `json:"method"`

	// URL is the search endpoint as configured in the editor.
	URL string `json:"url"`

	// FullURL is the URL actually requested, including the query string
	// for GET requests.
	FullURL string `json:"fullUrl"`

	// Body is the JSON body of a POST request. Empty for GET.
	Body string `json:"body,omitempty"`

	// Status is the HTTP status code, 0 when no response arrived.
	Status int `json:"status"`

	// Response is the response payload, re-indented when it was JSON.
	Response string `json:"response,omitempty"`

	// Error describes a transport failure. Empty on success.
	Error string `json:"error,omitempty"`

	// DurationMs is how long the round trip took, in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// Timestamp is when the response (or failure) arrived.
	Timestamp time.Time `json:"timestamp"`

	// Tags contains all tags associated with this entry.
	Tags []*EntryTag `json:"tags,omitempty"`
}

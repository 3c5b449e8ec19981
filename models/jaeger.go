package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoTrace is returned when a response carries no trace to export.
var ErrNoTrace = errors.New("response has no trace, resend the query with trace.level set")

// JaegerDocument is the JSON layout the Jaeger UI imports.
type JaegerDocument struct {
	Data []JaegerTrace `json:"data"`
}

// JaegerTrace is one trace with its spans and processes.
type JaegerTrace struct {
	TraceID   string                   `json:"traceID"`
	Spans     []JaegerSpan             `json:"spans"`
	Processes map[string]JaegerProcess `json:"processes"`
}

// JaegerSpan is a timed operation. Times are in microseconds.
type JaegerSpan struct {
	TraceID       string            `json:"traceID"`
	SpanID        string            `json:"spanID"`
	OperationName string            `json:"operationName"`
	References    []JaegerReference `json:"references"`
	StartTime     int64             `json:"startTime"`
	Duration      int64             `json:"duration"`
	Tags          []JaegerTag       `json:"tags"`
	Logs          []any             `json:"logs"`
	ProcessID     string            `json:"processID"`
	Warnings      []string          `json:"warnings"`
}

// JaegerReference links a span to its parent.
type JaegerReference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceID"`
	SpanID  string `json:"spanID"`
}

// JaegerTag is a key/value annotation.
type JaegerTag struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// JaegerProcess names the service that produced spans.
type JaegerProcess struct {
	ServiceName string      `json:"serviceName"`
	Tags        []JaegerTag `json:"tags"`
}

const (
	jaegerProcessID = "p0"
	jaegerService   = "vespa"
)

type traceEntry struct {
	Message   json.RawMessage `json:"message"`
	Timestamp *float64        `json:"timestamp"`
	Children  []traceEntry    `json:"children"`
}

func (e traceEntry) text() string {
	if len(e.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Message, &s); err == nil {
		return s
	}
	return string(e.Message)
}

// ExportTrace converts a search response produced with tracing enabled
// into a Jaeger document. Trace timestamps are milliseconds relative to
// start. Every group of trace entries becomes a span and every message
// becomes a child span lasting until the next timestamped sibling.
func ExportTrace(response []byte, traceID string, start time.Time) (*JaegerDocument, error) {
	var doc struct {
		Trace *struct {
			Children []traceEntry `json:"children"`
		} `json:"trace"`
	}
	if err := json.Unmarshal(response, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if doc.Trace == nil || len(doc.Trace.Children) == 0 {
		return nil, ErrNoTrace
	}

	e := &exporter{traceID: traceID, base: start.UnixMicro()}
	from, dur := e.window(doc.Trace.Children, e.base)
	rootID := e.span("query", "", from, dur)
	e.walk(doc.Trace.Children, rootID, from)

	return &JaegerDocument{Data: []JaegerTrace{{
		TraceID: traceID,
		Spans:   e.spans,
		Processes: map[string]JaegerProcess{
			jaegerProcessID: {ServiceName: jaegerService, Tags: []JaegerTag{}},
		},
	}}}, nil
}

type exporter struct {
	traceID string
	base    int64
	spans   []JaegerSpan
}

func (e *exporter) at(ms float64) int64 {
	return e.base + int64(ms*1000)
}

func (e *exporter) span(name, parentID string, start, duration int64) string {
	id := fmt.Sprintf("%016x", len(e.spans)+1)
	s := JaegerSpan{
		TraceID:       e.traceID,
		SpanID:        id,
		OperationName: name,
		References:    []JaegerReference{},
		StartTime:     start,
		Duration:      duration,
		Tags:          []JaegerTag{},
		Logs:          []any{},
		ProcessID:     jaegerProcessID,
	}
	if parentID != "" {
		s.References = append(s.References, JaegerReference{RefType: "CHILD_OF", TraceID: e.traceID, SpanID: parentID})
	}
	e.spans = append(e.spans, s)
	return id
}

// window returns the start and duration covered by the timestamps found
// anywhere below entries, or (fallback, 0) when there are none.
func (e *exporter) window(entries []traceEntry, fallback int64) (int64, int64) {
	lo, hi, ok := timestampBounds(entries)
	if !ok {
		return fallback, 0
	}
	return e.at(lo), e.at(hi) - e.at(lo)
}

func timestampBounds(entries []traceEntry) (lo, hi float64, ok bool) {
	for _, entry := range entries {
		if entry.Timestamp != nil {
			if !ok || *entry.Timestamp < lo {
				lo = *entry.Timestamp
			}
			if !ok || *entry.Timestamp > hi {
				hi = *entry.Timestamp
			}
			ok = true
		}
		if clo, chi, cok := timestampBounds(entry.Children); cok {
			if !ok || clo < lo {
				lo = clo
			}
			if !ok || chi > hi {
				hi = chi
			}
			ok = true
		}
	}
	return lo, hi, ok
}

func (e *exporter) walk(entries []traceEntry, parentID string, from int64) {
	for i, entry := range entries {
		if len(entry.Children) > 0 {
			start, dur := e.window(entry.Children, from)
			name := entry.text()
			if name == "" {
				name = "trace"
			}
			id := e.span(name, parentID, start, dur)
			e.walk(entry.Children, id, start)
			continue
		}

		msg := entry.text()
		if msg == "" {
			continue
		}
		start := from
		if entry.Timestamp != nil {
			start = e.at(*entry.Timestamp)
		}
		end := start
		for _, next := range entries[i+1:] {
			if next.Timestamp != nil {
				end = e.at(*next.Timestamp)
				break
			}
		}
		e.span(msg, parentID, start, end-start)
		from = start
	}
}

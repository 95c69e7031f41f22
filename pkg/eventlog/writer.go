// Package eventlog captures the full event stream of each run as an
// append-only JSONL file, one file per run. The log is the audit record of
// what a run actually emitted, independent of what the store aggregated.
package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mlcraft/pkg/proto"
)

// entry is one logged event with its envelope.
type entry struct {
	Timestamp time.Time       `json:"ts"`
	Type      proto.EventType `json:"type"`
	Event     any             `json:"event"`
}

// Writer appends events for a single run.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewWriter opens (creating directories as needed) the event log for runID.
func NewWriter(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event log directory: %w", err)
	}
	path := filepath.Join(dir, runID+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &Writer{file: file, enc: json.NewEncoder(file), path: path}, nil
}

// Path returns the log file location.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one event. Safe for concurrent use.
func (w *Writer) Append(ev proto.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(entry{Timestamp: time.Now().UTC(), Type: ev.Type(), Event: ev}); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// Read loads all entries of a run's event log, in order. A truncated tail
// from a crash mid-write is ignored rather than failing the whole read.
func Read(dir, runID string) ([]RawEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, runID+".jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}

	var entries []RawEntry
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e RawEntry
		if err := dec.Decode(&e); err != nil {
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// RawEntry is one logged event with its payload left undecoded.
type RawEntry struct {
	Timestamp time.Time       `json:"ts"`
	Type      proto.EventType `json:"type"`
	Event     json.RawMessage `json:"event"`
}

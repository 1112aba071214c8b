// Package trail records every mutating gateway operation to an
// append-only JSONL file, so operators can reconstruct what the gateway
// wrote to the upstream CMS and when.
package trail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Action is the category of a recorded operation.
type Action string

const (
	ActionItemCreate  Action = "item.create"
	ActionItemUpdate  Action = "item.update"
	ActionItemDelete  Action = "item.delete"
	ActionItemPublish Action = "item.publish"
	ActionSmokeStage  Action = "smoke.stage"
)

// Event is one recorded mutating operation.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id,omitempty"`
	Action         Action    `json:"action"`
	CollectionID   string    `json:"collection_id,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	Generation     string    `json:"generation,omitempty"`
	AlternateShape bool      `json:"alternate_shape,omitempty"`
	Stage          string    `json:"stage,omitempty"`
	Success        bool      `json:"success"`
	Message        string    `json:"message,omitempty"`
}

// Logger records trail events.
type Logger interface {
	Record(ctx context.Context, event Event) error
	Close() error
}

// FileLogger appends events to trail.jsonl under a base directory.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// NewFileLogger opens (or creates) the trail file under basePath.
func NewFileLogger(basePath string) (*FileLogger, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating trail directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(basePath, "trail.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening trail file: %w", err)
	}
	return &FileLogger{file: file, encoder: json.NewEncoder(file)}, nil
}

// Record appends one event.
func (l *FileLogger) Record(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.encoder.Encode(event)
}

// Close closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// NopLogger discards all events. Used when no trail path is configured.
type NopLogger struct{}

func (NopLogger) Record(context.Context, Event) error { return nil }
func (NopLogger) Close() error                        { return nil }

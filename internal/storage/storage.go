package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/akave-ai/logrelay/internal/model"
)

// LogStore persists and reads console log entries.
type LogStore interface {
	// Insert writes entry and returns the created record.
	Insert(ctx context.Context, entry *model.LogEntry) (json.RawMessage, error)
	// InsertMinimal writes entry without asking for the record back.
	InsertMinimal(ctx context.Context, entry *model.LogEntry) error
	// List returns a JSON array of records, newest first.
	List(ctx context.Context, q model.LogQuery) (json.RawMessage, error)
}

// RelayError is returned when the store answers with a non-success status.
type RelayError struct {
	Op     string
	Status int
	Body   string
}

func (e *RelayError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: backend responded %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend responded %d %s", e.Op, e.Status, e.Body)
}

package model

import (
	"encoding/json"
	"time"
)

const (
	DefaultSessionID = "unknown"
	DefaultCategory  = "system"
	DefaultSource    = "Unknown"
)

// IncomingEntry is one console log entry as posted by a client.
// Optional fields are pointers so that absent and null can be told apart from values.
type IncomingEntry struct {
	SessionID  *string         `json:"session_id"`
	Level      string          `json:"level" validate:"required"`
	Category   *string         `json:"category"`
	Message    string          `json:"message" validate:"required"`
	Source     *string         `json:"source"`
	Meta       json.RawMessage `json:"meta"`
	StackTrace json.RawMessage `json:"stack_trace"`
	UserAgent  *string         `json:"user_agent"`
	URL        *string         `json:"url"`
}

// LogEntry is the normalized record written to the store.
type LogEntry struct {
	SessionID  string          `json:"session_id"`
	Level      string          `json:"level"`
	Category   string          `json:"category"`
	Message    string          `json:"message"`
	Source     string          `json:"source"`
	Meta       json.RawMessage `json:"meta"`
	StackTrace json.RawMessage `json:"stack_trace"`
	UserAgent  string          `json:"user_agent"`
	URL        string          `json:"url"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// LogQuery filters and pages a read from the store.
type LogQuery struct {
	SessionID string
	Limit     int
	Offset    int
}

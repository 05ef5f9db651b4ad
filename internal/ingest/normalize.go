package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/akave-ai/logrelay/internal/model"
)

// ErrMissingFields is returned when level or message is absent or empty.
var ErrMissingFields = errors.New("Missing required fields: level and message are required")

var emptyMeta = json.RawMessage(`{}`)

// ValidationError marks a request that was rejected before any store call.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// RequestInfo carries the requester headers used as defaults.
type RequestInfo struct {
	UserAgent string
	Referer   string
}

// Normalizer turns client entries into store records.
type Normalizer struct {
	Retention time.Duration
	Now       func() time.Time

	validate *validator.Validate
}

func NewNormalizer(retention time.Duration) *Normalizer {
	return &Normalizer{
		Retention: retention,
		Now:       time.Now,
		validate:  validator.New(),
	}
}

// Validate reports a ValidationError if level or message is missing.
func (n *Normalizer) Validate(in *model.IncomingEntry) error {
	if err := n.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Err: ErrMissingFields}
		}
		return err
	}
	return nil
}

// Normalize validates in and fills every default. expires_at is always set
// from the server clock.
func (n *Normalizer) Normalize(in *model.IncomingEntry, req RequestInfo) (*model.LogEntry, error) {
	if err := n.Validate(in); err != nil {
		return nil, err
	}

	meta := in.Meta
	if !supplied(meta) {
		meta = emptyMeta
	}

	return &model.LogEntry{
		SessionID:  orDefault(in.SessionID, model.DefaultSessionID),
		Level:      in.Level,
		Category:   orDefault(in.Category, model.DefaultCategory),
		Message:    in.Message,
		Source:     orDefault(in.Source, model.DefaultSource),
		Meta:       meta,
		StackTrace: in.StackTrace,
		UserAgent:  orDefault(in.UserAgent, req.UserAgent),
		URL:        orDefault(in.URL, req.Referer),
		ExpiresAt:  n.Now().UTC().Add(n.Retention),
	}, nil
}

// supplied reports whether raw holds a value other than absent, null or "".
func supplied(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte(`""`))
}

func orDefault(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/akave-ai/logrelay/internal/config"
	"github.com/akave-ai/logrelay/internal/model"
)

const (
	maxErrorBody = 2048
	// maxResponseBody bounds what is read from the backend; a full 500-row page
	// of entries with large meta objects stays well below it.
	maxResponseBody = 32 << 20
)

// RESTStore talks to a PostgREST endpoint (the REST layer of a hosted Postgres).
type RESTStore struct {
	client   *http.Client
	endpoint string
	apiKey   string
	maxBody  int64
}

// NewRESTStore builds a store for cfg. transport may be nil to use the default.
func NewRESTStore(cfg config.BackendConfig, transport http.RoundTripper) (*RESTStore, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("rest store: url and api key are required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("rest store: parse url: %w", err)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &RESTStore{
		client:   &http.Client{Timeout: cfg.Timeout, Transport: transport},
		endpoint: base.String() + "/rest/v1/" + cfg.Table,
		apiKey:   cfg.APIKey,
		maxBody:  maxResponseBody,
	}, nil
}

// Insert posts entry and returns the first element of the representation the store sends back.
func (s *RESTStore) Insert(ctx context.Context, entry *model.LogEntry) (json.RawMessage, error) {
	body, err := s.post(ctx, entry, "return=representation")
	if err != nil {
		return nil, err
	}
	var created []json.RawMessage
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("insert log: decode response: %w", err)
	}
	if len(created) == 0 {
		return json.RawMessage("null"), nil
	}
	return created[0], nil
}

func (s *RESTStore) InsertMinimal(ctx context.Context, entry *model.LogEntry) error {
	_, err := s.post(ctx, entry, "return=minimal")
	return err
}

// List reads records ordered by created_at descending. The session filter is
// an exact match and is percent-encoded.
func (s *RESTStore) List(ctx context.Context, q model.LogQuery) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+ListQuery(q), nil)
	if err != nil {
		return nil, err
	}
	s.authorize(req)

	body, err := s.do(req, "read logs")
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("read logs: backend returned invalid JSON")
	}
	return body, nil
}

// ListQuery renders q in PostgREST query syntax.
func ListQuery(q model.LogQuery) string {
	var b strings.Builder
	b.WriteString("select=*&order=created_at.desc")
	b.WriteString("&limit=" + strconv.Itoa(q.Limit))
	b.WriteString("&offset=" + strconv.Itoa(q.Offset))
	if q.SessionID != "" {
		b.WriteString("&session_id=eq." + escapeValue(q.SessionID))
	}
	return b.String()
}

// escapeValue percent-encodes v the way browsers encode URI components.
func escapeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

func (s *RESTStore) post(ctx context.Context, entry *model.LogEntry, prefer string) ([]byte, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("insert log: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", prefer)
	return s.do(req, "insert log")
}

func (s *RESTStore) authorize(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
}

func (s *RESTStore) do(req *http.Request, op string) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if int64(len(body)) > s.maxBody {
		return nil, fmt.Errorf("%s: backend response exceeds %d bytes", op, s.maxBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := strings.TrimSpace(string(body))
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody] + "..."
		}
		return nil, &RelayError{Op: op, Status: resp.StatusCode, Body: text}
	}
	return body, nil
}

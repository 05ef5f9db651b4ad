package ingest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/akave-ai/logrelay/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	n := NewNormalizer(30 * 24 * time.Hour)
	n.Now = func() time.Time { return fixedNow }
	return n
}

func strPtr(s string) *string { return &s }

func TestNormalize_AppliesDefaults(t *testing.T) {
	n := newTestNormalizer()
	in := &model.IncomingEntry{Level: "error", Message: "boom"}

	got, err := n.Normalize(in, RequestInfo{UserAgent: "Mozilla/5.0", Referer: "https://app.example/page"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	want := &model.LogEntry{
		SessionID: "unknown",
		Level:     "error",
		Category:  "system",
		Message:   "boom",
		Source:    "Unknown",
		Meta:      json.RawMessage(`{}`),
		UserAgent: "Mozilla/5.0",
		URL:       "https://app.example/page",
		ExpiresAt: fixedNow.Add(30 * 24 * time.Hour),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalized entry mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_KeepsClientValues(t *testing.T) {
	n := newTestNormalizer()
	in := &model.IncomingEntry{
		SessionID:  strPtr("sess-1"),
		Level:      "warn",
		Category:   strPtr("network"),
		Message:    "slow request",
		Source:     strPtr("fetch.js"),
		Meta:       json.RawMessage(`{"ms":1200}`),
		StackTrace: json.RawMessage(`"at fetch (fetch.js:10)"`),
		UserAgent:  strPtr("custom-agent"),
		URL:        strPtr("https://app.example/other"),
	}

	got, err := n.Normalize(in, RequestInfo{UserAgent: "header-agent", Referer: "header-referer"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.SessionID != "sess-1" || got.Category != "network" || got.Source != "fetch.js" {
		t.Fatalf("client fields overwritten: %+v", got)
	}
	if got.UserAgent != "custom-agent" || got.URL != "https://app.example/other" {
		t.Fatalf("body values should win over headers, got %q %q", got.UserAgent, got.URL)
	}
	if string(got.Meta) != `{"ms":1200}` {
		t.Fatalf("meta = %s", got.Meta)
	}
	if string(got.StackTrace) != `"at fetch (fetch.js:10)"` {
		t.Fatalf("stack trace not passed through: %s", got.StackTrace)
	}
}

func TestNormalize_EmptyStringsUseDefaults(t *testing.T) {
	n := newTestNormalizer()
	in := &model.IncomingEntry{
		SessionID: strPtr(""),
		Level:     "info",
		Message:   "hi",
		Meta:      json.RawMessage(`null`),
	}
	got, err := n.Normalize(in, RequestInfo{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.SessionID != "unknown" {
		t.Fatalf("session_id = %q", got.SessionID)
	}
	if string(got.Meta) != "{}" {
		t.Fatalf("meta = %s", got.Meta)
	}
	if got.StackTrace != nil {
		t.Fatalf("stack trace = %s, want nil", got.StackTrace)
	}
}

func TestNormalize_MetaNotSupplied(t *testing.T) {
	n := newTestNormalizer()
	for _, meta := range []string{``, `null`, `""`, ` "" `} {
		in := &model.IncomingEntry{Level: "info", Message: "m", Meta: json.RawMessage(meta)}
		got, err := n.Normalize(in, RequestInfo{})
		if err != nil {
			t.Fatalf("meta %q: %v", meta, err)
		}
		if string(got.Meta) != "{}" {
			t.Fatalf("meta %q normalized to %s, want {}", meta, got.Meta)
		}
	}
}

func TestNormalize_StackTracePassthrough(t *testing.T) {
	n := newTestNormalizer()
	var in model.IncomingEntry
	body := `{"level":"error","message":"m","meta":"tag","stack_trace":{"frames":["a.js:1","b.js:2"]}}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := n.Normalize(&in, RequestInfo{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if string(got.StackTrace) != `{"frames":["a.js:1","b.js:2"]}` {
		t.Fatalf("stack_trace = %s", got.StackTrace)
	}
	if string(got.Meta) != `"tag"` {
		t.Fatalf("non-empty meta should pass through, got %s", got.Meta)
	}
}

func TestNormalize_ExpiryIgnoresClient(t *testing.T) {
	n := newTestNormalizer()
	var in model.IncomingEntry
	if err := json.Unmarshal([]byte(`{"level":"info","message":"x","expires_at":"2099-01-01T00:00:00Z"}`), &in); err != nil {
		t.Fatal(err)
	}
	got, err := n.Normalize(&in, RequestInfo{})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !got.ExpiresAt.Equal(fixedNow.Add(30 * 24 * time.Hour)) {
		t.Fatalf("expires_at = %v", got.ExpiresAt)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	n := newTestNormalizer()
	cases := map[string]*model.IncomingEntry{
		"no level":   {Message: "m"},
		"no message": {Level: "info"},
		"empty":      {},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := n.Normalize(in, RequestInfo{})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !errors.Is(err, ErrMissingFields) {
				t.Fatalf("expected ErrMissingFields, got %v", err)
			}
		})
	}
}

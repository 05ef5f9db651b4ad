package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/logrelay/internal/config"
)

func TestNewWithWriter_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.ObservabilityConfig{
		ServiceName: "logrelay",
		Environment: "production",
		LogLevel:    "warn",
		Pretty:      true,
	}, &buf)

	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if line["message"] != "kept" || line["service"] != "logrelay" || line["env"] != "production" {
		t.Fatalf("line = %v", line)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.ObservabilityConfig{LogLevel: "info"}, &buf)

	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["uri"] != "/health" || line["status"] != float64(http.StatusOK) || line["method"] != http.MethodGet {
		t.Fatalf("line = %v", line)
	}
}

func TestRequestLogger_ErrorNotLoggedTwice(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.ObservabilityConfig{LogLevel: "info"}, &buf)

	e := echo.New()
	handled := 0
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		handled++
		_ = c.String(http.StatusInternalServerError, err.Error())
	}
	e.Use(RequestLogger(log))
	e.GET("/fail", func(c echo.Context) error { return errors.New("backend down") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	if handled != 1 {
		t.Fatalf("error handler ran %d times, want 1", handled)
	}
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %s", len(lines), buf.String())
	}
	var line map[string]any
	if err := json.Unmarshal(lines[0], &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["status"] != float64(http.StatusInternalServerError) || line["level"] != "info" {
		t.Fatalf("line = %v", line)
	}
	if _, ok := line["error"]; ok {
		t.Fatalf("request line repeats the error: %v", line)
	}
}

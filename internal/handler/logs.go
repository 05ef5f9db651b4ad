package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/akave-ai/logrelay/internal/ingest"
	"github.com/akave-ai/logrelay/internal/model"
	"github.com/akave-ai/logrelay/internal/response"
	"github.com/akave-ai/logrelay/internal/storage"
)

// ErrInvalidBatch is returned when the batch body has no usable logs array.
var ErrInvalidBatch = errors.New("logs must be a non-empty array")

// LogHandler serves /health and /logs. Errors it returns are turned into
// responses by the server's error handler.
type LogHandler struct {
	Store        storage.LogStore
	Normalizer   *ingest.Normalizer
	Batch        *ingest.BatchWriter
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

type createResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type batchRequest struct {
	Logs json.RawMessage `json:"logs"`
}

type batchResponse struct {
	Success bool `json:"success"`
	ingest.BatchResult
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health reports liveness (GET /health).
func (h *LogHandler) Health(c echo.Context) error {
	return response.JSON(c, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// ListLogs proxies a filtered, paginated read (GET /logs?session=&limit=&offset=).
func (h *LogHandler) ListLogs(c echo.Context) error {
	q := model.LogQuery{
		SessionID: c.QueryParam("session"),
		Limit:     intParam(c.QueryParam("limit"), h.DefaultLimit),
		Offset:    intParam(c.QueryParam("offset"), 0),
	}
	if q.Limit == 0 {
		q.Limit = h.DefaultLimit
	}
	if q.Limit > h.MaxLimit {
		q.Limit = h.MaxLimit
	}

	list, err := h.Store.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return response.Raw(c, http.StatusOK, list)
}

// CreateLog writes one entry and returns the created record (POST /logs).
func (h *LogHandler) CreateLog(c echo.Context) error {
	var in model.IncomingEntry
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	entry, err := h.Normalizer.Normalize(&in, requestInfo(c))
	if err != nil {
		return err
	}
	created, err := h.Store.Insert(c.Request().Context(), entry)
	if err != nil {
		return err
	}
	return response.Created(c, createResponse{Success: true, Data: created})
}

// CreateBatch writes up to the batch cap of entries independently (POST /logs/batch).
// Partial failure is reported in the body, never as an error status.
func (h *LogHandler) CreateBatch(c echo.Context) error {
	var body json.RawMessage
	if err := decodeBody(c, &body); err != nil {
		return err
	}
	if len(body) == 0 || body[0] != '{' {
		return &ingest.ValidationError{Err: ErrInvalidBatch}
	}
	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	var logs []json.RawMessage
	if len(req.Logs) == 0 || req.Logs[0] != '[' {
		return &ingest.ValidationError{Err: ErrInvalidBatch}
	}
	if err := json.Unmarshal(req.Logs, &logs); err != nil {
		return fmt.Errorf("decode logs: %w", err)
	}
	if len(logs) == 0 {
		return &ingest.ValidationError{Err: ErrInvalidBatch}
	}

	res := h.Batch.Write(c.Request().Context(), logs, requestInfo(c))
	return response.Created(c, batchResponse{Success: true, BatchResult: res})
}

func (h *LogHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// decodeBody reads the JSON body into v. A field of the wrong type is a
// validation error; malformed JSON is not and ends up as a 500.
func decodeBody(c echo.Context, v any) error {
	err := json.NewDecoder(c.Request().Body).Decode(v)
	if err == nil {
		return nil
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ingest.ValidationError{Err: fmt.Errorf("invalid field %q: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)}
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}

func requestInfo(c echo.Context) ingest.RequestInfo {
	r := c.Request()
	return ingest.RequestInfo{
		UserAgent: r.Header.Get("User-Agent"),
		Referer:   r.Header.Get("Referer"),
	}
}

// intParam parses a non-negative integer, falling back to def.
func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

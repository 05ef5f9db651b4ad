package repository

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/akave-ai/logrelay/internal/model"
)

// LogRepository persists and reads console log entries directly in Postgres.
// Records come back as JSON in the same shape the REST gateway returns.
type LogRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewLogRepository returns a LogRepository using the given pool. table must be
// a plain identifier; it is quoted before use.
func NewLogRepository(pool *pgxpool.Pool, table string) *LogRepository {
	return &LogRepository{pool: pool, table: pgx.Identifier{table}.Sanitize()}
}

// Insert creates a row and returns it as a JSON object.
func (r *LogRepository) Insert(ctx context.Context, entry *model.LogEntry) (json.RawMessage, error) {
	query := `
		INSERT INTO ` + r.table + ` AS t (id, session_id, level, category, message, source, meta, stack_trace, user_agent, url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING to_jsonb(t)`
	var created []byte
	err := r.pool.QueryRow(ctx, query, insertArgs(entry)...).Scan(&created)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// InsertMinimal creates a row without reading it back.
func (r *LogRepository) InsertMinimal(ctx context.Context, entry *model.LogEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO `+r.table+` (id, session_id, level, category, message, source, meta, stack_trace, user_agent, url, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		insertArgs(entry)...)
	return err
}

// List returns rows ordered by created_at descending as a JSON array.
func (r *LogRepository) List(ctx context.Context, q model.LogQuery) (json.RawMessage, error) {
	var list []byte
	err := r.pool.QueryRow(ctx, `
		SELECT coalesce(jsonb_agg(to_jsonb(t) ORDER BY t.created_at DESC), '[]'::jsonb)
		FROM (
			SELECT * FROM `+r.table+`
			WHERE ($1 = '' OR session_id = $1)
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		) t`, q.SessionID, q.Limit, q.Offset).Scan(&list)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func insertArgs(e *model.LogEntry) []any {
	return []any{
		uuid.New(),
		e.SessionID,
		e.Level,
		e.Category,
		e.Message,
		e.Source,
		[]byte(e.Meta),
		stackTraceText(e.StackTrace),
		e.UserAgent,
		e.URL,
		e.ExpiresAt,
	}
}

// stackTraceText maps the client's stack_trace onto the text column: null stays
// NULL, a JSON string is stored unquoted, anything else as its JSON text.
func stackTraceText(raw json.RawMessage) *string {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return &s
	}
	s = string(v)
	return &s
}

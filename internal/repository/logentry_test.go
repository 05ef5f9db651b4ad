package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/akave-ai/logrelay/internal/config"
	"github.com/akave-ai/logrelay/internal/database"
	"github.com/akave-ai/logrelay/internal/model"
)

// These tests need a disposable Postgres; set LOGRELAY_TEST_DATABASE_URL to run them.
func newTestRepository(t *testing.T) *LogRepository {
	t.Helper()
	url := os.Getenv("LOGRELAY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LOGRELAY_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	table := "console_logs_test"

	if err := database.RunMigrations(ctx, url, table, zerolog.Nop()); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: url}, zerolog.Nop(), database.PoolOptions{})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, "TRUNCATE "+table); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewLogRepository(pool, table)
}

func entry(session, msg string) *model.LogEntry {
	return &model.LogEntry{
		SessionID: session,
		Level:     "info",
		Category:  "system",
		Message:   msg,
		Source:    "Unknown",
		Meta:      json.RawMessage(`{"n":1}`),
		ExpiresAt: time.Now().Add(30 * 24 * time.Hour),
	}
}

func TestLogRepository_InsertAndList(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := repo.Insert(ctx, entry("s1", "first"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	var rec map[string]any
	if err := json.Unmarshal(created, &rec); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if rec["message"] != "first" || rec["id"] == nil || rec["created_at"] == nil {
		t.Fatalf("created = %v", rec)
	}

	if err := repo.InsertMinimal(ctx, entry("s2", "second")); err != nil {
		t.Fatalf("insert minimal: %v", err)
	}
	if err := repo.InsertMinimal(ctx, entry("s1", "third")); err != nil {
		t.Fatalf("insert minimal: %v", err)
	}

	raw, err := repo.List(ctx, model.LogQuery{SessionID: "s1", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 || list[0]["message"] != "third" || list[1]["message"] != "first" {
		t.Fatalf("list = %v", list)
	}

	raw, err = repo.List(ctx, model.LogQuery{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(list) != 1 || list[0]["message"] != "second" {
		t.Fatalf("page = %v", list)
	}
}

func TestLogRepository_ListEmpty(t *testing.T) {
	repo := newTestRepository(t)
	raw, err := repo.List(context.Background(), model.LogQuery{SessionID: "nobody", Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if string(raw) != "[]" {
		t.Fatalf("list = %s", raw)
	}
}

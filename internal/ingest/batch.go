package ingest

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/akave-ai/logrelay/internal/model"
)

// Inserter is the write side of the store used by batch writes.
type Inserter interface {
	InsertMinimal(ctx context.Context, entry *model.LogEntry) error
}

// BatchResult tallies a batch write. Saved+Failed always equals Total.
type BatchResult struct {
	Total  int `json:"total"`
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

// BatchWriter fans a batch out into independent inserts.
type BatchWriter struct {
	Store       Inserter
	Normalizer  *Normalizer
	MaxSize     int
	Concurrency int
	Log         zerolog.Logger
}

// Write inserts at most MaxSize entries from raw. Entries past the cap are
// dropped without being counted. Every retained entry is attempted; a failing
// entry never cancels the others and is not retried.
func (b *BatchWriter) Write(ctx context.Context, raw []json.RawMessage, req RequestInfo) BatchResult {
	if b.MaxSize > 0 && len(raw) > b.MaxSize {
		raw = raw[:b.MaxSize]
	}

	var saved, failed atomic.Int64
	var g errgroup.Group
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}

	for i, item := range raw {
		g.Go(func() error {
			if err := b.writeOne(ctx, item, req); err != nil {
				failed.Add(1)
				b.Log.Warn().Err(err).Int("index", i).Msg("batch entry failed")
				return nil
			}
			saved.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return BatchResult{
		Total:  len(raw),
		Saved:  int(saved.Load()),
		Failed: int(failed.Load()),
	}
}

func (b *BatchWriter) writeOne(ctx context.Context, item json.RawMessage, req RequestInfo) error {
	var in model.IncomingEntry
	if err := json.Unmarshal(item, &in); err != nil {
		return err
	}
	entry, err := b.Normalizer.Normalize(&in, req)
	if err != nil {
		return err
	}
	return b.Store.InsertMinimal(ctx, entry)
}

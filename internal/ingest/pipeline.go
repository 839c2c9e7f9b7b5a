package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/chunkstore"
	"github.com/spigell/resume-chat/internal/logger"
	"github.com/spigell/resume-chat/internal/utils"
)

const (
	DefaultBatchSize   = 32
	DefaultMaxAttempts = 5
)

type Options struct {
	BatchSize   int
	MaxAttempts int
}

// Stats summarizes a finished run.
type Stats struct {
	Chunks  int
	Batches int
	Retries int
}

// Pipeline embeds chunks batch by batch and writes them to a store.
type Pipeline struct {
	embedder    ai.Embedder
	store       chunkstore.Store
	batchSize   int
	maxAttempts int
	wait        func(context.Context, time.Duration) error
	logger      *zap.Logger
}

func NewPipeline(embedder ai.Embedder, store chunkstore.Store, opts Options, log *zap.Logger) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	return &Pipeline{
		embedder:    embedder,
		store:       store,
		batchSize:   opts.BatchSize,
		maxAttempts: opts.MaxAttempts,
		wait:        utils.WaitFor,
		logger:      logger.WithComponent(log, "ingest"),
	}
}

// Run stops at the first batch that cannot be embedded or stored; batches
// written before it stay in the store.
func (p *Pipeline) Run(ctx context.Context, chunks []chunkstore.Chunk) (Stats, error) {
	stats := Stats{Chunks: len(chunks)}
	total := (len(chunks) + p.batchSize - 1) / p.batchSize

	p.logger.Info("ingest started", zap.Int("chunks", len(chunks)), zap.Int("batches", total))

	for start := 0; start < len(chunks); start += p.batchSize {
		batch := chunks[start:min(start+p.batchSize, len(chunks))]
		number := stats.Batches + 1

		records, err := p.embed(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("batch %d/%d: %w", number, total, err)
		}

		retries, err := p.upsert(ctx, records)
		stats.Retries += retries
		if err != nil {
			return stats, fmt.Errorf("batch %d/%d: %w", number, total, err)
		}

		stats.Batches++
		p.logger.Debug("batch stored", zap.Int("batch", number), zap.Int("records", len(records)))
	}

	p.logger.Info("ingest finished",
		zap.Int("chunks", stats.Chunks),
		zap.Int("batches", stats.Batches),
		zap.Int("retries", stats.Retries),
	)

	return stats, nil
}

func (p *Pipeline) embed(ctx context.Context, batch []chunkstore.Chunk) ([]chunkstore.Record, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embed: expected %d vectors, got %d", len(batch), len(vectors))
	}

	records := make([]chunkstore.Record, len(batch))
	for i, c := range batch {
		records[i] = chunkstore.Record{Chunk: c, Vector: vectors[i]}
	}
	return records, nil
}

// upsert waits 2^attempt seconds after each failed attempt and returns the
// last error once maxAttempts is reached.
func (p *Pipeline) upsert(ctx context.Context, records []chunkstore.Record) (int, error) {
	for attempt := 1; ; attempt++ {
		err := p.store.Upsert(ctx, records)
		if err == nil {
			return attempt - 1, nil
		}
		if attempt >= p.maxAttempts {
			return attempt - 1, fmt.Errorf("upsert failed after %d attempts: %w", attempt, err)
		}

		delay := time.Duration(1<<attempt) * time.Second
		p.logger.Warn("upsert failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.maxAttempts),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		if err := p.wait(ctx, delay); err != nil {
			return attempt, err
		}
	}
}

package chunkstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrUnknownDriver = errors.New("unknown chunk store driver")

// Chunk is a bounded slice of a resume's text. ResumeID and ChunkIndex
// identify it uniquely.
type Chunk struct {
	ResumeID   int64
	Category   string
	ChunkIndex int
	Text       string
}

// Record is a chunk with its embedding, as written by ingestion.
type Record struct {
	Chunk
	Vector []float32
}

// ScoredChunk is a query hit. Score is the cosine similarity to the query vector.
type ScoredChunk struct {
	Chunk
	Score float64
}

// Filter restricts a query to an exact resume identifier.
type Filter struct {
	ResumeID int64
}

type Store interface {
	// Query returns at most limit chunks ordered by similarity to vector, best first.
	Query(ctx context.Context, vector []float32, filter *Filter, limit int) ([]ScoredChunk, error)
	// Upsert inserts records or replaces the ones with the same resume and chunk index.
	Upsert(ctx context.Context, records []Record) error
	Close() error
}

type Config struct {
	Driver     string
	DSN        string
	Dimensions int
}

// Open connects to the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%s chunk store dsn is not configured", driver)
	}

	switch driver {
	case DriverPostgres:
		return NewPostgres(ctx, cfg.DSN, cfg.Dimensions, logger)
	case DriverSQLite, "sqlite3":
		return NewSQLite(ctx, cfg.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 5
	}
	return limit
}

package chunkstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS resume_chunks (
    resume_id INTEGER NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    chunk_index INTEGER NOT NULL,
    chunk_text TEXT NOT NULL,
    embedding_json TEXT NOT NULL,
    PRIMARY KEY (resume_id, chunk_index)
);
`

// SQLite keeps chunks in a local database file and ranks them in process.
// It suits datasets small enough for a full scan per query.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLite(ctx context.Context, dataSourceName string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}

	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Query(ctx context.Context, vector []float32, filter *Filter, limit int) ([]ScoredChunk, error) {
	query := "SELECT resume_id, category, chunk_index, chunk_text, embedding_json FROM resume_chunks"
	var args []any
	if filter != nil {
		query += " WHERE resume_id = ?"
		args = append(args, filter.ResumeID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query resume chunks: %w", err)
	}
	defer rows.Close()

	var hits []ScoredChunk
	for rows.Next() {
		var (
			c             Chunk
			embeddingJSON string
			embedding     []float32
		)
		if err := rows.Scan(&c.ResumeID, &c.Category, &c.ChunkIndex, &c.Text, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("scan resume chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of resume %d chunk %d: %w", c.ResumeID, c.ChunkIndex, err)
		}

		score, err := CosineSimilarity(vector, embedding)
		if err != nil {
			return nil, fmt.Errorf("score resume %d chunk %d: %w", c.ResumeID, c.ChunkIndex, err)
		}
		hits = append(hits, ScoredChunk{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resume chunks: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit = normalizeLimit(limit); len(hits) > limit {
		hits = hits[:limit]
	}

	return hits, nil
}

func (s *SQLite) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO resume_chunks (resume_id, category, chunk_index, chunk_text, embedding_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (resume_id, chunk_index) DO UPDATE SET
    category = excluded.category,
    chunk_text = excluded.chunk_text,
    embedding_json = excluded.embedding_json`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		embedding, err := json.Marshal(r.Vector)
		if err != nil {
			return fmt.Errorf("encode embedding of resume %d chunk %d: %w", r.ResumeID, r.ChunkIndex, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ResumeID, r.Category, r.ChunkIndex, r.Text, string(embedding)); err != nil {
			return fmt.Errorf("upsert resume %d chunk %d: %w", r.ResumeID, r.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}

	s.logger.Debug("upserted resume chunks", zap.Int("count", len(records)))
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

package chunkstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// resumeChunk is the gorm model of the resume_chunks table.
type resumeChunk struct {
	ID         uint            `gorm:"primaryKey"`
	ResumeID   int64           `gorm:"not null;uniqueIndex:idx_resume_chunk"`
	Category   string          `gorm:"type:text;index"`
	ChunkIndex int             `gorm:"not null;uniqueIndex:idx_resume_chunk"`
	ChunkText  string          `gorm:"type:text"`
	Embedding  pgvector.Vector `gorm:"type:vector"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime"`
}

func (resumeChunk) TableName() string {
	return "resume_chunks"
}

type scoredRow struct {
	resumeChunk
	Score float64
}

// Postgres stores chunks in a pgvector column and ranks them by cosine distance.
type Postgres struct {
	db         *gorm.DB
	dimensions int
	logger     *zap.Logger
}

// NewPostgres connects to dsn, enables the vector extension and migrates the
// resume_chunks table.
func NewPostgres(ctx context.Context, dsn string, dimensions int, logger *zap.Logger) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db = db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector extension: %w", err)
	}
	if err := db.AutoMigrate(&resumeChunk{}); err != nil {
		return nil, fmt.Errorf("migrate resume_chunks: %w", err)
	}

	return &Postgres{db: db, dimensions: dimensions, logger: logger}, nil
}

func (p *Postgres) Query(ctx context.Context, vector []float32, filter *Filter, limit int) ([]ScoredChunk, error) {
	if p.dimensions > 0 && len(vector) != p.dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d", len(vector), p.dimensions)
	}

	queryVector := pgvector.NewVector(vector)

	query := p.db.WithContext(ctx).
		Model(&resumeChunk{}).
		Select("resume_chunks.*, 1 - (embedding <=> ?) AS score", queryVector)
	if filter != nil {
		query = query.Where("resume_id = ?", filter.ResumeID)
	}

	var rows []scoredRow
	err := query.
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []any{queryVector}}).
		Limit(normalizeLimit(limit)).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query resume chunks: %w", err)
	}

	hits := make([]ScoredChunk, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, ScoredChunk{
			Chunk: Chunk{
				ResumeID:   row.ResumeID,
				Category:   row.Category,
				ChunkIndex: row.ChunkIndex,
				Text:       row.ChunkText,
			},
			Score: row.Score,
		})
	}

	return hits, nil
}

func (p *Postgres) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]resumeChunk, 0, len(records))
	for _, r := range records {
		models = append(models, resumeChunk{
			ResumeID:   r.ResumeID,
			Category:   r.Category,
			ChunkIndex: r.ChunkIndex,
			ChunkText:  r.Text,
			Embedding:  pgvector.NewVector(r.Vector),
		})
	}

	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "resume_id"}, {Name: "chunk_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "chunk_text", "embedding", "updated_at"}),
		}).
		Create(&models).Error
	if err != nil {
		return fmt.Errorf("upsert resume chunks: %w", err)
	}

	p.logger.Debug("upserted resume chunks", zap.Int("count", len(models)))
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/ai"
	"github.com/spigell/resume-chat/internal/chunkstore"
	"github.com/spigell/resume-chat/internal/logger"
)

const DefaultTopK = 5

// Tool looks up resume chunks for a query, either by the identifiers the
// query names or by plain similarity.
type Tool struct {
	store    chunkstore.Store
	embedder ai.Embedder
	vectors  *cache.Cache
	logger   *zap.Logger
}

// New returns a Tool. A positive cacheTTL memoizes query embeddings.
func New(store chunkstore.Store, embedder ai.Embedder, cacheTTL time.Duration, log *zap.Logger) *Tool {
	t := &Tool{
		store:    store,
		embedder: embedder,
		logger:   logger.WithComponent(log, "retrieval"),
	}
	if cacheTTL > 0 {
		t.vectors = cache.New(cacheTTL, 2*cacheTTL)
	}
	return t
}

// Search embeds query and collects up to topK chunks per named identifier, or
// the topK most similar chunks when the query names none.
func (t *Tool) Search(ctx context.Context, query string, topK int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := t.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	if ids := QueryIDs(query); len(ids) > 0 {
		return t.searchByIDs(ctx, vector, ids, topK)
	}

	return t.searchSemantic(ctx, vector, topK)
}

func (t *Tool) embed(ctx context.Context, query string) ([]float32, error) {
	if t.vectors != nil {
		if cached, ok := t.vectors.Get(query); ok {
			return cached.([]float32), nil
		}
	}

	vectors, err := t.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	if t.vectors != nil {
		t.vectors.SetDefault(query, vectors[0])
	}

	return vectors[0], nil
}

func (t *Tool) searchByIDs(ctx context.Context, vector []float32, ids []int64, topK int) (*Result, error) {
	result := &Result{Mode: ModeIdentifier, Sections: make([]Section, 0, len(ids))}

	for _, id := range ids {
		hits, err := t.store.Query(ctx, vector, &chunkstore.Filter{ResumeID: id}, topK)
		if err != nil {
			return nil, fmt.Errorf("query chunks of resume %d: %w", id, err)
		}

		section := Section{ResumeID: id}
		if len(hits) > 0 {
			section.Found = true
			section.Category = categoryOf(hits[0].Category)
		}

		seen := make(map[string]struct{}, len(hits))
		for _, h := range hits {
			snippet := MakeSnippet(h.Text, identifierSnippetLimit)
			if snippet == "" {
				continue
			}
			if _, ok := seen[snippet]; ok {
				continue
			}
			seen[snippet] = struct{}{}
			section.Snippets = append(section.Snippets, snippet)
		}

		t.logger.Debug("resume lookup",
			zap.Int64("resume_id", id),
			zap.Int("chunks", len(hits)),
			zap.Int("snippets", len(section.Snippets)),
		)

		result.Sections = append(result.Sections, section)
	}

	return result, nil
}

func (t *Tool) searchSemantic(ctx context.Context, vector []float32, topK int) (*Result, error) {
	hits, err := t.store.Query(ctx, vector, nil, topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	result := &Result{Mode: ModeSemantic, Hits: make([]Hit, 0, len(hits))}
	for _, h := range hits {
		result.Hits = append(result.Hits, Hit{
			ResumeID: h.ResumeID,
			Category: categoryOf(h.Category),
			Snippet:  MakeSnippet(h.Text, semanticSnippetLimit),
			Score:    h.Score,
		})
	}

	t.logger.Debug("semantic search", zap.Int("hits", len(result.Hits)))

	return result, nil
}

func categoryOf(category string) string {
	if strings.TrimSpace(category) == "" {
		return unknownCategory
	}
	return category
}

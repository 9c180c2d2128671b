package service

import (
	"context"
	"fmt"
	"strings"

	"finbuddy/internal/embedding"
	"finbuddy/internal/repository"
	"finbuddy/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SearchService answers free-text queries over the owner's records using
// nearest-neighbor search on the stored embeddings. Cosine similarity, fixed
// threshold and result count; ordering is by similarity only.
type SearchService struct {
	store     ExpenseStore
	embedder  embedding.Embedder
	topK      int
	threshold float64
	logger    *zap.Logger
}

func NewSearchService(store ExpenseStore, embedder embedding.Embedder, cfg *config.SearchConfig, logger *zap.Logger) *SearchService {
	return &SearchService{
		store:     store,
		embedder:  embedder,
		topK:      cfg.TopK,
		threshold: cfg.Threshold,
		logger:    logger,
	}
}

func (s *SearchService) Search(ctx context.Context, userID uuid.UUID, query string) ([]repository.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.SearchSimilar(ctx, userID, vector, s.threshold, s.topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	s.logger.Info("Semantic search completed",
		zap.String("user_id", userID.String()),
		zap.Int("results", len(results)),
	)
	return results, nil
}

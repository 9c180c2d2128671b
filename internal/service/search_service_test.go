package service

import (
	"context"
	"errors"
	"testing"

	"finbuddy/internal/models"
	"finbuddy/internal/repository"
	"finbuddy/pkg/config"

	"github.com/google/uuid"
)

func searchConfig() *config.SearchConfig {
	return &config.SearchConfig{TopK: 10, Threshold: 0.35}
}

func TestSearchService_Search(t *testing.T) {
	userID := uuid.New()
	store := &fakeExpenseStore{searchResults: []repository.SearchResult{
		{Expense: &models.Expense{ID: uuid.New(), UserID: userID, Description: "Latte"}, Similarity: 0.91},
		{Expense: &models.Expense{ID: uuid.New(), UserID: userID, Description: "Espresso"}, Similarity: 0.74},
	}}
	embedder := &fakeEmbedder{vector: []float32{0.3, 0.1}}
	svc := NewSearchService(store, embedder, searchConfig(), testLogger())

	results, err := svc.Search(context.Background(), userID, "coffee purchases")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if embedder.calls != 1 {
		t.Errorf("embedder calls = %d, want 1", embedder.calls)
	}
	if store.lastThreshold != 0.35 {
		t.Errorf("threshold = %v, want 0.35", store.lastThreshold)
	}
	if store.lastLimit != 10 {
		t.Errorf("limit = %d, want 10", store.lastLimit)
	}
}

func TestSearchService_Search_EmptyQuery(t *testing.T) {
	store := &fakeExpenseStore{}
	embedder := &fakeEmbedder{}
	svc := NewSearchService(store, embedder, searchConfig(), testLogger())

	for _, query := range []string{"", "   ", "\t\n"} {
		if _, err := svc.Search(context.Background(), uuid.New(), query); err == nil {
			t.Errorf("query %q: expected error", query)
		}
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called for empty queries")
	}
}

func TestSearchService_Search_EmbedFailure(t *testing.T) {
	store := &fakeExpenseStore{}
	embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
	svc := NewSearchService(store, embedder, searchConfig(), testLogger())

	if _, err := svc.Search(context.Background(), uuid.New(), "groceries"); err == nil {
		t.Fatal("expected error when query embedding fails")
	}
	if store.searchCalls != 0 {
		t.Error("store searched despite embedding failure")
	}
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"finbuddy/internal/models"
	"finbuddy/internal/ocrspace"
	"finbuddy/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- Mock Implementations ---

type fakeExpenseStore struct {
	mu       sync.Mutex
	expenses []*models.Expense

	completeOCRCalls   []uuid.UUID
	recordFailureCalls []uuid.UUID
	setExtractionCalls int

	lastAmount      float64
	lastCategory    models.Category
	lastDescription string
	lastExtraction  *models.ReceiptExtraction
	lastEmbedding   []float32

	searchResults []repository.SearchResult
	searchCalls   int
	lastThreshold float64
	lastLimit     int

	listErr error
}

func (f *fakeExpenseStore) Create(ctx context.Context, e *models.Expense) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expenses = append(f.expenses, e)
	return nil
}

func (f *fakeExpenseStore) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		if e.ID == id && e.UserID == userID {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeExpenseStore) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.Expense, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Expense
	for _, e := range f.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExpenseStore) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Expense, error) {
	out, err := f.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeExpenseStore) ListSince(ctx context.Context, userID uuid.UUID, from time.Time) ([]*models.Expense, error) {
	all, err := f.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []*models.Expense
	for _, e := range all {
		if !e.Date.Before(from) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExpenseStore) ClaimNextForOCR(ctx context.Context) (*models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expenses {
		eligible := e.OCRText == nil &&
			e.ReceiptPath != nil &&
			e.OCRAttempts < models.MaxOCRAttempts &&
			e.ClaimedAt == nil
		if eligible {
			now := time.Now()
			e.ClaimedAt = &now
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeExpenseStore) CompleteOCR(ctx context.Context, id uuid.UUID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeOCRCalls = append(f.completeOCRCalls, id)
	for _, e := range f.expenses {
		if e.ID == id {
			e.OCRText = &text
			e.ClaimedAt = nil
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeExpenseStore) RecordOCRFailure(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordFailureCalls = append(f.recordFailureCalls, id)
	for _, e := range f.expenses {
		if e.ID == id {
			e.OCRAttempts++
			e.ClaimedAt = nil
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeExpenseStore) SetExtraction(ctx context.Context, id uuid.UUID, amount float64, category models.Category, description string, extraction *models.ReceiptExtraction, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setExtractionCalls++
	f.lastAmount = amount
	f.lastCategory = category
	f.lastDescription = description
	f.lastExtraction = extraction
	f.lastEmbedding = embedding
	for _, e := range f.expenses {
		if e.ID == id {
			e.Amount = amount
			e.Category = category
			e.Description = description
			e.Extraction = extraction
			e.Embedding = embedding
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeExpenseStore) Delete(ctx context.Context, userID, id uuid.UUID) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.expenses {
		if e.ID == id && e.UserID == userID {
			path := e.ReceiptPath
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return path, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeExpenseStore) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, threshold float64, limit int) ([]repository.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastThreshold = threshold
	f.lastLimit = limit
	return f.searchResults, nil
}

type fakeSummaryStore struct {
	mu     sync.Mutex
	cache  map[string]string // hash -> text
	latest string

	saveCachedCalls   int
	upsertLatestCalls int
}

func newFakeSummaryStore() *fakeSummaryStore {
	return &fakeSummaryStore{cache: make(map[string]string)}
}

func (f *fakeSummaryStore) GetCached(ctx context.Context, userID uuid.UUID, hash string) (*models.SummaryCacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.cache[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.SummaryCacheEntry{UserID: userID, SnapshotHash: hash, SummaryText: text}, nil
}

func (f *fakeSummaryStore) SaveCached(ctx context.Context, userID uuid.UUID, hash, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCachedCalls++
	if _, exists := f.cache[hash]; !exists {
		f.cache[hash] = text
	}
	return nil
}

func (f *fakeSummaryStore) UpsertLatest(ctx context.Context, userID uuid.UUID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertLatestCalls++
	f.latest = text
	return nil
}

func (f *fakeSummaryStore) GetLatest(ctx context.Context, userID uuid.UUID) (*models.LatestSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest == "" {
		return nil, repository.ErrNotFound
	}
	return &models.LatestSummary{UserID: userID, SummaryText: f.latest, UpdatedAt: time.Now()}, nil
}

type fakeProfileStore struct {
	budget *float64
}

func (f *fakeProfileStore) GetMonthlyBudget(ctx context.Context, userID uuid.UUID) (*float64, error) {
	return f.budget, nil
}

func (f *fakeProfileStore) SetMonthlyBudget(ctx context.Context, userID uuid.UUID, budget float64) error {
	f.budget = &budget
	return nil
}

type fakeStorage struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploadErr   error
	downloadErr error
	signErr     error
	deleteCalls []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(ctx context.Context, path string, r io.Reader) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	f.objects[path] = buf.Bytes()
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, path string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

func (f *fakeStorage) SignedURL(ctx context.Context, path string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://storage.example.com/" + path, nil
}

func (f *fakeStorage) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, path)
	delete(f.objects, path)
	return nil
}

type fakeOCRClient struct {
	result *ocrspace.Result
	err    error
	calls  int
}

func (f *fakeOCRClient) ParseImage(ctx context.Context, imageURL, filetype string) (*ocrspace.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeReasoningClient struct {
	response      string
	err           error
	generateCalls int
	imageCalls    int
	lastPrompt    string
}

func (f *fakeReasoningClient) Generate(ctx context.Context, prompt string) (string, error) {
	f.generateCalls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeReasoningClient) GenerateFromImage(ctx context.Context, data []byte, filename, prompt string) (string, error) {
	f.imageCalls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, content string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embedder" }

func testLogger() *zap.Logger { return zap.NewNop() }

func strptr(s string) *string { return &s }

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"finbuddy/internal/models"
	"finbuddy/internal/repository"
	"finbuddy/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InsightService computes budget projections locally and generates cached
// narrative summaries through the reasoning service.
type InsightService struct {
	store         ExpenseStore
	summaries     SummaryStore
	profiles      ProfileStore
	llm           ReasoningClient
	defaultBudget float64
	minRecords    int
	logger        *zap.Logger
}

func NewInsightService(store ExpenseStore, summaries SummaryStore, profiles ProfileStore, llm ReasoningClient, cfg *config.InsightConfig, logger *zap.Logger) *InsightService {
	return &InsightService{
		store:         store,
		summaries:     summaries,
		profiles:      profiles,
		llm:           llm,
		defaultBudget: cfg.DefaultBudget,
		minRecords:    cfg.MinSummaryRecords,
		logger:        logger,
	}
}

// Project computes the owner's budget projection for the month containing
// now. Pure month arithmetic plus two store reads; no external calls.
func (s *InsightService) Project(ctx context.Context, userID uuid.UUID, now time.Time) (*models.BudgetProjection, error) {
	firstDay := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	expenses, err := s.store.ListSince(ctx, userID, firstDay)
	if err != nil {
		return nil, fmt.Errorf("failed to load current month records: %w", err)
	}

	budget := s.defaultBudget
	configured, err := s.profiles.GetMonthlyBudget(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load budget: %w", err)
	}
	if configured != nil {
		budget = *configured
	}

	var totalSpent float64
	for _, e := range expenses {
		totalSpent += e.Amount
	}

	return ComputeProjection(totalSpent, budget, now), nil
}

// ComputeProjection derives the spending velocity and month-end projection.
// The day of month is at least 1 by construction, so the velocity division
// is always defined.
func ComputeProjection(totalSpent, budget float64, now time.Time) *models.BudgetProjection {
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	dayOfMonth := now.Day()
	if dayOfMonth < 1 {
		dayOfMonth = 1
	}

	velocity := totalSpent / float64(dayOfMonth)
	projection := velocity * float64(daysInMonth)

	return &models.BudgetProjection{
		TotalSpent:    totalSpent,
		Budget:        budget,
		Velocity:      velocity,
		Projection:    projection,
		Percentage:    totalSpent / budget * 100,
		IsOverBudget:  projection > budget,
		DaysRemaining: daysInMonth - dayOfMonth,
	}
}

// SummaryResult is a generated or cache-served narrative summary.
type SummaryResult struct {
	Text   string
	Cached bool
}

// GenerateSummary produces the owner's spending summary. Identical record
// snapshots hash to the same cache key, so regenerating over unchanged data
// is a pure cache read with no reasoning call.
func (s *InsightService) GenerateSummary(ctx context.Context, userID uuid.UUID) (*SummaryResult, error) {
	expenses, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	if len(expenses) < s.minRecords {
		return nil, fmt.Errorf("%w: need at least %d, have %d", ErrNotEnoughData, s.minRecords, len(expenses))
	}

	hash, err := SnapshotHash(expenses)
	if err != nil {
		return nil, err
	}

	cached, err := s.summaries.GetCached(ctx, userID, hash)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("cache lookup failed: %w", err)
	}
	if cached != nil {
		s.logger.Info("Summary cache hit", zap.String("user_id", userID.String()), zap.String("hash", hash[:12]))
		return &SummaryResult{Text: cached.SummaryText, Cached: true}, nil
	}

	summary, err := s.llm.Generate(ctx, buildSummaryPrompt(expenses))
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}
	summary = sanitizeUTF8(summary)

	// Persist under the content hash and refresh the per-owner latest slot.
	// Failures are never cached; the caller simply retries.
	if err := s.summaries.SaveCached(ctx, userID, hash, summary); err != nil {
		return nil, fmt.Errorf("failed to cache summary: %w", err)
	}
	if err := s.summaries.UpsertLatest(ctx, userID, summary); err != nil {
		return nil, fmt.Errorf("failed to store latest summary: %w", err)
	}

	s.logger.Info("Summary generated",
		zap.String("user_id", userID.String()),
		zap.String("hash", hash[:12]),
		zap.Int("length", len(summary)),
	)
	return &SummaryResult{Text: summary, Cached: false}, nil
}

// LatestSummary returns the most recent summary without touching the
// content-addressed cache or the record snapshot.
func (s *InsightService) LatestSummary(ctx context.Context, userID uuid.UUID) (*models.LatestSummary, error) {
	return s.summaries.GetLatest(ctx, userID)
}

// snapshotRecord is the canonical per-record shape hashed for the cache key.
type snapshotRecord struct {
	Category string   `json:"category"`
	Amount   float64  `json:"amount"`
	Date     string   `json:"date"`
	Items    []string `json:"items,omitempty"`
}

// SnapshotHash derives the cache key from the owner's current records. The
// serialization is deterministic: records are sorted by (date, id) so
// insertion order never changes the digest.
func SnapshotHash(expenses []*models.Expense) (string, error) {
	sorted := make([]*models.Expense, len(expenses))
	copy(sorted, expenses)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	records := make([]snapshotRecord, 0, len(sorted))
	for _, e := range sorted {
		record := snapshotRecord{
			Category: string(e.Category),
			Amount:   e.Amount,
			Date:     e.Date.Format("2006-01-02"),
		}
		if e.Extraction != nil {
			for _, item := range e.Extraction.Items {
				record.Items = append(record.Items, item.Name)
			}
		}
		records = append(records, record)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}

func buildSummaryPrompt(expenses []*models.Expense) string {
	records := make([]snapshotRecord, 0, len(expenses))
	for _, e := range expenses {
		records = append(records, snapshotRecord{
			Category: string(e.Category),
			Amount:   e.Amount,
			Date:     e.Date.Format("2006-01-02"),
		})
	}
	data, _ := json.MarshalIndent(records, "", "  ")

	return fmt.Sprintf(`# ROLE
You are an expert financial coach. Your tone is data-driven, encouraging, and clear.

# DATA (JSON)
%s

# TASK: SPENDING AUDIT
1. **Executive Summary**: One high-impact sentence on overall spending health.
2. **Top Categories**: The top 3 categories by total amount and their share of total spend.
3. **Key Metrics**: The largest single purchase and the most frequent category.
4. **Action Plan**: Two hyper-specific, actionable tips for the #1 spending category.

# CONSTRAINTS
- Format: Markdown (## Headers, **Bold**, - Bullets).
- Accuracy: Do NOT hallucinate. If data covers less than a month, say so and summarize the current snapshot.
- Length: Strictly under 120 words.`, string(data))
}

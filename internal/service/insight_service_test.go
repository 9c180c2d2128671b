package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"finbuddy/internal/models"
	"finbuddy/pkg/config"

	"github.com/google/uuid"
)

func insightConfig() *config.InsightConfig {
	return &config.InsightConfig{
		DefaultBudget:     2000,
		MinSummaryRecords: 5,
		MinSwitchRecords:  3,
		SwitchWindow:      50,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeProjection(t *testing.T) {
	tests := []struct {
		name           string
		totalSpent     float64
		budget         float64
		now            time.Time
		wantVelocity   float64
		wantProjection float64
		wantPercentage float64
		wantOver       bool
		wantRemaining  int
	}{
		{
			name:           "first day of month",
			totalSpent:     50,
			budget:         2000,
			now:            time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC),
			wantVelocity:   50,
			wantProjection: 1500, // 30 days in September
			wantPercentage: 2.5,
			wantOver:       false,
			wantRemaining:  29,
		},
		{
			name:           "mid month under budget",
			totalSpent:     900,
			budget:         2000,
			now:            time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC),
			wantVelocity:   60,
			wantProjection: 1800,
			wantPercentage: 45,
			wantOver:       false,
			wantRemaining:  15,
		},
		{
			name:           "mid month projected over",
			totalSpent:     1500,
			budget:         2000,
			now:            time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC),
			wantVelocity:   100,
			wantProjection: 3000,
			wantPercentage: 75,
			wantOver:       true,
			wantRemaining:  15,
		},
		{
			name:           "last day of 31-day month",
			totalSpent:     3100,
			budget:         3000,
			now:            time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC),
			wantVelocity:   100,
			wantProjection: 3100,
			wantPercentage: 103.33333333333333,
			wantOver:       true,
			wantRemaining:  0,
		},
		{
			name:           "february leap year",
			totalSpent:     290,
			budget:         2000,
			now:            time.Date(2028, time.February, 10, 0, 0, 0, 0, time.UTC),
			wantVelocity:   29,
			wantProjection: 841, // 29 days
			wantPercentage: 14.5,
			wantOver:       false,
			wantRemaining:  19,
		},
		{
			name:           "zero spend",
			totalSpent:     0,
			budget:         2000,
			now:            time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC),
			wantVelocity:   0,
			wantProjection: 0,
			wantPercentage: 0,
			wantOver:       false,
			wantRemaining:  20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputeProjection(tt.totalSpent, tt.budget, tt.now)
			if !almostEqual(p.Velocity, tt.wantVelocity) {
				t.Errorf("Velocity = %v, want %v", p.Velocity, tt.wantVelocity)
			}
			if !almostEqual(p.Projection, tt.wantProjection) {
				t.Errorf("Projection = %v, want %v", p.Projection, tt.wantProjection)
			}
			if !almostEqual(p.Percentage, tt.wantPercentage) {
				t.Errorf("Percentage = %v, want %v", p.Percentage, tt.wantPercentage)
			}
			if p.IsOverBudget != tt.wantOver {
				t.Errorf("IsOverBudget = %v, want %v", p.IsOverBudget, tt.wantOver)
			}
			if p.DaysRemaining != tt.wantRemaining {
				t.Errorf("DaysRemaining = %v, want %v", p.DaysRemaining, tt.wantRemaining)
			}
			if !almostEqual(p.TotalSpent, tt.totalSpent) || !almostEqual(p.Budget, tt.budget) {
				t.Errorf("echo fields: TotalSpent=%v Budget=%v", p.TotalSpent, p.Budget)
			}
		})
	}
}

func TestInsightService_Project_UsesConfiguredBudget(t *testing.T) {
	userID := uuid.New()
	now := time.Date(2026, time.September, 15, 0, 0, 0, 0, time.UTC)

	store := &fakeExpenseStore{expenses: []*models.Expense{
		{ID: uuid.New(), UserID: userID, Amount: 300, Date: time.Date(2026, time.September, 2, 0, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), UserID: userID, Amount: 600, Date: time.Date(2026, time.September, 10, 0, 0, 0, 0, time.UTC)},
		// Previous month, must be excluded.
		{ID: uuid.New(), UserID: userID, Amount: 999, Date: time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)},
	}}

	budget := 1500.0
	profiles := &fakeProfileStore{budget: &budget}
	svc := NewInsightService(store, newFakeSummaryStore(), profiles, &fakeReasoningClient{}, insightConfig(), testLogger())

	p, err := svc.Project(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if !almostEqual(p.TotalSpent, 900) {
		t.Errorf("TotalSpent = %v, want 900 (previous month leaked in)", p.TotalSpent)
	}
	if !almostEqual(p.Budget, 1500) {
		t.Errorf("Budget = %v, want configured 1500", p.Budget)
	}
	if !almostEqual(p.Percentage, 60) {
		t.Errorf("Percentage = %v, want 60", p.Percentage)
	}
}

func TestInsightService_Project_DefaultBudget(t *testing.T) {
	userID := uuid.New()
	store := &fakeExpenseStore{}
	svc := NewInsightService(store, newFakeSummaryStore(), &fakeProfileStore{}, &fakeReasoningClient{}, insightConfig(), testLogger())

	p, err := svc.Project(context.Background(), userID, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Project failed: %v", err)
	}
	if !almostEqual(p.Budget, 2000) {
		t.Errorf("Budget = %v, want default 2000", p.Budget)
	}
}

func summaryFixture(userID uuid.UUID, n int) []*models.Expense {
	expenses := make([]*models.Expense, 0, n)
	for i := 0; i < n; i++ {
		expenses = append(expenses, &models.Expense{
			ID:       uuid.New(),
			UserID:   userID,
			Amount:   float64(10 + i),
			Category: models.CategoryFood,
			Date:     time.Date(2026, time.September, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	return expenses
}

func TestInsightService_GenerateSummary_NotEnoughData(t *testing.T) {
	userID := uuid.New()
	store := &fakeExpenseStore{expenses: summaryFixture(userID, 4)}
	llm := &fakeReasoningClient{response: "should not be called"}
	svc := NewInsightService(store, newFakeSummaryStore(), &fakeProfileStore{}, llm, insightConfig(), testLogger())

	_, err := svc.GenerateSummary(context.Background(), userID)
	if !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("err = %v, want ErrNotEnoughData", err)
	}
	if llm.generateCalls != 0 {
		t.Errorf("generateCalls = %d, want 0", llm.generateCalls)
	}
}

func TestInsightService_GenerateSummary_CacheHit(t *testing.T) {
	userID := uuid.New()
	store := &fakeExpenseStore{expenses: summaryFixture(userID, 5)}
	summaries := newFakeSummaryStore()
	llm := &fakeReasoningClient{response: "## Summary\nYou spend mostly on food."}
	svc := NewInsightService(store, summaries, &fakeProfileStore{}, llm, insightConfig(), testLogger())

	first, err := svc.GenerateSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("first GenerateSummary failed: %v", err)
	}
	if first.Cached {
		t.Error("first call reported Cached = true")
	}
	if llm.generateCalls != 1 {
		t.Fatalf("generateCalls = %d after first call, want 1", llm.generateCalls)
	}

	second, err := svc.GenerateSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("second GenerateSummary failed: %v", err)
	}
	if !second.Cached {
		t.Error("second call over unchanged records reported Cached = false")
	}
	if second.Text != first.Text {
		t.Errorf("cached text %q != generated text %q", second.Text, first.Text)
	}
	if llm.generateCalls != 1 {
		t.Errorf("generateCalls = %d after cache hit, want 1", llm.generateCalls)
	}
	if summaries.upsertLatestCalls != 1 {
		t.Errorf("upsertLatestCalls = %d, want 1 (cache hits must not touch the latest slot)", summaries.upsertLatestCalls)
	}
}

func TestInsightService_GenerateSummary_NewRecordInvalidatesCache(t *testing.T) {
	userID := uuid.New()
	store := &fakeExpenseStore{expenses: summaryFixture(userID, 5)}
	llm := &fakeReasoningClient{response: "summary text"}
	svc := NewInsightService(store, newFakeSummaryStore(), &fakeProfileStore{}, llm, insightConfig(), testLogger())

	if _, err := svc.GenerateSummary(context.Background(), userID); err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}

	store.expenses = append(store.expenses, &models.Expense{
		ID:       uuid.New(),
		UserID:   userID,
		Amount:   42,
		Category: models.CategoryTravel,
		Date:     time.Date(2026, time.September, 20, 0, 0, 0, 0, time.UTC),
	})

	result, err := svc.GenerateSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("GenerateSummary after insert failed: %v", err)
	}
	if result.Cached {
		t.Error("changed snapshot still served from cache")
	}
	if llm.generateCalls != 2 {
		t.Errorf("generateCalls = %d, want 2", llm.generateCalls)
	}
}

func TestInsightService_GenerateSummary_FailureNotCached(t *testing.T) {
	userID := uuid.New()
	store := &fakeExpenseStore{expenses: summaryFixture(userID, 5)}
	summaries := newFakeSummaryStore()
	llm := &fakeReasoningClient{err: errors.New("upstream unavailable")}
	svc := NewInsightService(store, summaries, &fakeProfileStore{}, llm, insightConfig(), testLogger())

	if _, err := svc.GenerateSummary(context.Background(), userID); err == nil {
		t.Fatal("expected error from failing reasoning client")
	}
	if summaries.saveCachedCalls != 0 {
		t.Errorf("saveCachedCalls = %d, want 0 (failures must never be cached)", summaries.saveCachedCalls)
	}

	// Recovery: the next call with a healthy client generates normally.
	llm.err = nil
	llm.response = "recovered"
	result, err := svc.GenerateSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("GenerateSummary after recovery failed: %v", err)
	}
	if result.Cached || result.Text != "recovered" {
		t.Errorf("result = %+v, want fresh generation", result)
	}
}

func TestSnapshotHash_OrderIndependent(t *testing.T) {
	userID := uuid.New()
	expenses := summaryFixture(userID, 6)

	base, err := SnapshotHash(expenses)
	if err != nil {
		t.Fatalf("SnapshotHash failed: %v", err)
	}

	// Reversed insertion order must produce the same digest.
	reversed := make([]*models.Expense, len(expenses))
	for i, e := range expenses {
		reversed[len(expenses)-1-i] = e
	}
	permuted, err := SnapshotHash(reversed)
	if err != nil {
		t.Fatalf("SnapshotHash failed: %v", err)
	}
	if base != permuted {
		t.Errorf("hash changed under permutation: %s vs %s", base, permuted)
	}
}

func TestSnapshotHash_SensitiveToContent(t *testing.T) {
	userID := uuid.New()
	expenses := summaryFixture(userID, 5)
	base, _ := SnapshotHash(expenses)

	expenses[2].Amount += 0.01
	changed, _ := SnapshotHash(expenses)
	if base == changed {
		t.Error("hash unchanged after amount edit")
	}

	expenses[2].Amount -= 0.01
	expenses[2].Extraction = &models.ReceiptExtraction{
		Items: []models.ReceiptItem{{Name: "coffee", Price: 4.5}},
	}
	withItems, _ := SnapshotHash(expenses)
	if base == withItems {
		t.Error("hash unchanged after adding items")
	}
}

func TestInsightService_LatestSummary(t *testing.T) {
	userID := uuid.New()
	summaries := newFakeSummaryStore()
	svc := NewInsightService(&fakeExpenseStore{}, summaries, &fakeProfileStore{}, &fakeReasoningClient{}, insightConfig(), testLogger())

	if _, err := svc.LatestSummary(context.Background(), userID); err == nil {
		t.Error("expected not-found error before any summary exists")
	}

	summaries.latest = "stored summary"
	latest, err := svc.LatestSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("LatestSummary failed: %v", err)
	}
	if latest.SummaryText != "stored summary" {
		t.Errorf("SummaryText = %q", latest.SummaryText)
	}
}

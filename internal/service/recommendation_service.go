package service

import (
	"context"
	"encoding/json"
	"fmt"

	"finbuddy/internal/models"
	"finbuddy/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SmartSwitchSuggestion is one high-impact savings opportunity detected over
// the owner's recent records.
type SmartSwitchSuggestion struct {
	Title     string `json:"title"`
	Rationale string `json:"rationale"`
	Savings   string `json:"savings"`
}

// RecommendationService delegates pattern detection (recurring purchases,
// subscription-like bills, bulk-buy opportunities) to the reasoning service.
// It is read-only with respect to the record store.
type RecommendationService struct {
	store      ExpenseStore
	llm        ReasoningClient
	window     int
	minRecords int
	logger     *zap.Logger
}

func NewRecommendationService(store ExpenseStore, llm ReasoningClient, cfg *config.InsightConfig, logger *zap.Logger) *RecommendationService {
	return &RecommendationService{
		store:      store,
		llm:        llm,
		window:     cfg.SwitchWindow,
		minRecords: cfg.MinSwitchRecords,
		logger:     logger,
	}
}

// needMoreDataSuggestion is returned without an external call when the owner
// has too few usable records for pattern detection.
var needMoreDataSuggestion = &SmartSwitchSuggestion{
	Title:     "Add more transactions",
	Rationale: "Pattern detection needs a few more expenses before it can find recurring costs worth switching.",
}

type switchRecord struct {
	Category    string               `json:"category"`
	Description string               `json:"description"`
	Amount      float64              `json:"amount"`
	Items       []models.ReceiptItem `json:"items,omitempty"`
}

// Suggest aggregates the owner's recent records and asks for one single
// high-impact savings suggestion.
func (s *RecommendationService) Suggest(ctx context.Context, userID uuid.UUID) (*SmartSwitchSuggestion, error) {
	expenses, err := s.store.ListRecent(ctx, userID, s.window)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent records: %w", err)
	}

	records := make([]switchRecord, 0, len(expenses))
	for _, e := range expenses {
		record := switchRecord{
			Category:    string(e.Category),
			Description: e.Description,
			Amount:      e.Amount,
		}
		if e.Extraction != nil {
			record.Items = e.Extraction.Items
		}
		// Records with neither a description nor items give the model
		// nothing to detect patterns in.
		if record.Description == "" && len(record.Items) == 0 {
			continue
		}
		records = append(records, record)
	}

	if len(records) < s.minRecords {
		return needMoreDataSuggestion, nil
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize records: %w", err)
	}

	prompt := fmt.Sprintf(`You are a financial optimization expert. Analyze the provided list of expenses.
Identify ONE high-impact savings opportunity (recurring items, subscriptions, or bills).

Return a JSON object with:
- "title": a short action (e.g. "Bulk Buy Coffee", "Switch to an Annual Plan")
- "rationale": one concise sentence explaining why
- "savings": a string like "$15/year" or "$5/month"

ONLY return the raw JSON object.

USER DATA:
%s`, string(data))

	raw, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("suggestion generation failed: %w", err)
	}

	var suggestion SmartSwitchSuggestion
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &suggestion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}
	if suggestion.Title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidExtraction)
	}

	s.logger.Info("Smart switch suggestion generated",
		zap.String("user_id", userID.String()),
		zap.String("title", suggestion.Title),
	)
	return &suggestion, nil
}

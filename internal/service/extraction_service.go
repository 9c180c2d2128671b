package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"finbuddy/internal/embedding"
	"finbuddy/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExtractionService runs the second pipeline stage: turn OCR text or the
// receipt image into validated structured fields. Parse and validation
// failures are invocation failures — the record is never mutated and no
// retry counter is involved; the caller decides whether to re-invoke.
type ExtractionService struct {
	store    ExpenseStore
	storage  ObjectStorage
	llm      ReasoningClient
	embedder embedding.Embedder
	logger   *zap.Logger
}

func NewExtractionService(store ExpenseStore, storage ObjectStorage, llm ReasoningClient, embedder embedding.Embedder, logger *zap.Logger) *ExtractionService {
	return &ExtractionService{
		store:    store,
		storage:  storage,
		llm:      llm,
		embedder: embedder,
		logger:   logger,
	}
}

const extractionFormat = `Return a JSON object with exactly these fields:
- amount (number; the receipt total. If the text lists several totals or partial totals, SUM them instead of picking one)
- category (one of: "Food", "Transport", "Shopping", "Bills", "Health", "Travel", "Other")
- date (YYYY-MM-DD)
- description (short summary of the items or the merchant)
- store_name (merchant name if visible)
- items (array of {"name": string, "price": number})

ONLY return the raw JSON object. No markdown, no explanations.`

// ExtractFromImage sends the stored receipt image to the reasoning service
// and writes validated fields back to the record.
func (s *ExtractionService) ExtractFromImage(ctx context.Context, userID, id uuid.UUID) (*models.ReceiptExtraction, error) {
	expense, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if expense.ReceiptPath == nil {
		return nil, ErrNoReceipt
	}

	data, err := s.storage.Download(ctx, *expense.ReceiptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to download receipt: %w", err)
	}

	prompt := "Extract expense details from this receipt image.\n\n" + extractionFormat
	raw, err := s.llm.GenerateFromImage(ctx, data, filepath.Base(*expense.ReceiptPath), prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	extraction, err := parseExtraction(raw, false)
	if err != nil {
		return nil, err
	}
	return extraction, s.writeExtraction(ctx, expense, extraction)
}

// ExtractFromText runs extraction over already-collected OCR text. In strict
// mode the model is told to return null for anything it cannot read, and the
// caller tolerates the resulting partial record — strict mode is meant for
// noisy OCR text where guessing would be worse than a gap.
func (s *ExtractionService) ExtractFromText(ctx context.Context, userID, id uuid.UUID, strict bool) (*models.ReceiptExtraction, error) {
	expense, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if expense.OCRText == nil || strings.TrimSpace(*expense.OCRText) == "" {
		return nil, ErrNoOCRText
	}

	raw, err := s.llm.Generate(ctx, buildTextPrompt(*expense.OCRText, strict))
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}

	extraction, err := parseExtraction(raw, strict)
	if err != nil {
		return nil, err
	}
	return extraction, s.writeExtraction(ctx, expense, extraction)
}

func buildTextPrompt(ocrText string, strict bool) string {
	var b strings.Builder
	if strict {
		b.WriteString("You are a strict data extractor. You never guess or invent; you only extract what is explicitly present. Return null for any field that is missing from the text.\n\n")
	}
	b.WriteString("Here is the text extracted from a receipt by OCR:\n\n\"\"\"\n")
	b.WriteString(ocrText)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString(extractionFormat)
	return b.String()
}

// parseExtraction validates the raw LLM response at the boundary. Non-strict
// mode rejects responses missing amount, category, or date; strict mode only
// rejects unparseable JSON and carries nulls through.
func parseExtraction(raw string, strict bool) (*models.ReceiptExtraction, error) {
	var payload struct {
		Amount      *float64             `json:"amount"`
		Category    *string              `json:"category"`
		Date        *string              `json:"date"`
		Description *string              `json:"description"`
		StoreName   *string              `json:"store_name"`
		Items       []models.ReceiptItem `json:"items"`
	}

	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExtraction, err)
	}

	extraction := &models.ReceiptExtraction{
		Amount: payload.Amount,
		Items:  payload.Items,
	}
	if payload.Category != nil {
		extraction.Category = strings.TrimSpace(*payload.Category)
	}
	if payload.Date != nil {
		extraction.Date = strings.TrimSpace(*payload.Date)
	}
	if payload.Description != nil {
		extraction.Description = sanitizeUTF8(strings.TrimSpace(*payload.Description))
	}
	if payload.StoreName != nil {
		extraction.StoreName = sanitizeUTF8(strings.TrimSpace(*payload.StoreName))
	}

	if strict {
		return extraction, nil
	}

	if extraction.Amount == nil {
		return nil, fmt.Errorf("%w: missing amount", ErrInvalidExtraction)
	}
	if *extraction.Amount < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidExtraction)
	}
	if _, ok := models.ParseCategory(extraction.Category); !ok {
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidExtraction, extraction.Category)
	}
	if _, err := time.Parse("2006-01-02", extraction.Date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidExtraction, extraction.Date)
	}
	return extraction, nil
}

// writeExtraction applies the validated result in a single record update.
// Fields the strict extractor returned as null keep their current values.
func (s *ExtractionService) writeExtraction(ctx context.Context, expense *models.Expense, extraction *models.ReceiptExtraction) error {
	amount := expense.Amount
	if extraction.Amount != nil {
		amount = *extraction.Amount
	}

	category := expense.Category
	if parsed, ok := models.ParseCategory(extraction.Category); ok {
		category = parsed
	}

	description := expense.Description
	if extraction.Description != "" {
		description = extraction.Description
	}

	vector := s.embedExpense(ctx, category, description, extraction.Items)

	if err := s.store.SetExtraction(ctx, expense.ID, amount, category, description, extraction, vector); err != nil {
		return err
	}

	s.logger.Info("Field extraction completed",
		zap.String("expense_id", expense.ID.String()),
		zap.String("category", string(category)),
		zap.Bool("embedded", vector != nil),
	)
	return nil
}

// Chat answers a free-form question about one extracted receipt. The model
// only sees this record's structured fields, so answers stay scoped to the
// single transaction.
func (s *ExtractionService) Chat(ctx context.Context, userID, id uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("empty question")
	}

	expense, err := s.store.GetByID(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if expense.Extraction == nil {
		return "", ErrNoExtraction
	}

	data, err := json.MarshalIndent(expense.Extraction, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize extraction: %w", err)
	}

	prompt := fmt.Sprintf(`You are a receipt assistant. You are given the parsed contents of one specific receipt.
Answer the user's question about this transaction accurately and helpfully.
If the question touches health, business use, or savings, give professional advice based on the listed items.
Keep the answer concise (under 80 words).

RECEIPT DATA:
%s

QUESTION:
%s`, string(data), question)

	answer, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	s.logger.Info("Receipt chat answered",
		zap.String("expense_id", expense.ID.String()),
		zap.Int("answer_length", len(answer)),
	)
	return sanitizeUTF8(answer), nil
}

// embedExpense derives the canonical embedding text and requests a vector.
// An embedding failure does not fail the extraction; the record simply has
// no vector and stays out of semantic search.
func (s *ExtractionService) embedExpense(ctx context.Context, category models.Category, description string, items []models.ReceiptItem) []float32 {
	text := EmbeddingText(category, description, items)
	if text == "" {
		return nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("Embedding generation failed", zap.Error(err))
		return nil
	}
	return vector
}

// EmbeddingText builds the canonical text embedded for a record. The query
// side of semantic search must stay consistent with this shape.
func EmbeddingText(category models.Category, description string, items []models.ReceiptItem) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		if item.Name != "" {
			names = append(names, item.Name)
		}
	}

	if category == "" && description == "" && len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("Category: %s. Description: %s. Items: %s", category, description, strings.Join(names, ", "))
}

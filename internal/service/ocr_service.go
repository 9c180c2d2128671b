package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"finbuddy/internal/models"
	"finbuddy/internal/ocrspace"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OCRRunOutcome describes what a single OCR stage invocation did.
type OCRRunOutcome string

const (
	// OCRRunIdle means no eligible receipt was found.
	OCRRunIdle OCRRunOutcome = "idle"
	// OCRRunCompleted means text was extracted and stored.
	OCRRunCompleted OCRRunOutcome = "completed"
	// OCRRunSoftFailed means the attempt counter was incremented; the record
	// stays eligible until it reaches the bound.
	OCRRunSoftFailed OCRRunOutcome = "soft_failed"
)

type OCRRunResult struct {
	Outcome   OCRRunOutcome
	ExpenseID uuid.UUID
	Attempts  int
	Text      string
}

// OCRService runs the first pipeline stage: claim one unprocessed receipt,
// extract its text, record the result. Each invocation performs exactly one
// record update.
type OCRService struct {
	store       ExpenseStore
	storage     ObjectStorage
	ocrClient   OCRClient
	callTimeout time.Duration
	logger      *zap.Logger
}

func NewOCRService(store ExpenseStore, storage ObjectStorage, ocrClient OCRClient, callTimeout time.Duration, logger *zap.Logger) *OCRService {
	return &OCRService{
		store:       store,
		storage:     storage,
		ocrClient:   ocrClient,
		callTimeout: callTimeout,
		logger:      logger,
	}
}

// ProcessNext claims at most one receipt and attempts text extraction.
// Any extraction problem short of a store failure is a soft failure: the
// attempt counter goes up by one and no text is written.
func (s *OCRService) ProcessNext(ctx context.Context) (*OCRRunResult, error) {
	expense, err := s.store.ClaimNextForOCR(ctx)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return &OCRRunResult{Outcome: OCRRunIdle}, nil
	}

	text, ok := s.extractText(ctx, expense)
	if !ok {
		if err := s.store.RecordOCRFailure(ctx, expense.ID); err != nil {
			return nil, err
		}
		s.logger.Warn("OCR soft failure",
			zap.String("expense_id", expense.ID.String()),
			zap.Int("attempts", expense.OCRAttempts+1),
		)
		return &OCRRunResult{
			Outcome:   OCRRunSoftFailed,
			ExpenseID: expense.ID,
			Attempts:  expense.OCRAttempts + 1,
		}, nil
	}

	if err := s.store.CompleteOCR(ctx, expense.ID, text); err != nil {
		return nil, err
	}

	s.logger.Info("OCR extraction completed",
		zap.String("expense_id", expense.ID.String()),
		zap.Int("text_length", len(text)),
	)
	return &OCRRunResult{
		Outcome:   OCRRunCompleted,
		ExpenseID: expense.ID,
		Attempts:  expense.OCRAttempts,
		Text:      text,
	}, nil
}

// extractText resolves the receipt object and produces its text. The second
// return value reports success; every failure path is soft.
func (s *OCRService) extractText(ctx context.Context, expense *models.Expense) (string, bool) {
	if expense.ReceiptPath == nil {
		return "", false
	}
	receiptPath := *expense.ReceiptPath

	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(receiptPath)), ".")
	if ext == "pdf" {
		return s.extractTextFromPDF(ctx, receiptPath)
	}

	signedURL, err := s.storage.SignedURL(ctx, receiptPath)
	if err != nil {
		s.logger.Warn("Failed to sign receipt URL", zap.Error(err), zap.String("path", receiptPath))
		return "", false
	}

	result, err := s.ocrClient.ParseImage(ctx, signedURL, ocrspace.FiletypeHint(ext))
	if err != nil {
		s.logger.Warn("OCR call failed", zap.Error(err), zap.String("path", receiptPath))
		return "", false
	}
	if !result.Success || result.Text == "" {
		return "", false
	}
	return result.Text, true
}

// extractTextFromPDF handles PDF receipts locally instead of sending them to
// the OCR service.
func (s *OCRService) extractTextFromPDF(ctx context.Context, receiptPath string) (string, bool) {
	data, err := s.storage.Download(ctx, receiptPath)
	if err != nil {
		s.logger.Warn("Failed to download PDF receipt", zap.Error(err), zap.String("path", receiptPath))
		return "", false
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		s.logger.Warn("Failed to open PDF", zap.Error(err), zap.String("path", receiptPath))
		return "", false
	}
	defer doc.Close()

	var textBuilder strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			s.logger.Warn("Failed to extract text from page",
				zap.Int("page", i+1),
				zap.String("path", receiptPath),
				zap.Error(err),
			)
			continue
		}
		if pageText != "" {
			textBuilder.WriteString(pageText)
			textBuilder.WriteString("\n")
		}
	}

	text := strings.TrimSpace(textBuilder.String())
	if text == "" {
		return "", false
	}
	return text, true
}

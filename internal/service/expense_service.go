package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"finbuddy/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpenseService handles record lifecycle outside the pipeline stages:
// receipt upload, manual entry, listing, and deletion.
type ExpenseService struct {
	store   ExpenseStore
	storage ObjectStorage
	logger  *zap.Logger
}

func NewExpenseService(store ExpenseStore, storage ObjectStorage, logger *zap.Logger) *ExpenseService {
	return &ExpenseService{
		store:   store,
		storage: storage,
		logger:  logger,
	}
}

// UploadReceipt stores the image and creates an unprocessed record for the
// pipeline to pick up. The stored object is removed again if the record
// insert fails, so no orphaned objects are left behind.
func (s *ExpenseService) UploadReceipt(ctx context.Context, userID uuid.UUID, file io.Reader, fileName string) (*models.Expense, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	id := uuid.New()
	receiptPath := fmt.Sprintf("receipts/%s/%s%s", userID, id, ext)

	if err := s.storage.Upload(ctx, receiptPath, file); err != nil {
		return nil, fmt.Errorf("failed to store receipt: %w", err)
	}

	now := time.Now()
	expense := &models.Expense{
		ID:          id,
		UserID:      userID,
		Category:    models.CategoryOther,
		Date:        now,
		ReceiptPath: &receiptPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, expense); err != nil {
		if delErr := s.storage.Delete(ctx, receiptPath); delErr != nil {
			s.logger.Warn("Failed to clean up receipt after insert failure", zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to create expense record: %w", err)
	}

	s.logger.Info("Receipt uploaded",
		zap.String("expense_id", id.String()),
		zap.String("path", receiptPath),
	)
	return expense, nil
}

// CreateManual creates a terminal record from user-entered fields; no receipt,
// no pipeline involvement.
func (s *ExpenseService) CreateManual(ctx context.Context, userID uuid.UUID, amount float64, category models.Category, date time.Time, description string) (*models.Expense, error) {
	if amount < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	// Store the canonical member of the closed set, not the caller's casing.
	normalized, ok := models.ParseCategory(string(category))
	if !ok {
		return nil, fmt.Errorf("unknown category %q", category)
	}

	now := time.Now()
	expense := &models.Expense{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Category:    normalized,
		Date:        date,
		Description: sanitizeUTF8(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("failed to create expense record: %w", err)
	}
	return expense, nil
}

func (s *ExpenseService) List(ctx context.Context, userID uuid.UUID) ([]*models.Expense, error) {
	return s.store.ListByOwner(ctx, userID)
}

func (s *ExpenseService) Get(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	return s.store.GetByID(ctx, userID, id)
}

// Delete removes the record and releases its stored receipt object, if any.
func (s *ExpenseService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	receiptPath, err := s.store.Delete(ctx, userID, id)
	if err != nil {
		return err
	}

	if receiptPath != nil {
		if err := s.storage.Delete(ctx, *receiptPath); err != nil {
			// The record is already gone; the object delete is retried on the
			// storage side rather than resurrecting the record.
			s.logger.Error("Failed to delete receipt object",
				zap.String("path", *receiptPath),
				zap.Error(err),
			)
			return fmt.Errorf("failed to delete receipt object: %w", err)
		}
	}

	s.logger.Info("Expense deleted", zap.String("expense_id", id.String()))
	return nil
}

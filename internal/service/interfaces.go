package service

import (
	"context"
	"errors"
	"io"
	"time"

	"finbuddy/internal/models"
	"finbuddy/internal/ocrspace"
	"finbuddy/internal/repository"

	"github.com/google/uuid"
)

// Typed invocation failures surfaced to callers. None of them mutate records.
var (
	ErrNotEnoughData     = errors.New("not enough expense records")
	ErrInvalidExtraction = errors.New("extraction response failed validation")
	ErrEmptyResponse     = errors.New("empty response from reasoning service")
	ErrNoReceipt         = errors.New("expense has no stored receipt")
	ErrNoOCRText         = errors.New("expense has no OCR text")
	ErrNoExtraction      = errors.New("expense has no structured extraction")
)

// ExpenseStore is the keyed record store behind the pipeline. Implemented by
// repository.ExpenseRepository; tests substitute fakes.
type ExpenseStore interface {
	Create(ctx context.Context, e *models.Expense) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.Expense, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Expense, error)
	ListSince(ctx context.Context, userID uuid.UUID, from time.Time) ([]*models.Expense, error)
	ClaimNextForOCR(ctx context.Context) (*models.Expense, error)
	CompleteOCR(ctx context.Context, id uuid.UUID, text string) error
	RecordOCRFailure(ctx context.Context, id uuid.UUID) error
	SetExtraction(ctx context.Context, id uuid.UUID, amount float64, category models.Category, description string, extraction *models.ReceiptExtraction, embedding []float32) error
	Delete(ctx context.Context, userID, id uuid.UUID) (*string, error)
	SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, threshold float64, limit int) ([]repository.SearchResult, error)
}

// SummaryStore is the two-level summary cache: an append-only content-addressed
// table plus a per-owner latest slot.
type SummaryStore interface {
	GetCached(ctx context.Context, userID uuid.UUID, hash string) (*models.SummaryCacheEntry, error)
	SaveCached(ctx context.Context, userID uuid.UUID, hash, text string) error
	UpsertLatest(ctx context.Context, userID uuid.UUID, text string) error
	GetLatest(ctx context.Context, userID uuid.UUID) (*models.LatestSummary, error)
}

// ProfileStore holds per-owner settings.
type ProfileStore interface {
	GetMonthlyBudget(ctx context.Context, userID uuid.UUID) (*float64, error)
	SetMonthlyBudget(ctx context.Context, userID uuid.UUID, budget float64) error
}

// ObjectStorage is the binary store for uploaded receipts.
type ObjectStorage interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	Download(ctx context.Context, path string) ([]byte, error)
	SignedURL(ctx context.Context, path string) (string, error)
	Delete(ctx context.Context, path string) error
}

// OCRClient is the external text-extraction service.
type OCRClient interface {
	ParseImage(ctx context.Context, imageURL, filetype string) (*ocrspace.Result, error)
}

// ReasoningClient is the external LLM used for structured extraction and
// narrative generation.
type ReasoningClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateFromImage(ctx context.Context, data []byte, filename, prompt string) (string, error)
}

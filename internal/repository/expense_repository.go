package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finbuddy/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("record not found")

// claimStaleAfter bounds how long a claimed receipt stays invisible to other
// invocations before it is considered abandoned and reclaimable.
const claimStaleAfter = 2 * time.Minute

// The embedding column is read back as real[]: pgx has no codec for the
// vector type, so a bare select of the column would fail to scan. pgvector
// ships casts in both directions, which also lets the write side store a
// plain float4 array parameter.
const expenseColumns = "id, user_id, amount, category, date, description, receipt_path, ocr_text, ocr_parsed, embedding::real[] AS embedding, ocr_attempts, claimed_at, created_at, updated_at"

type ExpenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewExpenseRepository(db *pgxpool.Pool, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *models.Expense) error {
	parsed, err := marshalExtraction(e.Extraction)
	if err != nil {
		return err
	}

	query := squirrel.Insert("expenses").
		Columns("id", "user_id", "amount", "category", "date", "description", "receipt_path", "ocr_text", "ocr_parsed", "embedding", "ocr_attempts", "created_at", "updated_at").
		Values(e.ID, e.UserID, e.Amount, e.Category, e.Date, e.Description, e.ReceiptPath, e.OCRText, parsed, vectorParam(e.Embedding), e.OCRAttempts, e.CreatedAt, e.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *ExpenseRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Expense, error) {
	query := squirrel.Select(expenseColumns).
		From("expenses").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, sql, args...)
	expense, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return expense, err
}

func (r *ExpenseRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*models.Expense, error) {
	query := squirrel.Select(expenseColumns).
		From("expenses").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("date DESC, created_at DESC").
		PlaceholderFormat(squirrel.Dollar)

	return r.queryExpenses(ctx, query)
}

// ListRecent returns the owner's newest records, bounded by limit.
func (r *ExpenseRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Expense, error) {
	query := squirrel.Select(expenseColumns).
		From("expenses").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("date DESC, created_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar)

	return r.queryExpenses(ctx, query)
}

// ListSince returns the owner's records dated on or after the given time.
func (r *ExpenseRepository) ListSince(ctx context.Context, userID uuid.UUID, from time.Time) ([]*models.Expense, error) {
	query := squirrel.Select(expenseColumns).
		From("expenses").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"date": from}).
		OrderBy("date DESC").
		PlaceholderFormat(squirrel.Dollar)

	return r.queryExpenses(ctx, query)
}

// ClaimNextForOCR atomically claims the oldest receipt still waiting for OCR.
// The claim is a single conditional update, so two concurrent invocations can
// never process the same record. Returns (nil, nil) when nothing is eligible.
func (r *ExpenseRepository) ClaimNextForOCR(ctx context.Context) (*models.Expense, error) {
	sql := fmt.Sprintf(`
		UPDATE expenses SET claimed_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM expenses
			WHERE ocr_text IS NULL
			  AND receipt_path IS NOT NULL
			  AND ocr_attempts < $1
			  AND (claimed_at IS NULL OR claimed_at < now() - $2::interval)
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, expenseColumns)

	staleInterval := fmt.Sprintf("%d seconds", int(claimStaleAfter.Seconds()))
	row := r.db.QueryRow(ctx, sql, models.MaxOCRAttempts, staleInterval)
	expense, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return expense, err
}

// CompleteOCR stores the extracted text and releases the claim. The attempt
// counter is left untouched on success.
func (r *ExpenseRepository) CompleteOCR(ctx context.Context, id uuid.UUID, text string) error {
	query := squirrel.Update("expenses").
		Set("ocr_text", text).
		Set("claimed_at", nil).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	return r.execOne(ctx, query)
}

// RecordOCRFailure increments the attempt counter by exactly one and releases
// the claim, keeping the record eligible until the counter reaches the bound.
func (r *ExpenseRepository) RecordOCRFailure(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Update("expenses").
		Set("ocr_attempts", squirrel.Expr("ocr_attempts + 1")).
		Set("claimed_at", nil).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	return r.execOne(ctx, query)
}

// SetExtraction writes the structured extraction result and the derived
// embedding in a single update, which is the ExtractionComplete transition.
func (r *ExpenseRepository) SetExtraction(ctx context.Context, id uuid.UUID, amount float64, category models.Category, description string, extraction *models.ReceiptExtraction, embedding []float32) error {
	parsed, err := marshalExtraction(extraction)
	if err != nil {
		return err
	}

	query := squirrel.Update("expenses").
		Set("amount", amount).
		Set("category", category).
		Set("description", description).
		Set("ocr_parsed", parsed).
		Set("embedding", vectorParam(embedding)).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	return r.execOne(ctx, query)
}

// Delete removes the record and returns the receipt path, if any, so the
// caller can release the stored object.
func (r *ExpenseRepository) Delete(ctx context.Context, userID, id uuid.UUID) (*string, error) {
	query := squirrel.Delete("expenses").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		Suffix("RETURNING receipt_path").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var receiptPath *string
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&receiptPath); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return receiptPath, nil
}

// SearchResult pairs a record with its cosine similarity to the query vector.
type SearchResult struct {
	Expense    *models.Expense
	Similarity float64
}

// SearchSimilar runs an owner-scoped nearest-neighbor query over the stored
// embeddings. pgvector's <=> operator yields cosine distance; similarity is
// 1 - distance. Rows below the threshold are excluded.
func (r *ExpenseRepository) SearchSimilar(ctx context.Context, userID uuid.UUID, embedding []float32, threshold float64, limit int) ([]SearchResult, error) {
	sql := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $2::vector) AS similarity
		FROM expenses
		WHERE user_id = $1
		  AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $2::vector) >= $3
		ORDER BY similarity DESC
		LIMIT $4`, expenseColumns)

	rows, err := r.db.Query(ctx, sql, userID, vectorParam(embedding), threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		expense, similarity, err := scanExpenseWithSimilarity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Expense: expense, Similarity: similarity})
	}
	return results, rows.Err()
}

func (r *ExpenseRepository) queryExpenses(ctx context.Context, query squirrel.SelectBuilder) ([]*models.Expense, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) execOne(ctx context.Context, query squirrel.UpdateBuilder) error {
	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	var (
		e         models.Expense
		parsed    []byte
		embedding pgtype.FlatArray[float32]
	)

	if err := row.Scan(
		&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Date, &e.Description,
		&e.ReceiptPath, &e.OCRText, &parsed, &embedding,
		&e.OCRAttempts, &e.ClaimedAt, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalExtraction(parsed, &e); err != nil {
		return nil, err
	}
	e.Embedding = []float32(embedding)
	return &e, nil
}

func scanExpenseWithSimilarity(row rowScanner) (*models.Expense, float64, error) {
	var (
		e          models.Expense
		parsed     []byte
		embedding  pgtype.FlatArray[float32]
		similarity float64
	)

	if err := row.Scan(
		&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Date, &e.Description,
		&e.ReceiptPath, &e.OCRText, &parsed, &embedding,
		&e.OCRAttempts, &e.ClaimedAt, &e.CreatedAt, &e.UpdatedAt,
		&similarity,
	); err != nil {
		return nil, 0, err
	}

	if err := unmarshalExtraction(parsed, &e); err != nil {
		return nil, 0, err
	}
	e.Embedding = []float32(embedding)
	return &e, similarity, nil
}

func marshalExtraction(extraction *models.ReceiptExtraction) ([]byte, error) {
	if extraction == nil {
		return nil, nil
	}
	data, err := json.Marshal(extraction)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extraction: %w", err)
	}
	return data, nil
}

func unmarshalExtraction(data []byte, e *models.Expense) error {
	if len(data) == 0 {
		return nil
	}
	var extraction models.ReceiptExtraction
	if err := json.Unmarshal(data, &extraction); err != nil {
		return fmt.Errorf("failed to unmarshal extraction: %w", err)
	}
	e.Extraction = &extraction
	return nil
}

// vectorParam converts an embedding to a float4 array parameter; pgvector's
// assignment cast turns it into a vector on write. A nil embedding stays NULL.
func vectorParam(embedding []float32) any {
	if embedding == nil {
		return nil
	}
	return pgtype.FlatArray[float32](embedding)
}

package repository

import (
	"context"
	"errors"
	"time"

	"finbuddy/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type SummaryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSummaryRepository(db *pgxpool.Pool, logger *zap.Logger) *SummaryRepository {
	return &SummaryRepository{
		db:     db,
		logger: logger,
	}
}

// GetCached looks up the content-addressed cache by (owner, snapshot hash).
func (r *SummaryRepository) GetCached(ctx context.Context, userID uuid.UUID, hash string) (*models.SummaryCacheEntry, error) {
	query := squirrel.Select("user_id", "snapshot_hash", "summary_text", "created_at").
		From("ai_summary_cache").
		Where(squirrel.Eq{"user_id": userID, "snapshot_hash": hash}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var entry models.SummaryCacheEntry
	err = r.db.QueryRow(ctx, sql, args...).Scan(&entry.UserID, &entry.SnapshotHash, &entry.SummaryText, &entry.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCached appends a cache row. The cache is append-only; a concurrent
// writer landing the same hash first wins and the duplicate is dropped.
func (r *SummaryRepository) SaveCached(ctx context.Context, userID uuid.UUID, hash, text string) error {
	query := squirrel.Insert("ai_summary_cache").
		Columns("user_id", "snapshot_hash", "summary_text", "created_at").
		Values(userID, hash, text, time.Now()).
		Suffix("ON CONFLICT (user_id, snapshot_hash) DO NOTHING").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// UpsertLatest maintains the single per-owner "most recent summary" row.
func (r *SummaryRepository) UpsertLatest(ctx context.Context, userID uuid.UUID, text string) error {
	query := squirrel.Insert("ai_summary_latest").
		Columns("user_id", "summary_text", "updated_at").
		Values(userID, text, time.Now()).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET summary_text = EXCLUDED.summary_text, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// GetLatest returns the owner's most recent summary without recomputing the
// snapshot hash.
func (r *SummaryRepository) GetLatest(ctx context.Context, userID uuid.UUID) (*models.LatestSummary, error) {
	query := squirrel.Select("user_id", "summary_text", "updated_at").
		From("ai_summary_latest").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var latest models.LatestSummary
	err = r.db.QueryRow(ctx, sql, args...).Scan(&latest.UserID, &latest.SummaryText, &latest.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &latest, nil
}

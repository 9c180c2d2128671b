package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type ProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProfileRepository(db *pgxpool.Pool, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetMonthlyBudget returns the owner's configured budget ceiling, or nil when
// none has been set (callers fall back to the configured default).
func (r *ProfileRepository) GetMonthlyBudget(ctx context.Context, userID uuid.UUID) (*float64, error) {
	query := squirrel.Select("monthly_budget").
		From("profiles").
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var budget *float64
	err = r.db.QueryRow(ctx, sql, args...).Scan(&budget)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return budget, nil
}

func (r *ProfileRepository) SetMonthlyBudget(ctx context.Context, userID uuid.UUID, budget float64) error {
	query := squirrel.Insert("profiles").
		Columns("user_id", "monthly_budget", "updated_at").
		Values(userID, budget, time.Now()).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET monthly_budget = EXCLUDED.monthly_budget, updated_at = EXCLUDED.updated_at").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

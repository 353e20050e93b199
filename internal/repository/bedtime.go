package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type BedtimeRepository interface {
	FindByUserID(ctx context.Context, userID string) (*model.BedtimeSettings, error)
	Upsert(ctx context.Context, settings *model.BedtimeSettings) (*model.BedtimeSettings, error)
	ListEnabled(ctx context.Context) ([]model.BedtimeSettings, error)
}

type bedtimeRepo struct {
	db *sqlx.DB
}

func NewBedtimeRepository(db *sqlx.DB) BedtimeRepository {
	return &bedtimeRepo{db: db}
}

func (r *bedtimeRepo) FindByUserID(ctx context.Context, userID string) (*model.BedtimeSettings, error) {
	var bt model.BedtimeSettings
	err := r.db.GetContext(ctx, &bt, `
		SELECT * FROM bedtime_settings WHERE user_id = $1
	`, userID)
	return HandleNotFound(&bt, err)
}

func (r *bedtimeRepo) Upsert(ctx context.Context, settings *model.BedtimeSettings) (*model.BedtimeSettings, error) {
	var bt model.BedtimeSettings
	err := r.db.GetContext(ctx, &bt, `
		INSERT INTO bedtime_settings (user_id, is_enabled, start_time, end_time, enabled_days)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			is_enabled = EXCLUDED.is_enabled,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			enabled_days = EXCLUDED.enabled_days,
			updated_at = NOW()
		RETURNING *
	`, settings.UserID, settings.IsEnabled, settings.StartTime, settings.EndTime, settings.EnabledDays)
	if err != nil {
		return nil, err
	}
	return &bt, nil
}

func (r *bedtimeRepo) ListEnabled(ctx context.Context) ([]model.BedtimeSettings, error) {
	var list []model.BedtimeSettings
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM bedtime_settings WHERE is_enabled = TRUE
	`)
	return list, err
}

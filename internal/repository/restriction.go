package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type RestrictionRepository interface {
	Find(ctx context.Context, parentID, bundleID string) (*model.AppRestriction, error)
	ListByParent(ctx context.Context, parentID string) ([]model.AppRestriction, error)
	Upsert(ctx context.Context, params model.UpsertRestrictionParams) (*model.AppRestriction, error)
	// Save writes back the mutable fields of a restriction read earlier in
	// the same request. Restriction mutations are single-row
	// read-modify-write operations keyed by (parent_id, bundle_id).
	Save(ctx context.Context, restriction *model.AppRestriction) error
	// AddUsage applies the day rollover and the usage increment in one
	// guarded write, so concurrent reports never lose an increment. On
	// rollover the counter restarts at elapsed and an automatic limit
	// disable (usage at or over a positive limit) is lifted; a manual
	// disable survives. Returns nil when the bundle is untracked.
	AddUsage(ctx context.Context, parentID, bundleID string, elapsed int, today string) (*model.AppRestriction, error)
	// MarkLimitExceeded flips is_disabled exactly once per crossing.
	// Returns nil when the guard loses: the row is already disabled or
	// the limit is not actually exceeded.
	MarkLimitExceeded(ctx context.Context, parentID, bundleID string) (*model.AppRestriction, error)
	Delete(ctx context.Context, parentID, bundleID string) error
}

type restrictionRepo struct {
	db *sqlx.DB
}

func NewRestrictionRepository(db *sqlx.DB) RestrictionRepository {
	return &restrictionRepo{db: db}
}

func (r *restrictionRepo) Find(ctx context.Context, parentID, bundleID string) (*model.AppRestriction, error) {
	var res model.AppRestriction
	err := r.db.GetContext(ctx, &res, `
		SELECT * FROM app_restrictions WHERE parent_id = $1 AND bundle_id = $2
	`, parentID, bundleID)
	return HandleNotFound(&res, err)
}

func (r *restrictionRepo) ListByParent(ctx context.Context, parentID string) ([]model.AppRestriction, error) {
	var list []model.AppRestriction
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM app_restrictions WHERE parent_id = $1 ORDER BY bundle_id
	`, parentID)
	return list, err
}

func (r *restrictionRepo) Upsert(ctx context.Context, params model.UpsertRestrictionParams) (*model.AppRestriction, error) {
	var res model.AppRestriction
	err := r.db.GetContext(ctx, &res, `
		INSERT INTO app_restrictions (parent_id, bundle_id, time_limit_seconds, is_disabled, last_reset_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (parent_id, bundle_id) DO UPDATE SET
			time_limit_seconds = EXCLUDED.time_limit_seconds,
			is_disabled = EXCLUDED.is_disabled,
			updated_at = NOW()
		RETURNING *
	`, params.ParentID, params.BundleID, params.TimeLimit, params.IsDisabled, params.LastResetDate)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *restrictionRepo) Save(ctx context.Context, restriction *model.AppRestriction) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE app_restrictions SET
			time_limit_seconds = $3,
			is_disabled = $4,
			daily_usage_seconds = $5,
			last_reset_date = $6,
			updated_at = NOW()
		WHERE parent_id = $1 AND bundle_id = $2
	`, restriction.ParentID, restriction.BundleID, restriction.TimeLimit,
		restriction.IsDisabled, restriction.DailyUsage, restriction.LastResetDate)
	return err
}

func (r *restrictionRepo) AddUsage(ctx context.Context, parentID, bundleID string, elapsed int, today string) (*model.AppRestriction, error) {
	var res model.AppRestriction
	err := r.db.GetContext(ctx, &res, `
		UPDATE app_restrictions SET
			daily_usage_seconds = CASE
				WHEN last_reset_date = $4 THEN daily_usage_seconds + $3
				ELSE $3
			END,
			is_disabled = CASE
				WHEN last_reset_date = $4 THEN is_disabled
				WHEN is_disabled AND time_limit_seconds > 0 AND daily_usage_seconds >= time_limit_seconds THEN FALSE
				ELSE is_disabled
			END,
			last_reset_date = $4,
			updated_at = NOW()
		WHERE parent_id = $1 AND bundle_id = $2
		RETURNING *
	`, parentID, bundleID, elapsed, today)
	return HandleNotFound(&res, err)
}

func (r *restrictionRepo) MarkLimitExceeded(ctx context.Context, parentID, bundleID string) (*model.AppRestriction, error) {
	var res model.AppRestriction
	err := r.db.GetContext(ctx, &res, `
		UPDATE app_restrictions SET is_disabled = TRUE, updated_at = NOW()
		WHERE parent_id = $1 AND bundle_id = $2
			AND is_disabled = FALSE
			AND time_limit_seconds > 0
			AND daily_usage_seconds >= time_limit_seconds
		RETURNING *
	`, parentID, bundleID)
	return HandleNotFound(&res, err)
}

func (r *restrictionRepo) Delete(ctx context.Context, parentID, bundleID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM app_restrictions WHERE parent_id = $1 AND bundle_id = $2
	`, parentID, bundleID)
	return err
}

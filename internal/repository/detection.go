package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type DetectionRepository interface {
	FindByID(ctx context.Context, id string) (*model.AppDetection, error)
	ListUnprocessedByParent(ctx context.Context, parentID string) ([]model.AppDetection, error)
	// HasOpenDetection reports whether an unprocessed detection already
	// exists for this bundle, so repeated app reports do not pile up rows.
	HasOpenDetection(ctx context.Context, parentID, bundleID string) (bool, error)
	Create(ctx context.Context, params model.CreateDetectionParams) (*model.AppDetection, error)
	// Resolve marks the detection processed. Resolved detections are
	// terminal and never mutated again.
	Resolve(ctx context.Context, id string, resolution model.DetectionResolution) (bool, error)
}

type detectionRepo struct {
	db *sqlx.DB
}

func NewDetectionRepository(db *sqlx.DB) DetectionRepository {
	return &detectionRepo{db: db}
}

func (r *detectionRepo) FindByID(ctx context.Context, id string) (*model.AppDetection, error) {
	var d model.AppDetection
	err := r.db.GetContext(ctx, &d, `SELECT * FROM app_detections WHERE id = $1`, id)
	return HandleNotFound(&d, err)
}

func (r *detectionRepo) ListUnprocessedByParent(ctx context.Context, parentID string) ([]model.AppDetection, error) {
	var list []model.AppDetection
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM app_detections
		WHERE parent_id = $1 AND is_processed = FALSE
		ORDER BY detected_at DESC
	`, parentID)
	return list, err
}

func (r *detectionRepo) HasOpenDetection(ctx context.Context, parentID, bundleID string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM app_detections
		WHERE parent_id = $1 AND bundle_id = $2 AND is_processed = FALSE
	`, parentID, bundleID)
	return count > 0, err
}

func (r *detectionRepo) Create(ctx context.Context, params model.CreateDetectionParams) (*model.AppDetection, error) {
	var d model.AppDetection
	err := r.db.GetContext(ctx, &d, `
		INSERT INTO app_detections (id, parent_id, bundle_id, app_name)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ID, params.ParentID, params.BundleID, params.AppName)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *detectionRepo) Resolve(ctx context.Context, id string, resolution model.DetectionResolution) (bool, error) {
	rows, err := RowsAffected(r.db.ExecContext(ctx, `
		UPDATE app_detections SET is_processed = TRUE, resolution = $2
		WHERE id = $1 AND is_processed = FALSE
	`, id, resolution))
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

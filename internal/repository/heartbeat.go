package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type HeartbeatRepository interface {
	FindByChildID(ctx context.Context, childUserID string) (*model.HeartbeatRecord, error)
	// Upsert applies a last-write-wins update keyed by child. An update
	// carrying a timestamp older than the stored row is a no-op, so
	// out-of-order delivery never regresses liveness state.
	Upsert(ctx context.Context, params model.UpsertHeartbeatParams) error
}

type heartbeatRepo struct {
	db *sqlx.DB
}

func NewHeartbeatRepository(db *sqlx.DB) HeartbeatRepository {
	return &heartbeatRepo{db: db}
}

func (r *heartbeatRepo) FindByChildID(ctx context.Context, childUserID string) (*model.HeartbeatRecord, error) {
	var hb model.HeartbeatRecord
	err := r.db.GetContext(ctx, &hb, `
		SELECT * FROM heartbeats WHERE child_user_id = $1
	`, childUserID)
	return HandleNotFound(&hb, err)
}

func (r *heartbeatRepo) Upsert(ctx context.Context, params model.UpsertHeartbeatParams) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO heartbeats (child_user_id, recorded_at, activity_type, device_info, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (child_user_id) DO UPDATE SET
			recorded_at = EXCLUDED.recorded_at,
			activity_type = EXCLUDED.activity_type,
			device_info = EXCLUDED.device_info,
			is_active = EXCLUDED.is_active
		WHERE heartbeats.recorded_at <= EXCLUDED.recorded_at
	`, params.ChildUserID, params.RecordedAt, params.ActivityType, params.DeviceInfo, params.IsActive)
	return err
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type RelationshipRepository interface {
	FindByID(ctx context.Context, id string) (*model.Relationship, error)
	FindActiveByPair(ctx context.Context, parentUserID, childUserID string) (*model.Relationship, error)
	FindActiveByChildID(ctx context.Context, childUserID string) ([]model.Relationship, error)
	FindActiveByUserID(ctx context.Context, userID string) ([]model.Relationship, error)
	Create(ctx context.Context, params model.CreateRelationshipParams) (*model.Relationship, error)
	// TouchSync updates last_sync_at and the device-info snapshot on every
	// active relationship where the user is the child.
	TouchSync(ctx context.Context, childUserID string, at time.Time, deviceInfo json.RawMessage) error
	// RecordHeartbeat advances last_heartbeat_at (never backwards) and
	// resets the missed counter.
	RecordHeartbeat(ctx context.Context, childUserID string, at time.Time) error
	// RecordShutdown flags a graceful closure so the escalation sweep does
	// not misreport a deliberately closed app.
	RecordShutdown(ctx context.Context, childUserID string) error
	SetMissedHeartbeats(ctx context.Context, id string, count int) error
	// FindHeartbeatOverdue returns active relationships whose last
	// heartbeat predates the cutoff and that were not closed gracefully.
	FindHeartbeatOverdue(ctx context.Context, cutoff time.Time) ([]model.Relationship, error)
	Unlink(ctx context.Context, id, unlinkedBy string, at time.Time) error
	WithTx(tx *sqlx.Tx) RelationshipRepository
}

type relationshipDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type relationshipRepo struct {
	db relationshipDB
}

func NewRelationshipRepository(db *sqlx.DB) RelationshipRepository {
	return &relationshipRepo{db: db}
}

func (r *relationshipRepo) WithTx(tx *sqlx.Tx) RelationshipRepository {
	return &relationshipRepo{db: tx}
}

func (r *relationshipRepo) FindByID(ctx context.Context, id string) (*model.Relationship, error) {
	var rel model.Relationship
	err := r.db.GetContext(ctx, &rel, `SELECT * FROM relationships WHERE id = $1`, id)
	return HandleNotFound(&rel, err)
}

func (r *relationshipRepo) FindActiveByPair(ctx context.Context, parentUserID, childUserID string) (*model.Relationship, error) {
	var rel model.Relationship
	err := r.db.GetContext(ctx, &rel, `
		SELECT * FROM relationships
		WHERE parent_user_id = $1 AND child_user_id = $2 AND is_active = TRUE
	`, parentUserID, childUserID)
	return HandleNotFound(&rel, err)
}

func (r *relationshipRepo) FindActiveByChildID(ctx context.Context, childUserID string) ([]model.Relationship, error) {
	var rels []model.Relationship
	err := r.db.SelectContext(ctx, &rels, `
		SELECT * FROM relationships
		WHERE child_user_id = $1 AND is_active = TRUE
		ORDER BY created_at DESC
	`, childUserID)
	return rels, err
}

func (r *relationshipRepo) FindActiveByUserID(ctx context.Context, userID string) ([]model.Relationship, error) {
	var rels []model.Relationship
	err := r.db.SelectContext(ctx, &rels, `
		SELECT * FROM relationships
		WHERE (parent_user_id = $1 OR child_user_id = $1) AND is_active = TRUE
		ORDER BY created_at DESC
	`, userID)
	return rels, err
}

func (r *relationshipRepo) Create(ctx context.Context, params model.CreateRelationshipParams) (*model.Relationship, error) {
	var rel model.Relationship
	err := r.db.GetContext(ctx, &rel, `
		INSERT INTO relationships (id, parent_user_id, child_user_id, child_name, device_name, pairing_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, params.ID, params.ParentUserID, params.ChildUserID, params.ChildName, params.DeviceName, params.PairingCode)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *relationshipRepo) TouchSync(ctx context.Context, childUserID string, at time.Time, deviceInfo json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE relationships SET
			last_sync_at = GREATEST(COALESCE(last_sync_at, 'epoch'::timestamptz), $2),
			child_device_info = COALESCE($3, child_device_info)
		WHERE child_user_id = $1 AND is_active = TRUE
	`, childUserID, at, deviceInfo)
	return err
}

func (r *relationshipRepo) RecordHeartbeat(ctx context.Context, childUserID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE relationships SET
			last_heartbeat_at = $2,
			missed_heartbeats = 0,
			is_normal_closure = FALSE
		WHERE child_user_id = $1 AND is_active = TRUE
		AND (last_heartbeat_at IS NULL OR last_heartbeat_at < $2)
	`, childUserID, at)
	return err
}

func (r *relationshipRepo) RecordShutdown(ctx context.Context, childUserID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE relationships SET
			is_normal_closure = TRUE,
			missed_heartbeats = 0
		WHERE child_user_id = $1 AND is_active = TRUE
	`, childUserID)
	return err
}

func (r *relationshipRepo) SetMissedHeartbeats(ctx context.Context, id string, count int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE relationships SET missed_heartbeats = $2
		WHERE id = $1 AND missed_heartbeats < $2
	`, id, count)
	return err
}

func (r *relationshipRepo) FindHeartbeatOverdue(ctx context.Context, cutoff time.Time) ([]model.Relationship, error) {
	var rels []model.Relationship
	err := r.db.SelectContext(ctx, &rels, `
		SELECT * FROM relationships
		WHERE is_active = TRUE
		AND is_normal_closure = FALSE
		AND last_heartbeat_at IS NOT NULL
		AND last_heartbeat_at < $1
	`, cutoff)
	return rels, err
}

func (r *relationshipRepo) Unlink(ctx context.Context, id, unlinkedBy string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE relationships SET
			is_active = FALSE,
			unlinked_at = $2,
			unlinked_by = $3
		WHERE id = $1 AND is_active = TRUE
	`, id, at, unlinkedBy)
	return err
}

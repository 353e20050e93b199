package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type PairingCodeRepository interface {
	// FindSubmittable returns a code that has been neither consumed nor
	// swept as expired. Expiry against the wall clock is the caller's
	// responsibility; the sweep may not have run yet.
	FindSubmittable(ctx context.Context, code string) (*model.PairingCode, error)
	FindActiveByChildID(ctx context.Context, childUserID string) ([]model.PairingCode, error)
	Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	// Consume flips is_active exactly once. Returns false when the code was
	// already consumed or swept, which is how a racing submission loses.
	Consume(ctx context.Context, code string) (bool, error)
	MarkExpiredBatch(ctx context.Context) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	WithTx(tx *sqlx.Tx) PairingCodeRepository
}

type pairingDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type pairingCodeRepo struct {
	db pairingDB
}

func NewPairingCodeRepository(db *sqlx.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) WithTx(tx *sqlx.Tx) PairingCodeRepository {
	return &pairingCodeRepo{db: tx}
}

func (r *pairingCodeRepo) FindSubmittable(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes
		WHERE code = $1 AND is_active = FALSE AND is_expired = FALSE
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) FindActiveByChildID(ctx context.Context, childUserID string) ([]model.PairingCode, error) {
	var codes []model.PairingCode
	err := r.db.SelectContext(ctx, &codes, `
		SELECT * FROM pairing_codes
		WHERE child_user_id = $1 AND is_active = FALSE AND is_expired = FALSE AND expires_at > NOW()
		ORDER BY created_at DESC
	`, childUserID)
	return codes, err
}

func (r *pairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, child_user_id, child_name, device_name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Code, params.ChildUserID, params.ChildName, params.DeviceName, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) Consume(ctx context.Context, code string) (bool, error) {
	rows, err := RowsAffected(r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET is_active = TRUE
		WHERE code = $1 AND is_active = FALSE AND is_expired = FALSE
	`, code))
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (r *pairingCodeRepo) MarkExpiredBatch(ctx context.Context) (int64, error) {
	return RowsAffected(r.db.ExecContext(ctx, `
		UPDATE pairing_codes SET is_expired = TRUE
		WHERE expires_at < NOW() AND is_expired = FALSE AND is_active = FALSE
	`))
}

func (r *pairingCodeRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return RowsAffected(r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes WHERE created_at < $1
	`, cutoff))
}

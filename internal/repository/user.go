package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	Create(ctx context.Context, params model.CreateUserParams) (*model.User, error)
	SetDevicePaired(ctx context.Context, id string, paired bool) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
	// FindInactiveChildren returns paired child users whose last activity
	// predates the cutoff (or who have never reported activity).
	FindInactiveChildren(ctx context.Context, cutoff time.Time) ([]model.User, error)
	WithTx(tx *sqlx.Tx) UserRepository
}

type userDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type userRepo struct {
	db userDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	return HandleNotFound(&u, err)
}

func (r *userRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `
		SELECT * FROM users WHERE device_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&u, err)
}

func (r *userRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, `
		INSERT INTO users (role, display_name, device_name, device_token_hash, timezone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.Role, params.DisplayName, params.DeviceName, params.DeviceTokenHash, params.Timezone)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) SetDevicePaired(ctx context.Context, id string, paired bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET is_device_paired = $2 WHERE id = $1
	`, id, paired)
	return err
}

func (r *userRepo) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_active_at = $2
		WHERE id = $1 AND (last_active_at IS NULL OR last_active_at < $2)
	`, id, at)
	return err
}

func (r *userRepo) FindInactiveChildren(ctx context.Context, cutoff time.Time) ([]model.User, error) {
	var users []model.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE role = 'child' AND is_device_paired = TRUE
		AND (last_active_at IS NULL OR last_active_at < $1)
	`, cutoff)
	return users, err
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/nestlink/guardian-server-go/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]model.Notification, error)
}

type notificationRepo struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	var created model.Notification
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO notifications (id, recipient_id, type, title, message, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, n.ID, n.RecipientID, n.Type, n.Title, n.Message, n.Data)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]model.Notification, error) {
	var list []model.Notification
	err := r.db.SelectContext(ctx, &list, `
		SELECT * FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, recipientID, limit, offset)
	return list, err
}

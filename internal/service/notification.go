package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

// Notifier is the boundary to the delivery layer. The core emits events
// here; transport (push, in-app) is outside this service's scope.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// StoreNotifier persists emitted notifications for the delivery layer to
// drain. It is the production Notifier.
type StoreNotifier struct {
	repo repository.NotificationRepository
}

func NewStoreNotifier(repo repository.NotificationRepository) *StoreNotifier {
	return &StoreNotifier{repo: repo}
}

func (s *StoreNotifier) Notify(ctx context.Context, n model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	if _, err := s.repo.Create(ctx, &n); err != nil {
		return err
	}

	log.Info().
		Str("recipientId", n.RecipientID).
		Str("type", string(n.Type)).
		Str("title", n.Title).
		Msg("notification emitted")

	return nil
}

func notificationData(fields map[string]any) json.RawMessage {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return data
}

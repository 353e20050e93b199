package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/repository"
)

type NotificationHandler struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationHandler(notificationRepo repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notificationRepo: notificationRepo}
}

func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)

	return r
}

// GET /v1/notifications?limit=&offset=
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	page := ParsePagination(r)

	notifications, err := h.notificationRepo.ListByRecipient(r.Context(), user.ID, page.Limit, page.Offset)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list notifications")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"limit":         page.Limit,
		"offset":        page.Offset,
	})
}

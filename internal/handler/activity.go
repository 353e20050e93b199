package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/service"
)

type ActivityHandler struct {
	activityService *service.ActivityService
}

func NewActivityHandler(activityService *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func (h *ActivityHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireRole(model.UserRoleChild)).Post("/", h.Record)

	return r
}

// POST /v1/activity
// Receives lifecycle pings from the child device. Heartbeats and
// shutdowns additionally update the relationship's liveness state.
func (h *ActivityHandler) Record(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		ActivityType string          `json:"activityType"`
		DeviceInfo   json.RawMessage `json:"deviceInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("activityType"))
		return
	}

	activityType := model.ActivityType(req.ActivityType)
	if err := h.activityService.RecordActivity(r.Context(), user.ID, activityType, req.DeviceInfo); err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).
				Str("userId", user.ID).
				Str("activityType", req.ActivityType).
				Msg("failed to record activity")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

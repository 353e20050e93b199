package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/devicecache"
	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/service"
)

// DeviceHandler serves the child-side read of the enforcement mirror.
// The device polls this instead of the relational store so a database
// outage cannot stop on-device enforcement.
type DeviceHandler struct {
	cache          *devicecache.Cache
	pairingService *service.PairingService
}

func NewDeviceHandler(cache *devicecache.Cache, pairingService *service.PairingService) *DeviceHandler {
	return &DeviceHandler{cache: cache, pairingService: pairingService}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireRole(model.UserRoleChild)).Get("/state", h.State)

	return r
}

// GET /v1/device/state
func (h *DeviceHandler) State(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	relationships, err := h.pairingService.ListRelationships(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to resolve relationship for device state")
		writeError(w, apperrors.Database(err))
		return
	}
	if len(relationships) == 0 {
		writeError(w, apperrors.NotFound("Relationship"))
		return
	}
	parentID := relationships[0].ParentUserID

	restrictions, err := h.cache.ReadRestrictions(r.Context(), parentID)
	if err != nil {
		log.Error().Err(err).Str("parentId", parentID).Msg("failed to read restriction mirror")
		writeError(w, apperrors.Internal("Device state is temporarily unavailable"))
		return
	}

	bedtime, err := h.cache.ReadBedtime(r.Context(), parentID)
	if err != nil {
		log.Error().Err(err).Str("parentId", parentID).Msg("failed to read bedtime mirror")
		writeError(w, apperrors.Internal("Device state is temporarily unavailable"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restrictions": restrictions,
		"bedtime":      bedtime,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/service"
)

// UsageHandler receives screen-time reports from the child device.
// Restrictions are keyed by the supervising parent, so each report is
// attributed to the child's active relationship.
type UsageHandler struct {
	restrictionService *service.RestrictionService
	detectionService   *service.DetectionService
	pairingService     *service.PairingService
}

func NewUsageHandler(
	restrictionService *service.RestrictionService,
	detectionService *service.DetectionService,
	pairingService *service.PairingService,
) *UsageHandler {
	return &UsageHandler{
		restrictionService: restrictionService,
		detectionService:   detectionService,
		pairingService:     pairingService,
	}
}

func (h *UsageHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequireRole(model.UserRoleChild))

	r.Post("/", h.RecordUsage)
	r.Post("/apps", h.ReportApps)

	return r
}

// POST /v1/usage
func (h *UsageHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		BundleID       string `json:"bundleId"`
		ElapsedSeconds int    `json:"elapsedSeconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BundleID == "" {
		writeError(w, apperrors.MissingRequired("bundleId"))
		return
	}
	if req.ElapsedSeconds < 0 {
		writeError(w, apperrors.InvalidInput("elapsedSeconds", "must not be negative"))
		return
	}

	parentID, err := h.supervisorID(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	restriction, err := h.restrictionService.RecordUsage(r.Context(), user, parentID, req.BundleID, req.ElapsedSeconds)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeNotFound {
			// Nothing tracks this bundle; the report is accepted and dropped.
			writeJSON(w, http.StatusOK, map[string]any{"tracked": false})
			return
		}
		log.Error().Err(err).
			Str("userId", user.ID).
			Str("bundleId", req.BundleID).
			Msg("failed to record usage")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracked":           true,
		"dailyUsageSeconds": restriction.DailyUsage,
		"timeLimitSeconds":  restriction.TimeLimit,
		"isDisabled":        restriction.IsDisabled,
	})
}

// POST /v1/usage/apps
// Bulk report of apps seen on the device; unknown bundles become
// pending detections for the parent.
func (h *UsageHandler) ReportApps(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Apps []service.ReportedApp `json:"apps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Apps) == 0 {
		writeError(w, apperrors.MissingRequired("apps"))
		return
	}

	parentID, err := h.supervisorID(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	detections, err := h.detectionService.ReportApps(r.Context(), parentID, req.Apps)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to report apps")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reported": len(req.Apps),
		"new":      len(detections),
	})
}

func (h *UsageHandler) supervisorID(ctx context.Context, childUserID string) (string, error) {
	relationships, err := h.pairingService.ListRelationships(ctx, childUserID)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if len(relationships) == 0 {
		return "", apperrors.NotFound("Relationship")
	}
	return relationships[0].ParentUserID, nil
}

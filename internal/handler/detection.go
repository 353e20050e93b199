package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/audit"
	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/service"
	"github.com/nestlink/guardian-server-go/internal/util"
)

type DetectionHandler struct {
	detectionService *service.DetectionService
}

func NewDetectionHandler(detectionService *service.DetectionService) *DetectionHandler {
	return &DetectionHandler{detectionService: detectionService}
}

func (h *DetectionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequireRole(model.UserRoleParent))

	r.Get("/", h.List)
	r.Post("/{detectionID}/resolve", h.Resolve)

	return r
}

// GET /v1/detections
// Pending detections only; resolved ones are terminal and not listed.
func (h *DetectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	detections, err := h.detectionService.ListPending(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list detections")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"detections": detections,
		"total":      len(detections),
	})
}

// POST /v1/detections/{detectionID}/resolve
func (h *DetectionHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	detectionID := chi.URLParam(r, "detectionID")

	if !util.IsValidUUID(detectionID) {
		writeError(w, apperrors.InvalidInput("detectionID", "must be a UUID"))
		return
	}

	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("action"))
		return
	}

	resolution := model.DetectionResolution(req.Action)
	detection, err := h.detectionService.ResolveDetection(r.Context(), user.ID, detectionID, resolution)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventDetection,
		UserID: user.ID,
		Details: map[string]interface{}{
			"resolution": string(resolution),
			"bundleId":   detection.BundleID,
		},
	})

	writeJSON(w, http.StatusOK, detection)
}

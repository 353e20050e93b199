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
)

type RestrictionHandler struct {
	restrictionService *service.RestrictionService
}

func NewRestrictionHandler(restrictionService *service.RestrictionService) *RestrictionHandler {
	return &RestrictionHandler{restrictionService: restrictionService}
}

func (h *RestrictionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequireRole(model.UserRoleParent))

	r.Get("/", h.List)
	r.Post("/{bundleID}/limit", h.SetLimit)
	r.Post("/{bundleID}/disable", h.Disable)
	r.Post("/{bundleID}/enable", h.Enable)
	r.Delete("/{bundleID}", h.Remove)

	return r
}

// GET /v1/restrictions
func (h *RestrictionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	restrictions, err := h.restrictionService.ListRestrictions(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list restrictions")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"restrictions": restrictions,
		"total":        len(restrictions),
	})
}

// POST /v1/restrictions/{bundleID}/limit
func (h *RestrictionHandler) SetLimit(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	bundleID := chi.URLParam(r, "bundleID")

	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("seconds"))
		return
	}

	restriction, err := h.restrictionService.SetAppLimit(r.Context(), user, bundleID, req.Seconds)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, restriction)
}

// POST /v1/restrictions/{bundleID}/disable
func (h *RestrictionHandler) Disable(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	bundleID := chi.URLParam(r, "bundleID")

	restriction, err := h.restrictionService.DisableApp(r.Context(), user, bundleID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventAppDisabled,
		UserID: user.ID,
		Details: map[string]interface{}{
			"bundleId": bundleID,
		},
	})

	writeJSON(w, http.StatusOK, restriction)
}

// POST /v1/restrictions/{bundleID}/enable
func (h *RestrictionHandler) Enable(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	bundleID := chi.URLParam(r, "bundleID")

	restriction, err := h.restrictionService.EnableApp(r.Context(), user, bundleID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, restriction)
}

// DELETE /v1/restrictions/{bundleID}
func (h *RestrictionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	bundleID := chi.URLParam(r, "bundleID")

	if err := h.restrictionService.RemoveApp(r.Context(), user, bundleID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

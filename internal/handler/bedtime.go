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

type BedtimeHandler struct {
	bedtimeService *service.BedtimeService
}

func NewBedtimeHandler(bedtimeService *service.BedtimeService) *BedtimeHandler {
	return &BedtimeHandler{bedtimeService: bedtimeService}
}

func (h *BedtimeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequireRole(model.UserRoleParent))

	r.Post("/", h.Set)
	r.Get("/", h.Get)

	return r
}

// POST /v1/bedtime
func (h *BedtimeHandler) Set(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var input service.BedtimeInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	settings, err := h.bedtimeService.SetBedtime(r.Context(), user, input)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Str("userId", user.ID).Msg("failed to set bedtime")
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// GET /v1/bedtime
func (h *BedtimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	settings, err := h.bedtimeService.GetBedtime(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to load bedtime")
		writeError(w, err)
		return
	}

	if settings == nil {
		writeError(w, apperrors.NotFound("Bedtime settings"))
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

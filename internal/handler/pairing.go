package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nestlink/guardian-server-go/internal/audit"
	apperrors "github.com/nestlink/guardian-server-go/internal/errors"
	"github.com/nestlink/guardian-server-go/internal/middleware"
	"github.com/nestlink/guardian-server-go/internal/model"
	"github.com/nestlink/guardian-server-go/internal/service"
	"github.com/nestlink/guardian-server-go/internal/util"
)

type PairingHandler struct {
	pairingService *service.PairingService
}

func NewPairingHandler(pairingService *service.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.RequireRole(model.UserRoleChild)).Post("/code", h.GenerateCode)
	r.With(middleware.RequireRole(model.UserRoleChild)).Get("/codes", h.ListCodes)
	r.With(middleware.RequireRole(model.UserRoleParent)).Post("/submit", h.SubmitCode)

	return r
}

// POST /v1/pairing/code
// Issues a short-lived 6-digit code shown on the child device screen.
func (h *PairingHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	code, err := h.pairingService.GenerateCode(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to generate pairing code")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventCodeGenerate,
		UserID: user.ID,
		Details: map[string]interface{}{
			"code": util.MaskCode(code.Code),
		},
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt.Format(time.RFC3339),
	})
}

// GET /v1/pairing/codes
// Lists the child's codes that are still open for submission.
func (h *PairingHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	codes, err := h.pairingService.ListActiveCodes(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list pairing codes")
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(codes))
	for i, c := range codes {
		formatted[i] = map[string]any{
			"code":      c.Code,
			"createdAt": c.CreatedAt.Format(time.RFC3339),
			"expiresAt": c.ExpiresAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"codes": formatted,
		"total": len(codes),
	})
}

// POST /v1/pairing/submit
// Redeems a code typed into the parent app and links the two accounts.
func (h *PairingHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.MissingRequired("code"))
		return
	}

	result, err := h.pairingService.SubmitCode(r.Context(), req.Code, user.ID)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:   audit.EventPairingFailure,
			UserID: user.ID,
			Details: map[string]interface{}{
				"code": util.MaskCode(req.Code),
			},
		})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventPairingSuccess,
		UserID: user.ID,
		Details: map[string]interface{}{
			"relationshipId": result.RelationshipID,
		},
	})

	writeJSON(w, http.StatusCreated, result)
}

type RelationshipHandler struct {
	pairingService *service.PairingService
}

func NewRelationshipHandler(pairingService *service.PairingService) *RelationshipHandler {
	return &RelationshipHandler{pairingService: pairingService}
}

func (h *RelationshipHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Delete("/{relationshipID}", h.Unpair)

	return r
}

// GET /v1/relationships
func (h *RelationshipHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	relationships, err := h.pairingService.ListRelationships(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to list relationships")
		writeError(w, err)
		return
	}

	formatted := make([]map[string]any, len(relationships))
	for i, rel := range relationships {
		formatted[i] = formatRelationship(rel)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"relationships": formatted,
		"total":         len(relationships),
	})
}

// DELETE /v1/relationships/{relationshipID}
// Either party may unlink; re-pairing needs a fresh code.
func (h *RelationshipHandler) Unpair(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	relationshipID := chi.URLParam(r, "relationshipID")

	if !util.IsValidUUID(relationshipID) {
		writeError(w, apperrors.InvalidInput("relationshipID", "must be a UUID"))
		return
	}

	if err := h.pairingService.Unpair(r.Context(), relationshipID, user.ID); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventUnlink,
		UserID: user.ID,
		Details: map[string]interface{}{
			"relationshipId": relationshipID,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func formatRelationship(rel model.Relationship) map[string]any {
	return map[string]any{
		"id":               rel.ID,
		"parentUserId":     rel.ParentUserID,
		"childUserId":      rel.ChildUserID,
		"childName":        rel.ChildName,
		"deviceName":       rel.DeviceName,
		"lastSyncAt":       formatTime(rel.LastSyncAt),
		"lastHeartbeatAt":  formatTime(rel.LastHeartbeatAt),
		"missedHeartbeats": rel.MissedHeartbeats,
		"isNormalClosure":  rel.IsNormalClosure,
		"createdAt":        rel.CreatedAt.Format(time.RFC3339),
	}
}

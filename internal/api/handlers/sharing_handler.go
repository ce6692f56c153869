package handlers

import (
	"net/http"

	"github.com/mermaid-studio/engine/internal/api/types"
	"github.com/mermaid-studio/engine/internal/services"
)

type SharingHandler struct {
	svc services.SharingService
}

func NewSharingHandler(svc services.SharingService) *SharingHandler {
	return &SharingHandler{svc: svc}
}

// SetPublic godoc
// @Summary  Toggle public visibility
// @Tags     sharing
// @Accept   json
// @Produce  json
// @Param    id   path string                  true "diagram id"
// @Param    body body types.VisibilityRequest true "visibility"
// @Success  200 {object} types.APIResponse{data=models.Diagram}
// @Security BearerAuth
// @Router   /diagrams/{id}/public [put]
func (h *SharingHandler) SetPublic(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.VisibilityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.SetPublic(r.Context(), principal(r), id, *req.Public)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, d, nil)
}

// Share godoc
// @Summary  Share with users (write) and roles (read), optionally making public
// @Tags     sharing
// @Accept   json
// @Produce  json
// @Param    id   path string             true "diagram id"
// @Param    body body types.ShareRequest true "share targets"
// @Success  200 {object} types.APIResponse{data=models.Diagram}
// @Security BearerAuth
// @Router   /diagrams/{id}/share [post]
func (h *SharingHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ShareRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	users, err := parseUUIDs(req.Users, "users")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.Share(r.Context(), principal(r), id, &services.ShareInput{Users: users, Roles: req.Roles, Public: req.Public})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, d, nil)
}

// Grant godoc
// @Summary  Grant or change a user's permission
// @Tags     sharing
// @Accept   json
// @Param    id      path string             true  "diagram id"
// @Param    user_id path string             true  "grantee id"
// @Param    body    body types.GrantRequest false "permission (read|write|share, default read)"
// @Success  204
// @Security BearerAuth
// @Router   /diagrams/{id}/shares/{user_id} [put]
func (h *SharingHandler) Grant(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.GrantRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if err := h.svc.Grant(r.Context(), principal(r), id, userID, req.Permission); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Revoke godoc
// @Summary  Remove a user's grant; no-op when absent
// @Tags     sharing
// @Param    id      path string true "diagram id"
// @Param    user_id path string true "grantee id"
// @Success  204
// @Security BearerAuth
// @Router   /diagrams/{id}/shares/{user_id} [delete]
func (h *SharingHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathUUID(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Revoke(r.Context(), principal(r), id, userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

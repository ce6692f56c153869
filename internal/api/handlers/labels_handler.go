package handlers

import (
	"net/http"

	"github.com/mermaid-studio/engine/internal/api/types"
	"github.com/mermaid-studio/engine/internal/services"
)

// LabelsHandler serves categories and tags.
type LabelsHandler struct {
	svc services.LabelService
}

func NewLabelsHandler(svc services.LabelService) *LabelsHandler {
	return &LabelsHandler{svc: svc}
}

// @Summary  List categories
// @Tags     labels
// @Produce  json
// @Success  200 {object} types.APIResponse{data=[]models.Category}
// @Security BearerAuth
// @Router   /categories [get]
func (h *LabelsHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items, &types.Meta{Count: len(items)})
}

// @Summary  Create a category
// @Tags     labels
// @Accept   json
// @Produce  json
// @Param    body body types.CategoryRequest true "category"
// @Success  201 {object} types.APIResponse{data=models.Category}
// @Security BearerAuth
// @Router   /categories [post]
func (h *LabelsHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req types.CategoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), &services.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, c, nil)
}

// @Summary  Rename a category
// @Tags     labels
// @Accept   json
// @Produce  json
// @Param    id   path string                true "category id"
// @Param    body body types.CategoryRequest true "category"
// @Success  200 {object} types.APIResponse{data=models.Category}
// @Security BearerAuth
// @Router   /categories/{id} [put]
func (h *LabelsHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.CategoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.UpdateCategory(r.Context(), id, &services.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, c, nil)
}

// @Summary  Delete a category
// @Tags     labels
// @Param    id path string true "category id"
// @Success  204
// @Security BearerAuth
// @Router   /categories/{id} [delete]
func (h *LabelsHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary  List tags
// @Tags     labels
// @Produce  json
// @Success  200 {object} types.APIResponse{data=[]models.Tag}
// @Security BearerAuth
// @Router   /tags [get]
func (h *LabelsHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items, &types.Meta{Count: len(items)})
}

// @Summary  Create a tag
// @Tags     labels
// @Accept   json
// @Produce  json
// @Param    body body types.TagRequest true "tag"
// @Success  201 {object} types.APIResponse{data=models.Tag}
// @Security BearerAuth
// @Router   /tags [post]
func (h *LabelsHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req types.TagRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.CreateTag(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, t, nil)
}

// @Summary  Rename a tag
// @Tags     labels
// @Accept   json
// @Produce  json
// @Param    id   path string           true "tag id"
// @Param    body body types.TagRequest true "tag"
// @Success  200 {object} types.APIResponse{data=models.Tag}
// @Security BearerAuth
// @Router   /tags/{id} [put]
func (h *LabelsHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.TagRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := h.svc.UpdateTag(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, t, nil)
}

// @Summary  Delete a tag
// @Tags     labels
// @Param    id path string true "tag id"
// @Success  204
// @Security BearerAuth
// @Router   /tags/{id} [delete]
func (h *LabelsHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteTag(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

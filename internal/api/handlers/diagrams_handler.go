package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/api/types"
	"github.com/mermaid-studio/engine/internal/services"
	"github.com/mermaid-studio/engine/pkg/utils"
)

type DiagramsHandler struct {
	svc services.DiagramService
}

func NewDiagramsHandler(svc services.DiagramService) *DiagramsHandler {
	return &DiagramsHandler{svc: svc}
}

// Create godoc
// @Summary  Create a diagram
// @Tags     diagrams
// @Accept   json
// @Produce  json
// @Param    body body types.DiagramCreateRequest true "diagram"
// @Success  201 {object} types.APIResponse{data=models.Diagram}
// @Failure  400 {object} types.APIResponse
// @Security BearerAuth
// @Router   /diagrams [post]
func (h *DiagramsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req types.DiagramCreateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := &services.CreateDiagramInput{
		Title:         req.Title,
		DiagramType:   req.DiagramType,
		SourceText:    req.SourceText,
		Description:   req.Description,
		RenderedImage: req.RenderedImage,
	}
	if req.CategoryID != nil && *req.CategoryID != "" {
		id, err := parseUUID(*req.CategoryID, "category_id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.CategoryID = &id
	}
	tagIDs, err := parseUUIDs(req.TagIDs, "tag_ids")
	if err != nil {
		writeError(w, r, err)
		return
	}
	in.TagIDs = tagIDs

	res, err := h.svc.Create(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, res.Diagram, &types.Meta{Notices: res.Notices})
}

// Get godoc
// @Summary  Get a diagram
// @Tags     diagrams
// @Produce  json
// @Param    id path string true "diagram id"
// @Success  200 {object} types.APIResponse{data=models.Diagram}
// @Failure  403 {object} types.APIResponse
// @Failure  404 {object} types.APIResponse
// @Security BearerAuth
// @Router   /diagrams/{id} [get]
func (h *DiagramsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.svc.Get(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, d, nil)
}

// Update godoc
// @Summary  Update diagram fields
// @Tags     diagrams
// @Accept   json
// @Produce  json
// @Param    id   path string true "diagram id"
// @Param    body body types.DiagramUpdateRequest true "fields to change"
// @Success  200 {object} types.APIResponse{data=models.Diagram}
// @Security BearerAuth
// @Router   /diagrams/{id} [put]
func (h *DiagramsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.DiagramUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := &services.UpdateDiagramInput{
		Title:         req.Title,
		DiagramType:   req.DiagramType,
		SourceText:    req.SourceText,
		Description:   req.Description,
		RenderedImage: req.RenderedImage,
	}
	if req.CategoryID != nil {
		if *req.CategoryID == "" {
			in.ClearCategory = true
		} else {
			cid, err := parseUUID(*req.CategoryID, "category_id")
			if err != nil {
				writeError(w, r, err)
				return
			}
			in.CategoryID = &cid
		}
	}
	if req.TagIDs != nil {
		tagIDs, err := parseUUIDs(*req.TagIDs, "tag_ids")
		if err != nil {
			writeError(w, r, err)
			return
		}
		in.TagIDs = tagIDs
	}

	res, err := h.svc.Update(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, res.Diagram, &types.Meta{Notices: res.Notices})
}

// UpdateContent godoc
// @Summary  Replace the diagram source and rendered image
// @Tags     diagrams
// @Accept   json
// @Produce  json
// @Param    id   path string true "diagram id"
// @Param    body body types.ContentUpdateRequest true "content"
// @Success  200 {object} types.APIResponse{data=models.Diagram}
// @Security BearerAuth
// @Router   /diagrams/{id}/content [put]
func (h *DiagramsHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.ContentUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.UpdateContent(r.Context(), principal(r), id, &services.UpdateContentInput{
		SourceText:    req.SourceText,
		RenderedImage: req.RenderedImage,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, res.Diagram, &types.Meta{Notices: res.Notices})
}

// List godoc
// @Summary  List diagrams, newest first
// @Tags     diagrams
// @Produce  json
// @Param    limit          query int    false "page size (default 20, max 100)"
// @Param    offset         query int    false "offset"
// @Param    type           query string false "diagram type label"
// @Param    public         query bool   false "visibility"
// @Param    owner          query string false "owner id"
// @Param    category       query string false "category id"
// @Param    tag            query string false "tag name"
// @Param    include_shared query bool   false "include public and shared diagrams"
// @Success  200 {object} types.APIResponse{data=[]models.DiagramSummary}
// @Security BearerAuth
// @Router   /diagrams [get]
func (h *DiagramsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := &services.DiagramFilters{DiagramType: q.Get("type"), Tag: q.Get("tag")}

	var err error
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.IsPublic, err = queryBool(r, "public"); err != nil {
		writeError(w, r, err)
		return
	}
	shared, err := queryBool(r, "include_shared")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.IncludeShared = shared != nil && *shared
	if f.OwnerID, err = optionalUUID(q.Get("owner"), "owner"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.CategoryID, err = optionalUUID(q.Get("category"), "category"); err != nil {
		writeError(w, r, err)
		return
	}

	items, err := h.svc.List(r.Context(), principal(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items, &types.Meta{Limit: f.Limit, Offset: f.Offset, Count: len(items)})
}

// Search godoc
// @Summary  Search diagrams by title or source
// @Tags     diagrams
// @Produce  json
// @Param    q              query string false "substring, case-insensitive"
// @Param    limit          query int    false "max results (default 10, max 100)"
// @Param    include_shared query bool   false "include public and shared diagrams"
// @Success  200 {object} types.APIResponse{data=[]models.DiagramSummary}
// @Security BearerAuth
// @Router   /diagrams/search [get]
func (h *DiagramsHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	shared, err := queryBool(r, "include_shared")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.svc.Search(r.Context(), principal(r), r.URL.Query().Get("q"), limit, shared != nil && *shared)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, items, &types.Meta{Limit: limit, Count: len(items)})
}

// Duplicate godoc
// @Summary  Copy a diagram into a new private record
// @Tags     diagrams
// @Accept   json
// @Produce  json
// @Param    id   path string                 true  "diagram id"
// @Param    body body types.DuplicateRequest false "new title"
// @Success  201 {object} types.APIResponse{data=models.Diagram}
// @Security BearerAuth
// @Router   /diagrams/{id}/duplicate [post]
func (h *DiagramsHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req types.DuplicateRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	d, err := h.svc.Duplicate(r.Context(), principal(r), id, req.Title)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusCreated, d, nil)
}

// Delete godoc
// @Summary  Delete a diagram and its grants
// @Tags     diagrams
// @Param    id path string true "diagram id"
// @Success  204
// @Security BearerAuth
// @Router   /diagrams/{id} [delete]
func (h *DiagramsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Export godoc
// @Summary  Download the diagram source or rendered image
// @Tags     diagrams
// @Produce  plain
// @Produce  image/svg+xml
// @Param    id     path  string true  "diagram id"
// @Param    format query string false "source|mermaid|image|svg" default(source)
// @Success  200 {string} string
// @Failure  400 {object} types.APIResponse
// @Security BearerAuth
// @Router   /diagrams/{id}/export [get]
func (h *DiagramsHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = services.FormatSource
	}
	out, err := h.svc.Export(r.Context(), principal(r), id, format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	etag := utils.ETag([]byte(out.Payload))
	w.Header().Set("ETag", etag)
	if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", out.MediaType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", contentDisposition(out.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.Payload))
}

// Stats godoc
// @Summary  Diagram counts by type and recent activity
// @Tags     diagrams
// @Produce  json
// @Success  200 {object} types.APIResponse{data=services.DiagramStats}
// @Security BearerAuth
// @Router   /diagrams/stats [get]
func (h *DiagramsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, st, nil)
}

func optionalUUID(s, field string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := parseUUID(s, field)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// contentDisposition quotes filename for an attachment header.
func contentDisposition(filename string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(filename)
	return `attachment; filename="` + escaped + `"`
}

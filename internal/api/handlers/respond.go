package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mermaid-studio/engine/internal/access"
	"github.com/mermaid-studio/engine/internal/api/middleware"
	"github.com/mermaid-studio/engine/internal/api/types"
	"github.com/mermaid-studio/engine/internal/api/validators"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, r *http.Request, status int, data any, meta *types.Meta) {
	if meta == nil {
		meta = &types.Meta{}
	}
	meta.RequestID = middleware.GetRequestID(r.Context())
	writeJSON(w, status, types.APIResponse{Success: true, Data: data, Meta: meta})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	return validators.Struct(dst)
}

func principal(r *http.Request) access.Principal {
	p, _ := access.FromContext(r.Context())
	return p
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return parseUUID(chi.URLParam(r, name), name)
}

func parseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, appErr.Validation("invalid "+field).WithMeta("field", field)
	}
	return id, nil
}

func parseUUIDs(in []string, field string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := parseUUID(s, field)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, appErr.Validation("invalid "+key).WithMeta("field", key)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, appErr.Validation("invalid "+key).WithMeta("field", key)
	}
	return &b, nil
}

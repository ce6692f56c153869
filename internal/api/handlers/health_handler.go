package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/mermaid-studio/engine/internal/api/types"
	appErr "github.com/mermaid-studio/engine/pkg/errors"
	"github.com/mermaid-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

type HealthHandler struct {
	probes  map[string]Probe
	timeout time.Duration
}

// NewHealthHandler runs every probe on readiness checks.
func NewHealthHandler(probes map[string]Probe) *HealthHandler {
	return &HealthHandler{probes: probes, timeout: 2 * time.Second}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]string{"status": "ok"}})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.probes))
	ready := true
	for name, probe := range h.probes {
		if err := probe(ctx); err != nil {
			logger.L().Warn("readiness probe failed", zap.String("probe", name), zap.Error(err))
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, types.APIResponse{
			Data:  map[string]any{"status": "unavailable", "checks": checks},
			Error: &types.APIError{Code: string(appErr.CodeUnavailable), Message: "dependencies unavailable"},
		})
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]any{"status": "ready", "checks": checks}})
}

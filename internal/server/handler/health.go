package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ChainPinger reports whether the chain endpoint is reachable.
type ChainPinger interface {
	HealthCheck(ctx context.Context) bool
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	chain  ChainPinger // optional
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. chain may be nil.
func NewHealthHandler(chain ChainPinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{chain: chain, logger: logger}
}

// HealthCheck reports server liveness and chain reachability.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.chain != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if h.chain.HealthCheck(ctx) {
			resp["chain"] = "ok"
		} else {
			resp["chain"] = "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

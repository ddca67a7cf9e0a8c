package api

import (
	"net/http"
	"time"

	"github.com/woongjin-cx/support-chat-proxy/internal/server"
)

// HealthHandler reports process health and which audit variant is active.
// It exposes no secrets: connection strings and keys stay out of the
// response.
type HealthHandler struct {
	auditMode string
	model     string
	started   time.Time
}

func NewHealthHandler(auditMode, model string) *HealthHandler {
	return &HealthHandler{auditMode: auditMode, model: model, started: time.Now()}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"auditMode":     h.auditMode,
		"model":         h.model,
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
		"timestamp":     time.Now().UTC(),
	})
}

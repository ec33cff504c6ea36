package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iudanet/medsync/pkg/api"
)

// Pinger проверяет доступность хранилища
type Pinger interface {
	Ping(ctx context.Context) error
}

// NodeInfo описывает узел в ответе health check
type NodeInfo struct {
	NodeID  string
	Role    string
	Version string
}

// HealthHandler обрабатывает health check запросы.
// Реплика использует его для обнаружения достижимого пира.
type HealthHandler struct {
	logger *slog.Logger
	db     Pinger
	info   NodeInfo
}

// NewHealthHandler создает новый handler для health check; db может быть nil
func NewHealthHandler(logger *slog.Logger, info NodeInfo, db Pinger) *HealthHandler {
	return &HealthHandler{
		logger: logger,
		info:   info,
		db:     db,
	}
}

// Health обрабатывает GET /api/v1/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.info.Version,
		NodeID:  h.info.NodeID,
		Role:    h.info.Role,
	}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("health check: storage unavailable", slog.Any("error", err))
			resp.Status = "unavailable"
			sendJSON(w, h.logger, resp, http.StatusServiceUnavailable)
			return
		}
	}

	sendJSON(w, h.logger, resp, http.StatusOK)
}

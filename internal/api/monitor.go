package api

import (
	"context"
	"net/http"

	"github.com/dennisdiepolder/monti/wfm/internal/monitor"
	"github.com/rs/zerolog"
)

// StatusMonitor detects and records availability transitions
type StatusMonitor interface {
	Sync(ctx context.Context) (*monitor.SyncResult, error)
	Check(ctx context.Context, agentID string, forceLog bool) (*monitor.CheckResult, error)
}

// MonitorHandler exposes the status diff and persistence endpoints
type MonitorHandler struct {
	monitor StatusMonitor
	logger  zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler
func NewMonitorHandler(m StatusMonitor, logger zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: m,
		logger:  logger.With().Str("component", "monitor_handler").Logger(),
	}
}

// Sync handles GET /api/freshchat-monitor
func (h *MonitorHandler) Sync(w http.ResponseWriter, r *http.Request) {
	result, err := h.monitor.Sync(r.Context())
	if err != nil {
		writeErr(w, h.logger, err, "sync")
		return
	}

	h.logger.Info().
		Int("monitored", result.TotalAgentsMonitored).
		Int("changes", result.TotalChanges).
		Int("logs_saved", result.LogsSaved).
		Msg("status sync completed")

	writeJSON(w, http.StatusOK, result)
}

type checkRequest struct {
	AgentID  string `json:"agent_id"`
	ForceLog bool   `json:"force_log"`
}

// Check handles POST /api/freshchat-monitor for a single agent
func (h *MonitorHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "check")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	result, err := h.monitor.Check(r.Context(), req.AgentID, req.ForceLog)
	if err != nil {
		writeErr(w, h.logger, err, "check")
		return
	}

	status := http.StatusOK
	if result.Logged() {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

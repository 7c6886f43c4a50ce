package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultLogLimit = 100

// AgentHistoryHandler serves recorded status transitions
type AgentHistoryHandler struct {
	store   storage.StatusLogStore
	archive storage.Archive
	logger  zerolog.Logger
}

// NewAgentHistoryHandler creates a new AgentHistoryHandler
func NewAgentHistoryHandler(store storage.StatusLogStore, archive storage.Archive, logger zerolog.Logger) *AgentHistoryHandler {
	if archive == nil {
		archive = storage.NoopArchive{}
	}
	return &AgentHistoryHandler{
		store:   store,
		archive: archive,
		logger:  logger.With().Str("component", "agent_history_handler").Logger(),
	}
}

// GetStatusLogs returns the newest status logs, optionally for one internal agent
// GET /api/status-logs?agent_id=&limit=
func (h *AgentHistoryHandler) GetStatusLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLogLimit)
	if err != nil {
		writeErr(w, h.logger, err, "list status logs")
		return
	}

	logs, err := h.store.ListStatusLogs(r.Context(), r.URL.Query().Get("agent_id"), limit)
	if err != nil {
		writeErr(w, h.logger, err, "list status logs")
		return
	}
	if logs == nil {
		logs = []types.StatusLog{}
	}
	writeData(w, http.StatusOK, logs)
}

// GetArchive returns archived status logs of an internal agent for one day
// GET /api/status-logs/archive/{agentId}?date=YYYY-MM-DD
func (h *AgentHistoryHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	if !h.archive.Enabled() {
		writeError(w, http.StatusNotFound, "status log archive is not configured")
		return
	}

	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	logs, err := h.archive.History(r.Context(), agentID, date)
	if err != nil {
		h.logger.Error().Err(err).
			Str("agent_id", agentID).
			Str("date", date).
			Msg("failed to read status log archive")
		writeError(w, http.StatusInternalServerError, "failed to retrieve archive")
		return
	}
	if logs == nil {
		logs = []types.StatusLog{}
	}
	writeData(w, http.StatusOK, logs)
}

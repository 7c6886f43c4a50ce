package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/poller"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// LiveSource exposes the poller's current view
type LiveSource interface {
	Snapshot() *poller.Snapshot
	Loading() bool
}

// BoardSource exposes the last presence board
type BoardSource interface {
	Board() *types.Board
}

// rosterResponse is the live agent roster
type rosterResponse struct {
	Data      []types.Presence `json:"data"`
	Loading   bool             `json:"loading"`
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
}

// RosterHandler serves the live roster of tracked directory agents
type RosterHandler struct {
	live    LiveSource
	boards  BoardSource
	reasons types.ReasonTable
	logger  zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(live LiveSource, boards BoardSource, reasons types.ReasonTable, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		live:    live,
		boards:  boards,
		reasons: reasons,
		logger:  logger.With().Str("component", "roster").Logger(),
	}
}

// Live handles GET /api/agents/live
func (h *RosterHandler) Live(w http.ResponseWriter, r *http.Request) {
	resp := rosterResponse{
		Data:    []types.Presence{},
		Loading: h.live.Loading(),
	}

	if snap := h.live.Snapshot(); snap != nil {
		for _, a := range snap.Agents {
			resp.Data = append(resp.Data, types.NewPresence(a, h.reasons))
		}
		fetched := snap.FetchedAt
		resp.FetchedAt = &fetched
	}

	writeJSON(w, http.StatusOK, resp)
}

// Board handles GET /api/agents/board
func (h *RosterHandler) Board(w http.ResponseWriter, r *http.Request) {
	board := h.boards.Board()
	if board == nil {
		writeError(w, http.StatusServiceUnavailable, "presence board not available yet")
		return
	}
	writeData(w, http.StatusOK, board)
}

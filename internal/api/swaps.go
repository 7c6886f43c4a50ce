package api

import (
	"context"
	"net/http"

	"github.com/dennisdiepolder/monti/wfm/internal/auth"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SwapStores is what the swap endpoints need from persistence
type SwapStores interface {
	storage.SwapStore
	GetSchedule(ctx context.Context, id string) (*types.Schedule, error)
}

// SwapsHandler serves shift swap requests
type SwapsHandler struct {
	store  SwapStores
	logger zerolog.Logger
}

// NewSwapsHandler creates a new SwapsHandler
func NewSwapsHandler(store SwapStores, logger zerolog.Logger) *SwapsHandler {
	return &SwapsHandler{
		store:  store,
		logger: logger.With().Str("component", "swaps").Logger(),
	}
}

type createSwapRequest struct {
	RequesterID        string `json:"requester_id"`
	TargetAgentID      string `json:"target_agent_id"`
	OriginalScheduleID string `json:"original_schedule_id"`
	TargetScheduleID   string `json:"target_schedule_id"`
	Reason             string `json:"reason"`
}

func (req createSwapRequest) validate() error {
	switch {
	case req.RequesterID == "":
		return invalid("requester_id is required")
	case req.TargetAgentID == "":
		return invalid("target_agent_id is required")
	case req.OriginalScheduleID == "":
		return invalid("original_schedule_id is required")
	case req.TargetScheduleID == "":
		return invalid("target_schedule_id is required")
	case req.RequesterID == req.TargetAgentID:
		return invalid("cannot swap a shift with yourself")
	case req.OriginalScheduleID == req.TargetScheduleID:
		return invalid("original and target schedule must differ")
	}
	return nil
}

// List handles GET /api/swaps?status=&agent_id=
func (h *SwapsHandler) List(w http.ResponseWriter, r *http.Request) {
	status := types.SwapStatus(r.URL.Query().Get("status"))
	if status != "" && !validSwapStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	swaps, err := h.store.ListSwaps(r.Context(), status, r.URL.Query().Get("agent_id"))
	if err != nil {
		writeErr(w, h.logger, err, "list swaps")
		return
	}
	if swaps == nil {
		swaps = []types.ShiftSwap{}
	}
	writeData(w, http.StatusOK, swaps)
}

// Create handles POST /api/swaps
func (h *SwapsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "create swap")
		return
	}
	if err := req.validate(); err != nil {
		writeErr(w, h.logger, err, "create swap")
		return
	}

	original, err := h.store.GetSchedule(r.Context(), req.OriginalScheduleID)
	if err != nil {
		writeErr(w, h.logger, err, "create swap")
		return
	}
	target, err := h.store.GetSchedule(r.Context(), req.TargetScheduleID)
	if err != nil {
		writeErr(w, h.logger, err, "create swap")
		return
	}
	if original.AgentID != req.RequesterID || target.AgentID != req.TargetAgentID {
		writeError(w, http.StatusBadRequest, "schedules do not belong to the given agents")
		return
	}
	if !original.IsActive || !target.IsActive {
		writeError(w, http.StatusBadRequest, "only active schedules can be swapped")
		return
	}

	sw := &types.ShiftSwap{
		RequesterID:        req.RequesterID,
		TargetAgentID:      req.TargetAgentID,
		OriginalScheduleID: req.OriginalScheduleID,
		TargetScheduleID:   req.TargetScheduleID,
		Reason:             req.Reason,
	}
	if err := h.store.CreateSwap(r.Context(), sw); err != nil {
		writeErr(w, h.logger, err, "create swap")
		return
	}

	h.logger.Info().
		Str("swap_id", sw.ID).
		Str("requester_id", sw.RequesterID).
		Str("target_agent_id", sw.TargetAgentID).
		Msg("swap requested")

	writeData(w, http.StatusCreated, sw)
}

// Get handles GET /api/swaps/{id}
func (h *SwapsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sw, err := h.store.GetSwap(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.logger, err, "get swap")
		return
	}
	writeData(w, http.StatusOK, sw)
}

type resolveSwapRequest struct {
	Status types.SwapStatus `json:"status"`
}

// Resolve handles PATCH /api/swaps/{id}. Approving or rejecting needs a
// supervisor; any authenticated user may cancel.
func (h *SwapsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveSwapRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "resolve swap")
		return
	}
	if req.Status == types.SwapPending || !validSwapStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "status must be approved, rejected or cancelled")
		return
	}

	claims, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if req.Status != types.SwapCancelled && !claims.SeesAllAgents() {
		writeError(w, http.StatusForbidden, "supervisor or admin role required")
		return
	}

	reviewer := claims.Email
	if reviewer == "" {
		reviewer = claims.Subject
	}

	sw, err := h.store.ResolveSwap(r.Context(), chi.URLParam(r, "id"), req.Status, reviewer)
	if err != nil {
		writeErr(w, h.logger, err, "resolve swap")
		return
	}

	h.logger.Info().
		Str("swap_id", sw.ID).
		Str("status", string(sw.Status)).
		Str("reviewer", reviewer).
		Msg("swap resolved")

	writeData(w, http.StatusOK, sw)
}

func validSwapStatus(s types.SwapStatus) bool {
	switch s {
	case types.SwapPending, types.SwapApproved, types.SwapRejected, types.SwapCancelled:
		return true
	}
	return false
}

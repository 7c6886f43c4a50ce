package api

import (
	"net/http"
	"strings"

	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultLedgerLimit = 50

// GamificationHandler serves points, tasks and the marketplace
type GamificationHandler struct {
	store  storage.GamificationStore
	logger zerolog.Logger
}

// NewGamificationHandler creates a new GamificationHandler
func NewGamificationHandler(store storage.GamificationStore, logger zerolog.Logger) *GamificationHandler {
	return &GamificationHandler{
		store:  store,
		logger: logger.With().Str("component", "gamification").Logger(),
	}
}

// GetPoints handles GET /api/points/{agentId}?limit=
func (h *GamificationHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultLedgerLimit)
	if err != nil {
		writeErr(w, h.logger, err, "points balance")
		return
	}

	bal, err := h.store.PointsBalance(r.Context(), chi.URLParam(r, "agentId"), limit)
	if err != nil {
		writeErr(w, h.logger, err, "points balance")
		return
	}
	writeData(w, http.StatusOK, bal)
}

type awardRequest struct {
	AgentID string `json:"agent_id"`
	Amount  int    `json:"amount"`
	Reason  string `json:"reason"`
}

// Award handles POST /api/points. Negative amounts deduct points.
func (h *GamificationHandler) Award(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "award points")
		return
	}
	switch {
	case req.AgentID == "":
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	case req.Amount == 0:
		writeError(w, http.StatusBadRequest, "amount must not be zero")
		return
	case strings.TrimSpace(req.Reason) == "":
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	entry := &types.PointsEntry{AgentID: req.AgentID, Amount: req.Amount, Reason: req.Reason}
	if err := h.store.AwardPoints(r.Context(), entry); err != nil {
		writeErr(w, h.logger, err, "award points")
		return
	}

	h.logger.Info().Str("agent_id", entry.AgentID).Int("amount", entry.Amount).Msg("points awarded")
	writeData(w, http.StatusCreated, entry)
}

// ListTasks handles GET /api/tasks?all=true
func (h *GamificationHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListTasks(r.Context(), !queryBool(r, "all"))
	if err != nil {
		writeErr(w, h.logger, err, "list tasks")
		return
	}
	writeData(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
	DueDate     string `json:"due_date"`
}

// CreateTask handles POST /api/tasks
func (h *GamificationHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "create task")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Points <= 0 {
		writeError(w, http.StatusBadRequest, "points must be positive")
		return
	}

	task := &types.Task{Title: strings.TrimSpace(req.Title), Description: req.Description, Points: req.Points}
	if req.DueDate != "" {
		due, err := parseTime("due_date", req.DueDate)
		if err != nil {
			writeErr(w, h.logger, err, "create task")
			return
		}
		task.DueDate = &due
	}

	if err := h.store.CreateTask(r.Context(), task); err != nil {
		writeErr(w, h.logger, err, "create task")
		return
	}
	writeData(w, http.StatusCreated, task)
}

type agentRequest struct {
	AgentID string `json:"agent_id"`
}

// CompleteTask handles POST /api/tasks/{id}/complete
func (h *GamificationHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "complete task")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	completion, err := h.store.CompleteTask(r.Context(), chi.URLParam(r, "id"), req.AgentID)
	if err != nil {
		writeErr(w, h.logger, err, "complete task")
		return
	}

	h.logger.Info().
		Str("task_id", completion.TaskID).
		Str("agent_id", completion.AgentID).
		Int("points", completion.Points).
		Msg("task completed")

	writeData(w, http.StatusCreated, completion)
}

// ListItems handles GET /api/marketplace/items?all=true
func (h *GamificationHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListItems(r.Context(), !queryBool(r, "all"))
	if err != nil {
		writeErr(w, h.logger, err, "list items")
		return
	}
	writeData(w, http.StatusOK, items)
}

type createItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	Stock       int    `json:"stock"`
}

// CreateItem handles POST /api/marketplace/items
func (h *GamificationHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "create item")
		return
	}
	switch {
	case strings.TrimSpace(req.Name) == "":
		writeError(w, http.StatusBadRequest, "name is required")
		return
	case req.Cost <= 0:
		writeError(w, http.StatusBadRequest, "cost must be positive")
		return
	case req.Stock < 0:
		writeError(w, http.StatusBadRequest, "stock must not be negative")
		return
	}

	item := &types.MarketplaceItem{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Cost:        req.Cost,
		Stock:       req.Stock,
	}
	if err := h.store.CreateItem(r.Context(), item); err != nil {
		writeErr(w, h.logger, err, "create item")
		return
	}
	writeData(w, http.StatusCreated, item)
}

// Redeem handles POST /api/marketplace/items/{id}/redeem
func (h *GamificationHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "redeem item")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}

	redemption, err := h.store.RedeemItem(r.Context(), chi.URLParam(r, "id"), req.AgentID)
	if err != nil {
		writeErr(w, h.logger, err, "redeem item")
		return
	}

	h.logger.Info().
		Str("item_id", redemption.ItemID).
		Str("agent_id", redemption.AgentID).
		Int("cost", redemption.Cost).
		Msg("item redeemed")

	writeData(w, http.StatusCreated, redemption)
}

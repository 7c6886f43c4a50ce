package api

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentsHandler serves CRUD over internal agent records
type AgentsHandler struct {
	store  storage.AgentStore
	logger zerolog.Logger
}

// NewAgentsHandler creates a new AgentsHandler
func NewAgentsHandler(store storage.AgentStore, logger zerolog.Logger) *AgentsHandler {
	return &AgentsHandler{
		store:  store,
		logger: logger.With().Str("component", "agents").Logger(),
	}
}

type createAgentRequest struct {
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	FreshchatID string          `json:"freshchat_id"`
	Role        types.Role      `json:"role"`
	ShiftType   types.ShiftType `json:"shift_type"`
	Team        string          `json:"team"`
	IsActive    *bool           `json:"is_active"`
}

func (req *createAgentRequest) agent() (*types.InternalAgent, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		return nil, invalid("name is required")
	}
	if req.Email == "" {
		return nil, invalid("email is required")
	}
	if err := validEmail(req.Email); err != nil {
		return nil, err
	}
	if req.Role == "" {
		req.Role = types.RoleAgent
	}
	if !types.ValidRole(req.Role) {
		return nil, invalid("invalid role %q", req.Role)
	}
	if req.ShiftType != "" && !types.ValidShiftType(req.ShiftType) {
		return nil, invalid("invalid shift_type %q", req.ShiftType)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &types.InternalAgent{
		Name:        req.Name,
		Email:       req.Email,
		FreshchatID: strings.TrimSpace(req.FreshchatID),
		Role:        req.Role,
		ShiftType:   req.ShiftType,
		Team:        req.Team,
		IsActive:    active,
	}, nil
}

func validEmail(s string) error {
	if _, err := mail.ParseAddress(s); err != nil {
		return invalid("invalid email %q", s)
	}
	return nil
}

func validatePatch(p types.AgentPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name must not be empty")
	}
	if p.Email != nil {
		if err := validEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.Role != nil && !types.ValidRole(*p.Role) {
		return invalid("invalid role %q", *p.Role)
	}
	if p.ShiftType != nil && *p.ShiftType != "" && !types.ValidShiftType(*p.ShiftType) {
		return invalid("invalid shift_type %q", *p.ShiftType)
	}
	return nil
}

// List handles GET /api/agents?role=&active=
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := types.AgentFilter{
		Role:       types.Role(r.URL.Query().Get("role")),
		ActiveOnly: queryBool(r, "active"),
	}
	if filter.Role != "" && !types.ValidRole(filter.Role) {
		writeError(w, http.StatusBadRequest, "invalid role filter")
		return
	}

	agents, err := h.store.ListAgents(r.Context(), filter)
	if err != nil {
		writeErr(w, h.logger, err, "list agents")
		return
	}
	if agents == nil {
		agents = []types.InternalAgent{}
	}
	writeData(w, http.StatusOK, agents)
}

// Create handles POST /api/agents
func (h *AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, h.logger, err, "create agent")
		return
	}
	agent, err := req.agent()
	if err != nil {
		writeErr(w, h.logger, err, "create agent")
		return
	}

	if err := h.store.CreateAgent(r.Context(), agent); err != nil {
		writeErr(w, h.logger, err, "create agent")
		return
	}

	h.logger.Info().Str("agent_id", agent.ID).Str("email", agent.Email).Msg("agent created")
	writeData(w, http.StatusCreated, agent)
}

// Get handles GET /api/agents/{id}
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, err := h.store.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.logger, err, "get agent")
		return
	}
	writeData(w, http.StatusOK, agent)
}

// Update handles PATCH /api/agents/{id}
func (h *AgentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch types.AgentPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeErr(w, h.logger, err, "update agent")
		return
	}
	if err := validatePatch(patch); err != nil {
		writeErr(w, h.logger, err, "update agent")
		return
	}

	agent, err := h.store.UpdateAgent(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeErr(w, h.logger, err, "update agent")
		return
	}

	h.logger.Info().Str("agent_id", agent.ID).Msg("agent updated")
	writeData(w, http.StatusOK, agent)
}

// Delete handles DELETE /api/agents/{id}
func (h *AgentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteAgent(r.Context(), id); err != nil {
		writeErr(w, h.logger, err, "delete agent")
		return
	}

	h.logger.Info().Str("agent_id", id).Msg("agent deleted")
	writeData(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
}

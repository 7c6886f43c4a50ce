package api

import (
	"context"
	"net/http"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// Directory is the part of the agent directory client the API relies on
type Directory interface {
	FetchAgentsRaw(ctx context.Context) ([]byte, error)
	ListAgents(ctx context.Context) ([]types.Agent, error)
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
}

// ProxyHandler forwards agent list requests to the directory
type ProxyHandler struct {
	directory Directory
	logger    zerolog.Logger
}

// NewProxyHandler creates a new ProxyHandler
func NewProxyHandler(dir Directory, logger zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{
		directory: dir,
		logger:    logger.With().Str("component", "proxy").Logger(),
	}
}

// GetAgents handles GET /api/proxy and returns the directory body verbatim
func (h *ProxyHandler) GetAgents(w http.ResponseWriter, r *http.Request) {
	body, err := h.directory.FetchAgentsRaw(r.Context())
	if err != nil {
		// Every failure of the proxy is a 500, including an unknown agent path
		_, msg := classify(err)
		h.logger.Error().Err(err).Msg("directory proxy failed")
		writeError(w, http.StatusInternalServerError, msg)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

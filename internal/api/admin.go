package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/rs/zerolog"
)

// Refresher re-polls the agent directory
type Refresher interface {
	Refresh(ctx context.Context, force bool) error
}

// AdminHandler resets local state and proxies the development directory's control API
type AdminHandler struct {
	simURL    string
	statuses  cache.StatusStore
	listCache *cache.AgentListCache
	poller    Refresher
	archive   storage.Archive
	logger    zerolog.Logger
	client    *http.Client
}

// NewAdminHandler creates a new AdminHandler. simURL may be empty.
func NewAdminHandler(simURL string, statuses cache.StatusStore, listCache *cache.AgentListCache, poller Refresher, archive storage.Archive, logger zerolog.Logger) *AdminHandler {
	if archive == nil {
		archive = storage.NoopArchive{}
	}
	return &AdminHandler{
		simURL:    simURL,
		statuses:  statuses,
		listCache: listCache,
		poller:    poller,
		archive:   archive,
		logger:    logger.With().Str("component", "admin").Logger(),
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// proxyToSim forwards a request to the directory simulator and copies the response back
func (h *AdminHandler) proxyToSim(w http.ResponseWriter, r *http.Request, method, path string) {
	if h.simURL == "" {
		writeError(w, http.StatusNotFound, "directory simulator not configured")
		return
	}
	url := h.simURL + path

	var body io.Reader
	if r.Body != nil && method == http.MethodPost {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), method, url, body)
	if err != nil {
		h.logger.Error().Err(err).Str("path", path).Msg("failed to create proxy request")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error().Err(err).Str("url", url).Msg("failed to reach directory simulator")
		writeError(w, http.StatusBadGateway, "directory simulator unavailable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// GetSimStatus proxies GET /status to the directory simulator
func (h *AdminHandler) GetSimStatus(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodGet, "/status")
}

// StartSim proxies POST /start to the directory simulator
func (h *AdminHandler) StartSim(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodPost, "/start")
}

// StopSim proxies POST /stop to the directory simulator
func (h *AdminHandler) StopSim(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodPost, "/stop")
}

// ResetStatusMemory forgets every last-known status. The next sync logs all
// tracked agents again as changes from UNKNOWN.
func (h *AdminHandler) ResetStatusMemory(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.statuses.Reset(r.Context())
	if err != nil {
		writeErr(w, h.logger, err, "reset status memory")
		return
	}

	h.logger.Info().Int("agents", cleared).Msg("status memory reset")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "status memory reset",
		"agents_cleared": cleared,
	})
}

// InvalidatePollCache drops the cached agent list and polls the directory again
func (h *AdminHandler) InvalidatePollCache(w http.ResponseWriter, r *http.Request) {
	h.listCache.Invalidate()

	resp := map[string]interface{}{"message": "poll cache invalidated", "refreshed": true}
	if err := h.poller.Refresh(r.Context(), false); err != nil {
		// The cache stays empty so the next tick goes upstream anyway
		h.logger.Warn().Err(err).Msg("refresh after invalidation failed")
		resp["refreshed"] = false
		resp["error"] = err.Error()
	}

	h.logger.Info().Msg("poll cache invalidated")
	writeJSON(w, http.StatusOK, resp)
}

// TruncateArchive deletes every archived status log
func (h *AdminHandler) TruncateArchive(w http.ResponseWriter, r *http.Request) {
	if !h.archive.Enabled() {
		writeError(w, http.StatusNotFound, "status log archive is not configured")
		return
	}
	if err := h.archive.TruncateAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate status log archive")
		writeError(w, http.StatusInternalServerError, "failed to truncate: "+err.Error())
		return
	}

	h.logger.Info().Msg("status log archive truncated")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "status log archive truncated",
	})
}

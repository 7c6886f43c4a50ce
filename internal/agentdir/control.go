package agentdir

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// RunStatus is the control API view of the simulation
type RunStatus struct {
	Running      bool       `json:"running"`
	TotalAgents  int        `json:"total_agents"`
	ActiveAgents int        `json:"active_agents"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
}

// ControlAPI starts and stops the presence simulation over HTTP
type ControlAPI struct {
	status    RunStatus
	mu        sync.RWMutex
	logger    zerolog.Logger
	startFunc func(int) error
	stopFunc  func() error
	statsFunc func() map[string]interface{}
}

// NewControlAPI creates a new control API for a directory of totalAgents
func NewControlAPI(totalAgents int, logger zerolog.Logger) *ControlAPI {
	return &ControlAPI{
		status: RunStatus{TotalAgents: totalAgents},
		logger: logger.With().Str("component", "control").Logger(),
	}
}

// SetHandlers sets the control functions
func (api *ControlAPI) SetHandlers(start func(int) error, stop func() error, stats func() map[string]interface{}) {
	api.startFunc = start
	api.stopFunc = stop
	api.statsFunc = stats
}

// MarkRunning records a simulation started outside the API, e.g. on boot
func (api *ControlAPI) MarkRunning(activeAgents int) {
	now := time.Now()
	api.mu.Lock()
	api.status.Running = true
	api.status.ActiveAgents = activeAgents
	api.status.StartedAt = &now
	api.mu.Unlock()
}

// SetupRoutes configures HTTP routes
func (api *ControlAPI) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/status", api.statusHandler).Methods("GET")
	router.HandleFunc("/start", api.startHandler).Methods("POST")
	router.HandleFunc("/stop", api.stopHandler).Methods("POST")
	router.HandleFunc("/stats", api.statsHandler).Methods("GET")
}

func (api *ControlAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (api *ControlAPI) statusHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	status := api.status
	api.mu.RUnlock()

	writeJSON(w, http.StatusOK, status)
}

// startHandler starts the simulation. An out-of-range or missing activeAgents
// defaults to a tenth of the directory.
func (api *ControlAPI) startHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveAgents int `json:"activeAgents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	api.mu.Lock()
	if api.status.Running {
		api.mu.Unlock()
		writeError(w, http.StatusConflict, "simulation already running")
		return
	}
	total := api.status.TotalAgents
	api.mu.Unlock()

	if req.ActiveAgents <= 0 || req.ActiveAgents > total {
		req.ActiveAgents = max(total/10, 1)
	}

	if err := api.startFunc(req.ActiveAgents); err != nil {
		api.logger.Error().Err(err).Msg("failed to start simulation")
		writeError(w, http.StatusInternalServerError, "failed to start simulation")
		return
	}
	api.MarkRunning(req.ActiveAgents)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "simulation started",
		"active_agents": req.ActiveAgents,
	})
}

func (api *ControlAPI) stopHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	running := api.status.Running
	api.mu.RUnlock()
	if !running {
		writeError(w, http.StatusConflict, "simulation not running")
		return
	}

	if err := api.stopFunc(); err != nil {
		api.logger.Error().Err(err).Msg("failed to stop simulation")
		writeError(w, http.StatusInternalServerError, "failed to stop simulation")
		return
	}

	api.mu.Lock()
	api.status.Running = false
	api.status.ActiveAgents = 0
	api.status.StartedAt = nil
	api.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "simulation stopped"})
}

func (api *ControlAPI) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.statsFunc())
}

// Server builds the HTTP server for both the directory and the control API
func Server(addr string, dir *Directory, api *ControlAPI) *http.Server {
	router := mux.NewRouter()
	dir.SetupRoutes(router)
	api.SetupRoutes(router)
	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs srv until ctx is cancelled
func Serve(ctx context.Context, srv *http.Server, logger zerolog.Logger) error {
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down agent directory")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("agent directory started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

package agentdir

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Directory holds the fake agent records and serves them over REST
type Directory struct {
	mu     sync.RWMutex
	agents []types.Agent
	index  map[string]int
	token  string
	logger zerolog.Logger
}

// NewDirectory creates a directory serving agents. Requests must carry token
// as a bearer credential.
func NewDirectory(agents []types.Agent, token string, logger zerolog.Logger) *Directory {
	d := &Directory{
		agents: agents,
		index:  make(map[string]int, len(agents)),
		token:  token,
		logger: logger.With().Str("component", "agentdir").Logger(),
	}
	for i, a := range agents {
		d.index[a.ID] = i
	}
	return d
}

// Len returns the number of agents
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.agents)
}

// Snapshot returns a copy of every agent
func (d *Directory) Snapshot() []types.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Agent, len(d.agents))
	for i, a := range d.agents {
		out[i] = copyAgent(a)
	}
	return out
}

// Get returns a copy of one agent
func (d *Directory) Get(id string) (types.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.index[id]
	if !ok {
		return types.Agent{}, false
	}
	return copyAgent(d.agents[i]), true
}

// update applies fn to the agent at position i under the write lock
func (d *Directory) update(i int, fn func(*types.Agent)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= 0 && i < len(d.agents) {
		fn(&d.agents[i])
	}
}

// SetupRoutes registers the directory endpoints under /v2
func (d *Directory) SetupRoutes(router *mux.Router) {
	v2 := router.PathPrefix("/v2").Subrouter()
	v2.Use(d.requireToken)
	v2.HandleFunc("/agents", d.listHandler).Methods("GET")
	v2.HandleFunc("/agents/{id}", d.getHandler).Methods("GET")
}

func (d *Directory) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" || token != d.token {
			writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type pagination struct {
	TotalItems   int `json:"total_items"`
	TotalPages   int `json:"total_pages"`
	CurrentPage  int `json:"current_page"`
	ItemsPerPage int `json:"items_per_page"`
}

type listResponse struct {
	Agents     []types.Agent `json:"agents"`
	Pagination pagination    `json:"pagination"`
}

// listHandler serves GET /v2/agents?items_per_page=&page=
func (d *Directory) listHandler(w http.ResponseWriter, r *http.Request) {
	perPage := queryInt(r, "items_per_page", defaultPageSize)
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	d.mu.RLock()
	total := len(d.agents)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := min(start+perPage, total)
	agents := make([]types.Agent, 0, end-start)
	for _, a := range d.agents[start:end] {
		agents = append(agents, copyAgent(a))
	}
	d.mu.RUnlock()

	writeJSON(w, http.StatusOK, listResponse{
		Agents: agents,
		Pagination: pagination{
			TotalItems:   total,
			TotalPages:   (total + perPage - 1) / perPage,
			CurrentPage:  page,
			ItemsPerPage: perPage,
		},
	})
}

// getHandler serves GET /v2/agents/{id}
func (d *Directory) getHandler(w http.ResponseWriter, r *http.Request) {
	agent, ok := d.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func copyAgent(a types.Agent) types.Agent {
	if a.AgentStatus != nil {
		status := *a.AgentStatus
		a.AgentStatus = &status
	}
	if a.Avatar != nil {
		avatar := *a.Avatar
		a.Avatar = &avatar
	}
	return a
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

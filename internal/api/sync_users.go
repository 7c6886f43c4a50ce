package api

import (
	"context"
	"net/http"

	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/metrics"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// AgentUpserter writes directory agents into the internal agent table
type AgentUpserter interface {
	UpsertAgentByFreshchatID(ctx context.Context, a *types.InternalAgent) (bool, error)
}

// SyncFailure describes one directory agent that could not be synced
type SyncFailure struct {
	FreshchatID string `json:"freshchat_id"`
	Error       string `json:"error"`
}

// SyncReport is the outcome of a user sync
type SyncReport struct {
	Total    int           `json:"total"`
	Created  int           `json:"created"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Failures []SyncFailure `json:"failures"`
}

// UserSyncHandler copies allow-listed directory agents into internal records
type UserSyncHandler struct {
	directory Directory
	store     AgentUpserter
	allow     *config.AllowList
	logger    zerolog.Logger
}

// NewUserSyncHandler creates a new UserSyncHandler
func NewUserSyncHandler(dir Directory, store AgentUpserter, allow *config.AllowList, logger zerolog.Logger) *UserSyncHandler {
	return &UserSyncHandler{
		directory: dir,
		store:     store,
		allow:     allow,
		logger:    logger.With().Str("component", "user_sync").Logger(),
	}
}

// Sync handles POST /api/sync-users-xano. One failing agent does not stop
// the others; failures are reported per agent.
func (h *UserSyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	agents, err := h.directory.ListAgents(r.Context())
	if err != nil {
		writeErr(w, h.logger, err, "sync users")
		return
	}

	allowed := h.allow.Filter(agents)
	report := SyncReport{Total: len(allowed), Failures: []SyncFailure{}}

	for _, a := range allowed {
		if a.Email == "" {
			report.Skipped++
			metrics.SyncedUsers.WithLabelValues("skipped").Inc()
			h.logger.Warn().Str("freshchat_id", a.ID).Msg("directory agent has no email, skipping")
			continue
		}

		record := &types.InternalAgent{
			Name:        a.FullName(),
			Email:       a.Email,
			FreshchatID: a.ID,
			Role:        types.RoleAgent,
			IsActive:    true,
		}
		created, err := h.store.UpsertAgentByFreshchatID(r.Context(), record)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, SyncFailure{FreshchatID: a.ID, Error: err.Error()})
			metrics.SyncedUsers.WithLabelValues("failed").Inc()
			h.logger.Warn().Err(err).Str("freshchat_id", a.ID).Msg("failed to sync directory agent")
			continue
		}

		if created {
			report.Created++
			metrics.SyncedUsers.WithLabelValues("created").Inc()
		} else {
			report.Updated++
			metrics.SyncedUsers.WithLabelValues("updated").Inc()
		}
	}

	h.logger.Info().
		Int("total", report.Total).
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("failed", report.Failed).
		Msg("user sync completed")

	writeData(w, http.StatusOK, report)
}

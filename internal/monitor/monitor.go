// Package monitor diffs directory presence against the last known status of
// every tracked agent and persists each transition as a status log.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/metrics"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const archiveTimeout = 10 * time.Second

// AgentSource reads presence from the agent directory
type AgentSource interface {
	ListAgents(ctx context.Context) ([]types.Agent, error)
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
}

// LogStore resolves internal agents and persists status logs
type LogStore interface {
	GetAgentByFreshchatID(ctx context.Context, freshchatID string) (*types.InternalAgent, error)
	InsertStatusLogs(ctx context.Context, logs []types.StatusLog) error
}

// SyncResult is the outcome of one sync over all tracked agents
type SyncResult struct {
	Message              string               `json:"message"`
	TotalAgentsMonitored int                  `json:"total_agents_monitored"`
	TotalChanges         int                  `json:"total_changes"`
	Changes              []types.StatusChange `json:"changes"`
	LogsSaved            int                  `json:"logs_saved"`
}

// CheckResult is the outcome of checking a single agent
type CheckResult struct {
	Message        string             `json:"message"`
	Changed        bool               `json:"changed"`
	AgentID        string             `json:"agent_id"`
	CurrentStatus  types.Availability `json:"current_status"`
	PreviousStatus types.Availability `json:"previous_status,omitempty"`
	Log            *types.StatusLog   `json:"log,omitempty"`
}

// Logged reports whether a status log was written
func (r *CheckResult) Logged() bool {
	return r.Log != nil
}

// Monitor detects and records status transitions
type Monitor struct {
	source   AgentSource
	store    LogStore
	statuses cache.StatusStore
	archive  storage.Archive
	allow    *config.AllowList
	logger   zerolog.Logger
	now      func() time.Time

	// mu serializes Sync and Check so two callers never diff against the
	// same previous status.
	mu        sync.Mutex
	archiveWG sync.WaitGroup
}

// New creates a monitor. archive may be nil.
func New(source AgentSource, store LogStore, statuses cache.StatusStore, archive storage.Archive, allow *config.AllowList, logger zerolog.Logger) *Monitor {
	if archive == nil {
		archive = storage.NoopArchive{}
	}
	return &Monitor{
		source:   source,
		store:    store,
		statuses: statuses,
		archive:  archive,
		allow:    allow,
		logger:   logger.With().Str("component", "monitor").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sync fetches all agents, keeps the allow-listed ids and records every
// availability transition. New statuses are committed to the status store
// only after their logs are durably stored, so a failed insert is detected
// again on the next sync.
func (m *Monitor) Sync(ctx context.Context) (*SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agents, err := m.source.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	tracked := m.allow.FilterIDs(agents)
	now := m.now()

	changes := make([]types.StatusChange, 0)
	deferred := make(map[string]cache.StatusEntry)
	var staged []types.StatusLog

	for _, agent := range tracked {
		prev, changed, err := m.diff(ctx, agent)
		if err != nil {
			return nil, err
		}
		if !changed {
			continue
		}

		change := m.newChange(agent, prev, now)
		changes = append(changes, change)
		entry := cache.StatusEntry{Status: agent.AvailabilityStatus, ChangedAt: now}

		internal, err := m.store.GetAgentByFreshchatID(ctx, agent.ID)
		if errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn().
				Str("agent_id", agent.ID).
				Str("agent", change.AgentName).
				Msg("no internal agent for directory id, status change not persisted")
			if err := m.statuses.Set(ctx, agent.ID, entry); err != nil {
				return nil, fmt.Errorf("failed to record status: %w", err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve internal agent %s: %w", agent.ID, err)
		}

		staged = append(staged, m.newLog(internal.ID, change))
		deferred[agent.ID] = entry
	}

	metrics.StatusChangesDetected.Add(float64(len(changes)))

	if len(staged) > 0 {
		if err := m.store.InsertStatusLogs(ctx, staged); err != nil {
			metrics.StatusLogErrors.Inc()
			m.logger.Error().Err(err).Int("logs", len(staged)).Msg("failed to save status logs")
			return nil, fmt.Errorf("failed to save status logs: %w", err)
		}
		metrics.StatusLogsSaved.Add(float64(len(staged)))
	}

	for id, entry := range deferred {
		if err := m.statuses.Set(ctx, id, entry); err != nil {
			return nil, fmt.Errorf("failed to record status: %w", err)
		}
	}

	m.mirror(staged)

	m.logger.Info().
		Int("monitored", len(tracked)).
		Int("changes", len(changes)).
		Int("logs_saved", len(staged)).
		Msg("status sync completed")

	return &SyncResult{
		Message:              "status sync completed",
		TotalAgentsMonitored: len(tracked),
		TotalChanges:         len(changes),
		Changes:              changes,
		LogsSaved:            len(staged),
	}, nil
}

// Check looks at one agent. An unchanged status is only logged when forceLog
// is set.
func (m *Monitor) Check(ctx context.Context, agentID string, forceLog bool) (*CheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, err := m.source.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	prev, changed, err := m.diff(ctx, *agent)
	if err != nil {
		return nil, err
	}

	result := &CheckResult{
		Changed:        changed,
		AgentID:        agent.ID,
		CurrentStatus:  agent.AvailabilityStatus,
		PreviousStatus: prev,
	}
	if !changed && !forceLog {
		result.Message = "no status change"
		return result, nil
	}

	internal, err := m.store.GetAgentByFreshchatID(ctx, agent.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("agent %s is not registered: %w", agent.ID, storage.ErrNotFound)
		}
		return nil, err
	}

	now := m.now()
	log := m.newLog(internal.ID, m.newChange(*agent, prev, now))
	if !changed {
		log.Details = "forced: " + log.Details
	}
	if err := m.store.InsertStatusLogs(ctx, []types.StatusLog{log}); err != nil {
		metrics.StatusLogErrors.Inc()
		return nil, fmt.Errorf("failed to save status log: %w", err)
	}
	metrics.StatusLogsSaved.Inc()

	if changed {
		metrics.StatusChangesDetected.Inc()
		entry := cache.StatusEntry{Status: agent.AvailabilityStatus, ChangedAt: now}
		if err := m.statuses.Set(ctx, agent.ID, entry); err != nil {
			return nil, fmt.Errorf("failed to record status: %w", err)
		}
	}

	m.mirror([]types.StatusLog{log})

	result.Message = "status logged"
	result.Log = &log
	return result, nil
}

// Run syncs on every tick until ctx is cancelled
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info().Dur("interval", interval).Msg("background sync started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("background sync stopped")
			return

		case <-ticker.C:
			res, err := m.Sync(ctx)
			if err != nil {
				m.logger.Error().Err(err).Msg("background sync failed")
				continue
			}
			m.logger.Debug().
				Int("changes", res.TotalChanges).
				Int("logs_saved", res.LogsSaved).
				Msg("background sync completed")
		}
	}
}

// Wait blocks until pending archive writes have finished
func (m *Monitor) Wait() {
	m.archiveWG.Wait()
}

// diff returns the previous status, UNKNOWN if the agent was never seen
func (m *Monitor) diff(ctx context.Context, agent types.Agent) (types.Availability, bool, error) {
	entry, seen, err := m.statuses.Get(ctx, agent.ID)
	if err != nil {
		return "", false, fmt.Errorf("failed to read last status of %s: %w", agent.ID, err)
	}
	if !seen {
		return types.AvailabilityUnknown, true, nil
	}
	return entry.Status, entry.Status != agent.AvailabilityStatus, nil
}

func (m *Monitor) newChange(agent types.Agent, prev types.Availability, at time.Time) types.StatusChange {
	change := types.StatusChange{
		AgentID:        agent.ID,
		AgentName:      agent.FullName(),
		NewStatus:      agent.AvailabilityStatus,
		PreviousStatus: prev,
		Timestamp:      at,
	}
	if p := types.NewPresence(agent, m.allow.Reasons); p.Reason != types.ReasonNone {
		change.Reason = p.ReasonLabel
	}
	return change
}

func (m *Monitor) newLog(internalID string, change types.StatusChange) types.StatusLog {
	details := fmt.Sprintf("%s: %s -> %s", change.AgentName, change.PreviousStatus, change.NewStatus)
	if change.Reason != "" {
		details += " (" + change.Reason + ")"
	}
	return types.StatusLog{
		ID:              ulid.Make().String(),
		AgentID:         internalID,
		ExternalAgentID: change.AgentID,
		Status:          change.NewStatus,
		PreviousStatus:  change.PreviousStatus,
		Details:         details,
		DateKey:         change.Timestamp.Format("2006-01-02"),
		CreatedAt:       change.Timestamp,
	}
}

// mirror copies saved logs to the archive in the background
func (m *Monitor) mirror(logs []types.StatusLog) {
	if len(logs) == 0 || !m.archive.Enabled() {
		return
	}

	m.archiveWG.Add(1)
	go func() {
		defer m.archiveWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := m.archive.Archive(ctx, logs); err != nil {
			m.logger.Error().Err(err).Int("logs", len(logs)).Msg("failed to archive status logs")
		}
	}()
}

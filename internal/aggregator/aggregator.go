package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/alerts"
	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/metrics"
	"github.com/dennisdiepolder/monti/wfm/internal/poller"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster fans a message out to dashboard clients
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

type reasonMark struct {
	reason types.Reason
	since  time.Time
}

// Aggregator turns poller snapshots into presence boards
type Aggregator struct {
	table    types.ReasonTable
	statuses cache.StatusStore
	hub      Broadcaster
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	snapshot *poller.Snapshot
	marks    map[string]reasonMark
	board    *types.Board
}

// NewAggregator creates a new aggregator. interval controls how often the
// current board is re-evaluated so that duration alerts fire between polls.
func NewAggregator(table types.ReasonTable, statuses cache.StatusStore, hub Broadcaster, interval time.Duration, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		table:    table,
		statuses: statuses,
		hub:      hub,
		interval: interval,
		logger:   logger.With().Str("component", "aggregator").Logger(),
		now:      time.Now,
		marks:    make(map[string]reasonMark),
	}
}

// OnSnapshot is registered with the poller and broadcasts a fresh board
func (a *Aggregator) OnSnapshot(snap *poller.Snapshot) {
	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()

	a.publish(context.Background())
}

// Start re-broadcasts the current board on every tick
func (a *Aggregator) Start(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.logger.Info().Dur("interval", a.interval).Msg("aggregator started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info().Msg("aggregator stopped")
			return

		case <-ticker.C:
			a.publish(ctx)
		}
	}
}

// Board returns the last built board, nil before the first snapshot
func (a *Aggregator) Board() *types.Board {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.board
}

func (a *Aggregator) publish(ctx context.Context) {
	board := a.build(ctx)
	if board == nil {
		return
	}

	data, err := json.Marshal(board)
	if err != nil {
		a.logger.Error().Err(err).Msg("failed to marshal board")
		return
	}

	a.hub.Broadcast(data)
	metrics.BoardsBroadcast.Inc()

	a.logger.Debug().
		Int("total_agents", board.TotalAgents).
		Int("online_agents", board.OnlineAgents).
		Int("clients", a.hub.ClientCount()).
		Msg("board broadcasted")
}

// build derives a board from the latest snapshot
func (a *Aggregator) build(ctx context.Context) *types.Board {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.snapshot == nil {
		return nil
	}
	now := a.now()

	known, err := a.statuses.Snapshot(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to read status store, using first observation times")
		known = nil
	}

	board := &types.Board{
		Type:                  "presence_board",
		Timestamp:             now,
		TotalAgents:           len(a.snapshot.Agents),
		AvailabilityBreakdown: make(map[types.Availability]int),
		ReasonBreakdown:       make(map[string]int),
		Agents:                make([]types.Presence, 0, len(a.snapshot.Agents)),
	}

	seen := make(map[string]bool, len(a.snapshot.Agents))
	for _, agent := range a.snapshot.Agents {
		p := types.NewPresence(agent, a.table)
		seen[agent.ID] = true

		mark, ok := a.marks[agent.ID]
		if !ok || mark.reason != p.Reason {
			mark = reasonMark{reason: p.Reason, since: now}
			// On first observation prefer the time the availability last changed
			if entry, found := known[agent.ID]; !ok && found && entry.Status == agent.AvailabilityStatus && !entry.ChangedAt.IsZero() {
				mark.since = entry.ChangedAt
			}
			a.marks[agent.ID] = mark
		}
		since := mark.since
		p.Since = &since

		if p.Online {
			board.OnlineAgents++
		}
		board.AvailabilityBreakdown[agent.AvailabilityStatus]++
		board.ReasonBreakdown[p.Reason.String()]++
		board.Agents = append(board.Agents, p)
	}

	for id := range a.marks {
		if !seen[id] {
			delete(a.marks, id)
		}
	}

	alerts.CheckAgentAlerts(board.Agents, now)
	a.board = board
	return board
}

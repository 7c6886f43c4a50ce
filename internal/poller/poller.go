// Package poller periodically fetches the directory agent list and publishes
// the allow-listed view when it changes.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/metrics"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// AgentSource lists directory agents
type AgentSource interface {
	ListAgents(ctx context.Context) ([]types.Agent, error)
}

// Snapshot is one published view of the tracked agents. A snapshot is never
// mutated after publication; an unchanged poll keeps the same pointer.
type Snapshot struct {
	Agents    []types.Agent `json:"agents"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Poller fetches the agent list on a fixed interval
type Poller struct {
	source   AgentSource
	cache    *cache.AgentListCache
	allow    *config.AllowList
	interval time.Duration
	logger   zerolog.Logger

	// refreshMu serializes poll cycles so results commit in fetch order
	refreshMu sync.Mutex

	mu          sync.RWMutex
	current     *Snapshot
	loading     bool
	lastChecked time.Time
	subscribers []func(*Snapshot)
}

// New creates a poller. The cache is shared with other consumers (e.g. the
// admin invalidation endpoint) and decides whether a timer tick goes upstream.
func New(source AgentSource, listCache *cache.AgentListCache, allow *config.AllowList, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		source:   source,
		cache:    listCache,
		allow:    allow,
		interval: interval,
		loading:  true,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Subscribe registers fn to be called with every newly published snapshot
func (p *Poller) Subscribe(fn func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Start fetches immediately, bypassing the cache, then on every tick
func (p *Poller) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().Dur("interval", p.interval).Msg("poller started")
	p.Refresh(ctx, true)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("poller stopped")
			return

		case <-ticker.C:
			p.Refresh(ctx, false)
		}
	}
}

// Refresh runs one poll cycle. Unless forced, a cached list younger than the
// cache TTL is reused. A failed fetch keeps the previous snapshot.
func (p *Poller) Refresh(ctx context.Context, force bool) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	var (
		agents    []types.Agent
		fetchedAt time.Time
		hit       bool
	)

	if !force {
		agents, fetchedAt, hit = p.cache.Get()
	}

	if hit {
		metrics.PollCycles.WithLabelValues("cache").Inc()
	} else {
		fetched, err := p.source.ListAgents(ctx)
		if err != nil {
			metrics.PollCycles.WithLabelValues("error").Inc()
			p.logger.Error().Err(err).Msg("failed to fetch agents")
			p.mu.Lock()
			p.loading = false
			p.mu.Unlock()
			return err
		}
		metrics.PollCycles.WithLabelValues("fetch").Inc()
		agents = fetched
		fetchedAt = p.cache.Put(fetched)
	}

	filtered := p.allow.Filter(agents)

	p.mu.Lock()
	p.loading = false
	p.lastChecked = time.Now()
	if p.current != nil && !agentsChanged(p.current.Agents, filtered) {
		p.mu.Unlock()
		p.logger.Debug().Int("agents", len(filtered)).Msg("agent list unchanged")
		return nil
	}

	snap := &Snapshot{Agents: filtered, FetchedAt: fetchedAt}
	p.current = snap
	subscribers := make([]func(*Snapshot), len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	metrics.PollSnapshotsPublished.Inc()
	metrics.TrackedAgents.Set(float64(len(filtered)))

	p.logger.Debug().
		Int("agents", len(filtered)).
		Int("directory_agents", len(agents)).
		Msg("agent list changed")

	for _, fn := range subscribers {
		fn(snap)
	}
	return nil
}

// Snapshot returns the current snapshot, nil before the first successful poll
func (p *Poller) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Loading reports whether the first poll attempt has not finished yet
func (p *Poller) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// LastChecked returns when the last successful poll cycle completed
func (p *Poller) LastChecked() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastChecked
}

// agentsChanged compares the fields the dashboard renders from
func agentsChanged(prev, next []types.Agent) bool {
	if len(prev) != len(next) {
		return true
	}
	for i := range prev {
		if prev[i].LoginStatus != next[i].LoginStatus ||
			prev[i].AvailabilityStatus != next[i].AvailabilityStatus ||
			prev[i].Email != next[i].Email {
			return true
		}
	}
	return false
}

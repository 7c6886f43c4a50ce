package cache

import (
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
)

// AgentListCache holds the last fetched directory agent list for a TTL.
// One instance is shared by every consumer of the poller.
type AgentListCache struct {
	agents    []types.Agent
	fetchedAt time.Time
	ttl       time.Duration
	now       func() time.Time
	mu        sync.RWMutex
}

// NewAgentListCache creates an empty cache with the given freshness window
func NewAgentListCache(ttl time.Duration) *AgentListCache {
	return &AgentListCache{
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached list if it is younger than the TTL
func (c *AgentListCache) Get() ([]types.Agent, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, time.Time{}, false
	}
	return c.agents, c.fetchedAt, true
}

// Put stores a freshly fetched list
func (c *AgentListCache) Put(agents []types.Agent) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agents = agents
	c.fetchedAt = c.now()
	return c.fetchedAt
}

// Invalidate drops the cached list so the next read goes upstream
func (c *AgentListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.agents = nil
	c.fetchedAt = time.Time{}
}

// Age returns how old the cached list is; false if nothing is cached
func (c *AgentListCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fetchedAt.IsZero() {
		return 0, false
	}
	return c.now().Sub(c.fetchedAt), true
}

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
)

// StatusEntry is the last observed availability of one directory agent
type StatusEntry struct {
	Status    types.Availability `json:"status"`
	ChangedAt time.Time          `json:"changed_at"`
}

// StatusStore holds the last-known availability per directory agent id.
// It replaces process-global state: its lifetime and reset are explicit.
type StatusStore interface {
	Get(ctx context.Context, agentID string) (StatusEntry, bool, error)
	Set(ctx context.Context, agentID string, entry StatusEntry) error
	Snapshot(ctx context.Context) (map[string]StatusEntry, error)
	Reset(ctx context.Context) (int, error)
}

// MemoryStatusStore is a process-local StatusStore
type MemoryStatusStore struct {
	entries map[string]StatusEntry
	mu      sync.RWMutex
}

// NewMemoryStatusStore creates an empty in-memory status store
func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{
		entries: make(map[string]StatusEntry),
	}
}

// Get returns the last known entry for an agent
func (s *MemoryStatusStore) Get(_ context.Context, agentID string) (StatusEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[agentID]
	return entry, ok, nil
}

// Set records the last known entry for an agent
func (s *MemoryStatusStore) Set(_ context.Context, agentID string, entry StatusEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[agentID] = entry
	return nil
}

// Snapshot returns a copy of all entries
func (s *MemoryStatusStore) Snapshot(_ context.Context) (map[string]StatusEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]StatusEntry, len(s.entries))
	for id, entry := range s.entries {
		out[id] = entry
	}
	return out, nil
}

// Reset forgets every agent and returns how many were cleared
func (s *MemoryStatusStore) Reset(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = make(map[string]StatusEntry)
	return n, nil
}

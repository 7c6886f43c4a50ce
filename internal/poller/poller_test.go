package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	agents []types.Agent
	err    error
	calls  int
}

func (f *fakeSource) ListAgents(_ context.Context) ([]types.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.Agent, len(f.agents))
	copy(out, f.agents)
	return out, nil
}

func (f *fakeSource) set(agents []types.Agent, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agents = agents
	f.err = err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func directoryAgents() []types.Agent {
	return []types.Agent{
		{ID: "fc-1", Email: "a@x.com", AvailabilityStatus: types.AvailabilityAvailable, LoginStatus: true},
		{ID: "fc-2", Email: "b@x.com", AvailabilityStatus: types.AvailabilityUnavailable, RoleID: "role-support"},
		{ID: "fc-3", Email: "c@x.com", AvailabilityStatus: types.AvailabilityAvailable, RoleID: "role-sales"},
		{ID: "fc-4", Email: "d@x.com", AvailabilityStatus: types.AvailabilityAvailable},
	}
}

func newTestPoller(src AgentSource, ttl time.Duration) *Poller {
	allow := config.NewAllowList([]string{"role-support"}, []string{"fc-1"}, nil)
	return New(src, cache.NewAgentListCache(ttl), allow, time.Minute, zerolog.Nop())
}

func TestRefreshFiltersToAllowList(t *testing.T) {
	src := &fakeSource{agents: directoryAgents()}
	p := newTestPoller(src, 30*time.Second)

	require.NoError(t, p.Refresh(context.Background(), true))

	snap := p.Snapshot()
	require.NotNil(t, snap)
	ids := make([]string, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"fc-1", "fc-2"}, ids)
	assert.False(t, p.Loading())
}

func TestUnchangedPollKeepsSnapshotPointer(t *testing.T) {
	src := &fakeSource{agents: directoryAgents()}
	p := newTestPoller(src, 0)

	require.NoError(t, p.Refresh(context.Background(), true))
	first := p.Snapshot()

	// A change outside the compared fields does not publish
	agents := directoryAgents()
	agents[0].FirstName = "Renamed"
	agents[0].AgentStatus = &types.AgentStatus{ID: "st-1", Name: "Pausa"}
	src.set(agents, nil)

	require.NoError(t, p.Refresh(context.Background(), false))
	assert.Same(t, first, p.Snapshot())
	assert.Equal(t, 2, src.callCount(), "TTL of zero always goes upstream")
}

func TestChangedFieldPublishesNewSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]types.Agent) []types.Agent
	}{
		{"availability", func(a []types.Agent) []types.Agent {
			a[0].AvailabilityStatus = types.AvailabilityUnavailable
			return a
		}},
		{"login status", func(a []types.Agent) []types.Agent {
			a[1].LoginStatus = true
			return a
		}},
		{"email", func(a []types.Agent) []types.Agent {
			a[0].Email = "new@x.com"
			return a
		}},
		{"length", func(a []types.Agent) []types.Agent {
			return a[1:]
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{agents: directoryAgents()}
			p := newTestPoller(src, 0)

			var published []*Snapshot
			p.Subscribe(func(s *Snapshot) { published = append(published, s) })

			require.NoError(t, p.Refresh(context.Background(), true))
			first := p.Snapshot()

			src.set(tt.mutate(directoryAgents()), nil)
			require.NoError(t, p.Refresh(context.Background(), false))

			assert.NotSame(t, first, p.Snapshot())
			assert.Len(t, published, 2)
		})
	}
}

func TestFreshCacheSkipsUpstream(t *testing.T) {
	src := &fakeSource{agents: directoryAgents()}
	p := newTestPoller(src, time.Hour)

	require.NoError(t, p.Refresh(context.Background(), true))
	require.NoError(t, p.Refresh(context.Background(), false))
	require.NoError(t, p.Refresh(context.Background(), false))

	assert.Equal(t, 1, src.callCount())

	// Forced refresh ignores the cache
	require.NoError(t, p.Refresh(context.Background(), true))
	assert.Equal(t, 2, src.callCount())
}

func TestFailedFetchKeepsPreviousState(t *testing.T) {
	src := &fakeSource{agents: directoryAgents()}
	p := newTestPoller(src, 0)

	require.NoError(t, p.Refresh(context.Background(), true))
	before := p.Snapshot()

	src.set(nil, errors.New("boom"))
	assert.Error(t, p.Refresh(context.Background(), false))
	assert.Same(t, before, p.Snapshot())
}

func TestFailedFirstFetchClearsLoading(t *testing.T) {
	src := &fakeSource{err: errors.New("unreachable")}
	p := newTestPoller(src, 0)

	assert.True(t, p.Loading())
	assert.Error(t, p.Refresh(context.Background(), true))
	assert.False(t, p.Loading())
	assert.Nil(t, p.Snapshot())
}

func TestStartStopsOnContextCancel(t *testing.T) {
	src := &fakeSource{agents: directoryAgents()}
	allow := config.NewAllowList(nil, []string{"fc-1"}, nil)
	p := New(src, cache.NewAgentListCache(0), allow, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after context cancel")
	}
	assert.GreaterOrEqual(t, src.callCount(), 2)
	require.NotNil(t, p.Snapshot())
	assert.Len(t, p.Snapshot().Agents, 1)
}

// gatedSource returns one list per call; the first call blocks until released
type gatedSource struct {
	mu       sync.Mutex
	lists    [][]types.Agent
	calls    int
	inFlight int
	maxIn    int
	entered  chan struct{}
	release  chan struct{}
}

func (g *gatedSource) ListAgents(_ context.Context) ([]types.Agent, error) {
	g.mu.Lock()
	n := g.calls
	g.calls++
	g.inFlight++
	if g.inFlight > g.maxIn {
		g.maxIn = g.inFlight
	}
	g.mu.Unlock()

	if n == 0 {
		close(g.entered)
		<-g.release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight--
	return g.lists[n], nil
}

func TestConcurrentRefreshesCommitInOrder(t *testing.T) {
	older := directoryAgents()
	newer := directoryAgents()
	newer[0].AvailabilityStatus = types.AvailabilityUnavailable

	src := &gatedSource{
		lists:   [][]types.Agent{older, newer},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := newTestPoller(src, 30*time.Second)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Refresh(context.Background(), true))
	}()
	<-src.entered

	go func() {
		defer wg.Done()
		assert.NoError(t, p.Refresh(context.Background(), true))
	}()

	time.Sleep(20 * time.Millisecond)
	src.mu.Lock()
	assert.Equal(t, 1, src.calls, "second refresh waits for the first")
	src.mu.Unlock()

	close(src.release)
	wg.Wait()

	assert.Equal(t, 1, src.maxIn)
	snap := p.Snapshot()
	require.NotNil(t, snap)
	require.NotEmpty(t, snap.Agents)
	assert.Equal(t, types.AvailabilityUnavailable, snap.Agents[0].AvailabilityStatus)
}

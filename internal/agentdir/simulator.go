package agentdir

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
)

// SimulatorOptions tunes how often and how many agents change presence
type SimulatorOptions struct {
	Interval   time.Duration
	ChangeRate float64 // fraction of logged-in agents touched per tick
	Statuses   []Status
}

// Simulator moves directory agents between presence states
type Simulator struct {
	dir      *Directory
	opts     SimulatorOptions
	rng      *rand.Rand
	mu       sync.Mutex // guards rng and active
	active   []int
	logger   zerolog.Logger
	changes  atomic.Int64
	ticks    atomic.Int64
	running  atomic.Bool
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewSimulator creates a new presence simulator over dir
func NewSimulator(dir *Directory, opts SimulatorOptions, seed int64, logger zerolog.Logger) *Simulator {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.ChangeRate <= 0 || opts.ChangeRate > 1 {
		opts.ChangeRate = 0.1
	}
	if len(opts.Statuses) == 0 {
		opts.Statuses = DefaultStatuses
	}
	return &Simulator{
		dir:    dir,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.With().Str("component", "presence_sim").Logger(),
	}
}

// Start logs in numActive random agents and begins changing their presence.
// It returns immediately; Stop ends the simulation.
func (s *Simulator) Start(ctx context.Context, numActive int) {
	s.activate(numActive)

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.finished = make(chan struct{})
	done := s.finished
	s.mu.Unlock()
	s.running.Store(true)

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Step()
			}
		}
	}()

	s.logger.Info().Int("active_agents", numActive).Dur("interval", s.opts.Interval).Msg("presence simulation started")
}

// Stop ends the simulation and logs every agent out
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.finished
	s.cancel, s.finished = nil, nil
	active := s.active
	s.active = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for _, i := range active {
		s.dir.update(i, func(a *types.Agent) {
			a.LoginStatus = false
			a.AvailabilityStatus = types.AvailabilityUnavailable
			a.AgentStatus = nil
		})
	}
	s.running.Store(false)
	s.logger.Info().Int("logged_out", len(active)).Msg("presence simulation stopped")
}

// Running reports whether the simulation loop is active
func (s *Simulator) Running() bool {
	return s.running.Load()
}

// activate logs in a random subset of agents as available
func (s *Simulator) activate(count int) {
	total := s.dir.Len()
	if count > total {
		count = total
	}
	if count < 0 {
		count = 0
	}

	s.mu.Lock()
	s.active = s.rng.Perm(total)[:count]
	active := s.active
	s.mu.Unlock()

	for _, i := range active {
		s.dir.update(i, func(a *types.Agent) {
			a.LoginStatus = true
			a.AvailabilityStatus = types.AvailabilityAvailable
			a.AgentStatus = nil
		})
	}
}

// Step flips the presence of a random share of the logged-in agents and
// returns how many changed
func (s *Simulator) Step() int {
	s.mu.Lock()
	n := int(float64(len(s.active))*s.opts.ChangeRate + 0.5)
	if n == 0 && len(s.active) > 0 {
		n = 1
	}
	picked := make([]int, 0, n)
	for _, p := range s.rng.Perm(len(s.active))[:n] {
		picked = append(picked, s.active[p])
	}
	statuses := make([]Status, n)
	for i := range statuses {
		statuses[i] = pickStatus(s.rng, s.opts.Statuses)
	}
	s.mu.Unlock()

	for i, idx := range picked {
		status := statuses[i]
		s.dir.update(idx, func(a *types.Agent) {
			if a.AvailabilityStatus == types.AvailabilityAvailable {
				a.AvailabilityStatus = types.AvailabilityUnavailable
				a.AgentStatus = &types.AgentStatus{ID: status.ID, Name: status.Name}
				return
			}
			a.AvailabilityStatus = types.AvailabilityAvailable
			a.AgentStatus = nil
		})
	}

	s.ticks.Add(1)
	s.changes.Add(int64(len(picked)))
	s.logger.Debug().Int("changed", len(picked)).Msg("presence tick")
	return len(picked)
}

// Stats returns counters for the control API
func (s *Simulator) Stats() map[string]interface{} {
	s.mu.Lock()
	active := len(s.active)
	s.mu.Unlock()

	available := 0
	for _, a := range s.dir.Snapshot() {
		if a.LoginStatus && a.AvailabilityStatus == types.AvailabilityAvailable {
			available++
		}
	}
	return map[string]interface{}{
		"running":          s.Running(),
		"logged_in_agents": active,
		"available_agents": available,
		"ticks":            s.ticks.Load(),
		"status_changes":   s.changes.Load(),
	}
}

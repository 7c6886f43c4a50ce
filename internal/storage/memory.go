package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// MemoryStore is a Store kept in process memory. It is used when no
// DATABASE_URL is configured and by the handler tests.
type MemoryStore struct {
	mu          sync.RWMutex
	agents      map[string]types.InternalAgent
	schedules   map[string]types.Schedule
	swaps       map[string]types.ShiftSwap
	logs        []types.StatusLog
	ledger      []types.PointsEntry
	tasks       map[string]types.Task
	completions map[string]types.TaskCompletion // taskID|agentID
	items       map[string]types.MarketplaceItem
	redemptions []types.Redemption
	now         func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:      make(map[string]types.InternalAgent),
		schedules:   make(map[string]types.Schedule),
		swaps:       make(map[string]types.ShiftSwap),
		tasks:       make(map[string]types.Task),
		completions: make(map[string]types.TaskCompletion),
		items:       make(map[string]types.MarketplaceItem),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close()                     {}

// --- agents ---

func (s *MemoryStore) duplicateAgent(a types.InternalAgent) bool {
	for id, other := range s.agents {
		if id == a.ID {
			continue
		}
		if strings.EqualFold(other.Email, a.Email) {
			return true
		}
		if a.FreshchatID != "" && other.FreshchatID == a.FreshchatID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CreateAgent(_ context.Context, a *types.InternalAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if s.duplicateAgent(*a) {
		return ErrDuplicate
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.agents[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (*types.InternalAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) GetAgentByFreshchatID(_ context.Context, freshchatID string) (*types.InternalAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if a.FreshchatID == freshchatID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAgents(_ context.Context, filter types.AgentFilter) ([]types.InternalAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.InternalAgent, 0, len(s.agents))
	for _, a := range s.agents {
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) UpdateAgent(_ context.Context, id string, patch types.AgentPatch) (*types.InternalAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyAgentPatch(&a, patch)
	if s.duplicateAgent(a) {
		return nil, ErrDuplicate
	}
	a.UpdatedAt = s.now()
	s.agents[id] = a
	return &a, nil
}

func applyAgentPatch(a *types.InternalAgent, p types.AgentPatch) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.FreshchatID != nil {
		a.FreshchatID = *p.FreshchatID
	}
	if p.Role != nil {
		a.Role = *p.Role
	}
	if p.ShiftType != nil {
		a.ShiftType = *p.ShiftType
	}
	if p.Team != nil {
		a.Team = *p.Team
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
}

func (s *MemoryStore) DeleteAgent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		return ErrNotFound
	}
	for _, sc := range s.schedules {
		if sc.AgentID == id && sc.IsActive {
			return ErrAgentHasSchedules
		}
	}
	if s.hasHistoryLocked(id) {
		return ErrAgentHasHistory
	}
	delete(s.agents, id)
	return nil
}

// hasHistoryLocked reports whether any record still references the agent
func (s *MemoryStore) hasHistoryLocked(id string) bool {
	for _, sc := range s.schedules {
		if sc.AgentID == id {
			return true
		}
	}
	for _, sw := range s.swaps {
		if sw.RequesterID == id || sw.TargetAgentID == id {
			return true
		}
	}
	for _, l := range s.logs {
		if l.AgentID == id {
			return true
		}
	}
	for _, e := range s.ledger {
		if e.AgentID == id {
			return true
		}
	}
	for _, c := range s.completions {
		if c.AgentID == id {
			return true
		}
	}
	for _, r := range s.redemptions {
		if r.AgentID == id {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpsertAgentByFreshchatID(_ context.Context, a *types.InternalAgent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, existing := range s.agents {
		if existing.FreshchatID != a.FreshchatID {
			continue
		}
		existing.Name = a.Name
		existing.Email = a.Email
		existing.IsActive = a.IsActive
		existing.UpdatedAt = now
		if s.duplicateAgent(existing) {
			return false, ErrDuplicate
		}
		s.agents[id] = existing
		*a = existing
		return false, nil
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if s.duplicateAgent(*a) {
		return false, ErrDuplicate
	}
	a.CreatedAt, a.UpdatedAt = now, now
	s.agents[a.ID] = *a
	return true, nil
}

// --- schedules ---

func (s *MemoryStore) CreateSchedule(_ context.Context, sc *types.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[sc.AgentID]; !ok {
		return ErrNotFound
	}
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	now := s.now()
	sc.IsActive = true
	sc.CreatedAt, sc.UpdatedAt = now, now
	s.schedules[sc.ID] = *sc
	return nil
}

func (s *MemoryStore) GetSchedule(_ context.Context, id string) (*types.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sc, nil
}

func (s *MemoryStore) ListSchedules(_ context.Context, f types.ScheduleFilter) ([]types.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Schedule, 0)
	for _, sc := range s.schedules {
		if f.AgentID != "" && sc.AgentID != f.AgentID {
			continue
		}
		if f.ActiveOnly && !sc.IsActive {
			continue
		}
		if f.DayOfWeek != nil && sc.DayOfWeek != *f.DayOfWeek {
			continue
		}
		if !f.From.IsZero() && !sc.EndTime.After(f.From) {
			continue
		}
		if !f.To.IsZero() && !sc.StartTime.Before(f.To) {
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *MemoryStore) UpdateSchedule(_ context.Context, sc *types.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.schedules[sc.ID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := s.agents[sc.AgentID]; !ok {
		return ErrNotFound
	}
	sc.CreatedAt = existing.CreatedAt
	sc.UpdatedAt = s.now()
	s.schedules[sc.ID] = *sc
	return nil
}

func (s *MemoryStore) DeactivateSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.schedules[id]
	if !ok {
		return ErrNotFound
	}
	for _, sw := range s.swaps {
		if sw.Status == types.SwapPending && (sw.OriginalScheduleID == id || sw.TargetScheduleID == id) {
			return ErrPendingSwap
		}
	}
	sc.IsActive = false
	sc.UpdatedAt = s.now()
	s.schedules[id] = sc
	return nil
}

// CheckScheduleConflict uses half-open intervals, so back-to-back shifts do
// not conflict.
func (s *MemoryStore) CheckScheduleConflict(_ context.Context, agentID string, start, end time.Time, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sc := range s.schedules {
		if sc.AgentID != agentID || !sc.IsActive {
			continue
		}
		if excludeID != "" && sc.ID == excludeID {
			continue
		}
		if start.Before(sc.EndTime) && sc.StartTime.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) WorkedHours(_ context.Context, agentID string, from, to time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total float64
	for _, sc := range s.schedules {
		if sc.AgentID != agentID || !sc.IsActive {
			continue
		}
		total += clip(sc.StartTime, sc.EndTime, from, to)
	}
	return total, nil
}

// --- swaps ---

func (s *MemoryStore) CreateSwap(_ context.Context, sw *types.ShiftSwap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range []string{sw.RequesterID, sw.TargetAgentID} {
		if _, ok := s.agents[id]; !ok {
			return ErrNotFound
		}
	}
	for _, id := range []string{sw.OriginalScheduleID, sw.TargetScheduleID} {
		if _, ok := s.schedules[id]; !ok {
			return ErrNotFound
		}
	}
	for _, other := range s.swaps {
		if other.Status != types.SwapPending {
			continue
		}
		if other.OriginalScheduleID == sw.OriginalScheduleID || other.TargetScheduleID == sw.OriginalScheduleID ||
			other.OriginalScheduleID == sw.TargetScheduleID || other.TargetScheduleID == sw.TargetScheduleID {
			return ErrPendingSwap
		}
	}

	if sw.ID == "" {
		sw.ID = uuid.NewString()
	}
	sw.Status = types.SwapPending
	sw.CreatedAt = s.now()
	s.swaps[sw.ID] = *sw
	return nil
}

func (s *MemoryStore) GetSwap(_ context.Context, id string) (*types.ShiftSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sw, ok := s.swaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sw, nil
}

func (s *MemoryStore) ListSwaps(_ context.Context, status types.SwapStatus, agentID string) ([]types.ShiftSwap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ShiftSwap, 0)
	for _, sw := range s.swaps {
		if status != "" && sw.Status != status {
			continue
		}
		if agentID != "" && sw.RequesterID != agentID && sw.TargetAgentID != agentID {
			continue
		}
		out = append(out, sw)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ResolveSwap(_ context.Context, id string, status types.SwapStatus, reviewer string) (*types.ShiftSwap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.swaps[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sw.Status != types.SwapPending {
		return nil, ErrSwapNotPending
	}

	now := s.now()
	if status == types.SwapApproved {
		orig, ok1 := s.schedules[sw.OriginalScheduleID]
		target, ok2 := s.schedules[sw.TargetScheduleID]
		if !ok1 || !ok2 {
			return nil, ErrNotFound
		}
		orig.AgentID, target.AgentID = target.AgentID, orig.AgentID
		orig.UpdatedAt, target.UpdatedAt = now, now
		s.schedules[orig.ID] = orig
		s.schedules[target.ID] = target
	}

	sw.Status = status
	sw.ReviewedBy = reviewer
	sw.ReviewedAt = &now
	s.swaps[id] = sw
	return &sw, nil
}

// --- status logs ---

func (s *MemoryStore) InsertStatusLogs(_ context.Context, logs []types.StatusLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range logs {
		if l.AgentID == "" {
			return ErrNotFound
		}
		if _, ok := s.agents[l.AgentID]; !ok {
			return ErrNotFound
		}
	}
	s.logs = append(s.logs, logs...)
	return nil
}

func (s *MemoryStore) ListStatusLogs(_ context.Context, agentID string, limit int) ([]types.StatusLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.StatusLog, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		if agentID != "" && s.logs[i].AgentID != agentID {
			continue
		}
		out = append(out, s.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- gamification ---

func (s *MemoryStore) balanceLocked(agentID string) int {
	var total int
	for _, e := range s.ledger {
		if e.AgentID == agentID {
			total += e.Amount
		}
	}
	return total
}

func (s *MemoryStore) appendLedgerLocked(agentID string, amount int, reason string) types.PointsEntry {
	e := types.PointsEntry{
		ID:        ulid.Make().String(),
		AgentID:   agentID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: s.now(),
	}
	s.ledger = append(s.ledger, e)
	return e
}

func (s *MemoryStore) AwardPoints(_ context.Context, e *types.PointsEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[e.AgentID]; !ok {
		return ErrNotFound
	}
	if e.Amount < 0 && s.balanceLocked(e.AgentID)+e.Amount < 0 {
		return ErrInsufficientPoints
	}
	*e = s.appendLedgerLocked(e.AgentID, e.Amount, e.Reason)
	return nil
}

func (s *MemoryStore) PointsBalance(_ context.Context, agentID string, ledgerLimit int) (*types.PointsBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.agents[agentID]; !ok {
		return nil, ErrNotFound
	}

	bal := &types.PointsBalance{AgentID: agentID, Balance: s.balanceLocked(agentID), Ledger: []types.PointsEntry{}}
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].AgentID != agentID {
			continue
		}
		bal.Ledger = append(bal.Ledger, s.ledger[i])
		if ledgerLimit > 0 && len(bal.Ledger) == ledgerLimit {
			break
		}
	}
	return bal, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.IsActive = true
	t.CreatedAt = s.now()
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemoryStore) ListTasks(_ context.Context, activeOnly bool) ([]types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CompleteTask(_ context.Context, taskID, agentID string) (*types.TaskCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok || !t.IsActive {
		return nil, ErrNotFound
	}
	if _, ok := s.agents[agentID]; !ok {
		return nil, ErrNotFound
	}
	key := taskID + "|" + agentID
	if _, done := s.completions[key]; done {
		return nil, ErrAlreadyCompleted
	}

	c := types.TaskCompletion{TaskID: taskID, AgentID: agentID, Points: t.Points, CompletedAt: s.now()}
	s.completions[key] = c
	s.appendLedgerLocked(agentID, t.Points, "task: "+t.Title)
	return &c, nil
}

func (s *MemoryStore) CreateItem(_ context.Context, item *types.MarketplaceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.IsActive = true
	item.CreatedAt = s.now()
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) ListItems(_ context.Context, activeOnly bool) ([]types.MarketplaceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.MarketplaceItem, 0, len(s.items))
	for _, it := range s.items {
		if activeOnly && !it.IsActive {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cost < out[j].Cost })
	return out, nil
}

func (s *MemoryStore) RedeemItem(_ context.Context, itemID, agentID string) (*types.Redemption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || !item.IsActive {
		return nil, ErrNotFound
	}
	if _, ok := s.agents[agentID]; !ok {
		return nil, ErrNotFound
	}
	if item.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	if s.balanceLocked(agentID) < item.Cost {
		return nil, ErrInsufficientPoints
	}

	item.Stock--
	s.items[itemID] = item
	s.appendLedgerLocked(agentID, -item.Cost, "redeem: "+item.Name)

	r := types.Redemption{
		ID:         uuid.NewString(),
		ItemID:     itemID,
		AgentID:    agentID,
		Cost:       item.Cost,
		RedeemedAt: s.now(),
	}
	s.redemptions = append(s.redemptions, r)
	return &r, nil
}

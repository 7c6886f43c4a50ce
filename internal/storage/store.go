package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("duplicate record")
	ErrScheduleConflict   = errors.New("schedule overlaps an existing shift")
	ErrPendingSwap        = errors.New("schedule has a pending shift swap")
	ErrAgentHasSchedules  = errors.New("agent has active schedules")
	ErrAgentHasHistory    = errors.New("agent has recorded history; deactivate it instead")
	ErrSwapNotPending     = errors.New("swap is not pending")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrOutOfStock         = errors.New("item out of stock")
	ErrAlreadyCompleted   = errors.New("task already completed by agent")
)

// AgentStore manages internal agent records
type AgentStore interface {
	CreateAgent(ctx context.Context, a *types.InternalAgent) error
	GetAgent(ctx context.Context, id string) (*types.InternalAgent, error)
	GetAgentByFreshchatID(ctx context.Context, freshchatID string) (*types.InternalAgent, error)
	ListAgents(ctx context.Context, filter types.AgentFilter) ([]types.InternalAgent, error)
	UpdateAgent(ctx context.Context, id string, patch types.AgentPatch) (*types.InternalAgent, error)
	DeleteAgent(ctx context.Context, id string) error
	// UpsertAgentByFreshchatID inserts or refreshes the record linked to a
	// directory agent and reports whether it was created.
	UpsertAgentByFreshchatID(ctx context.Context, a *types.InternalAgent) (bool, error)
}

// ScheduleStore manages shifts
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, s *types.Schedule) error
	GetSchedule(ctx context.Context, id string) (*types.Schedule, error)
	ListSchedules(ctx context.Context, filter types.ScheduleFilter) ([]types.Schedule, error)
	UpdateSchedule(ctx context.Context, s *types.Schedule) error
	DeactivateSchedule(ctx context.Context, id string) error
	// CheckScheduleConflict reports whether [start,end) overlaps another active
	// shift of the agent. excludeID is ignored when empty.
	CheckScheduleConflict(ctx context.Context, agentID string, start, end time.Time, excludeID string) (bool, error)
	WorkedHours(ctx context.Context, agentID string, from, to time.Time) (float64, error)
}

// SwapStore manages shift swap requests
type SwapStore interface {
	CreateSwap(ctx context.Context, sw *types.ShiftSwap) error
	GetSwap(ctx context.Context, id string) (*types.ShiftSwap, error)
	ListSwaps(ctx context.Context, status types.SwapStatus, agentID string) ([]types.ShiftSwap, error)
	ResolveSwap(ctx context.Context, id string, status types.SwapStatus, reviewer string) (*types.ShiftSwap, error)
}

// StatusLogStore persists status changes
type StatusLogStore interface {
	InsertStatusLogs(ctx context.Context, logs []types.StatusLog) error
	ListStatusLogs(ctx context.Context, agentID string, limit int) ([]types.StatusLog, error)
}

// GamificationStore manages points, tasks and the marketplace
type GamificationStore interface {
	AwardPoints(ctx context.Context, e *types.PointsEntry) error
	PointsBalance(ctx context.Context, agentID string, ledgerLimit int) (*types.PointsBalance, error)

	CreateTask(ctx context.Context, t *types.Task) error
	ListTasks(ctx context.Context, activeOnly bool) ([]types.Task, error)
	CompleteTask(ctx context.Context, taskID, agentID string) (*types.TaskCompletion, error)

	CreateItem(ctx context.Context, item *types.MarketplaceItem) error
	ListItems(ctx context.Context, activeOnly bool) ([]types.MarketplaceItem, error)
	RedeemItem(ctx context.Context, itemID, agentID string) (*types.Redemption, error)
}

// Store is the relational persistence layer
type Store interface {
	AgentStore
	ScheduleStore
	SwapStore
	StatusLogStore
	GamificationStore

	Ping(ctx context.Context) error
	Close()
}

// Archive mirrors status logs into long-term storage
type Archive interface {
	Archive(ctx context.Context, logs []types.StatusLog) error
	History(ctx context.Context, agentID, date string) ([]types.StatusLog, error)
	TruncateAll(ctx context.Context) error
	Enabled() bool
}

// clip returns the part of [start,end) inside [from,to) in hours
func clip(start, end, from, to time.Time) float64 {
	if !from.IsZero() && start.Before(from) {
		start = from
	}
	if !to.IsZero() && end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

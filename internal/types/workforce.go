package types

import "time"

// Role is the role of an internal agent record
type Role string

const (
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// ValidRole reports whether r is a known role
func ValidRole(r Role) bool {
	switch r {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// ShiftType is the kind of shift worked
type ShiftType string

const (
	ShiftMorning   ShiftType = "manha"
	ShiftAfternoon ShiftType = "tarde"
	ShiftNight     ShiftType = "noite"
	ShiftFull      ShiftType = "integral"
)

// ValidShiftType reports whether s is a known shift type
func ValidShiftType(s ShiftType) bool {
	switch s {
	case ShiftMorning, ShiftAfternoon, ShiftNight, ShiftFull:
		return true
	}
	return false
}

// InternalAgent is the locally owned agent record, linked to the directory by FreshchatID
type InternalAgent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	FreshchatID string    `json:"freshchat_id,omitempty"`
	Role        Role      `json:"role"`
	ShiftType   ShiftType `json:"shift_type,omitempty"`
	Team        string    `json:"team,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AgentPatch carries the optional fields of a partial agent update
type AgentPatch struct {
	Name        *string    `json:"name,omitempty"`
	Email       *string    `json:"email,omitempty"`
	FreshchatID *string    `json:"freshchat_id,omitempty"`
	Role        *Role      `json:"role,omitempty"`
	ShiftType   *ShiftType `json:"shift_type,omitempty"`
	Team        *string    `json:"team,omitempty"`
	IsActive    *bool      `json:"is_active,omitempty"`
}

// AgentFilter narrows agent listings
type AgentFilter struct {
	Role       Role
	ActiveOnly bool
}

// Schedule is one scheduled shift of an internal agent
type Schedule struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	ShiftType ShiftType `json:"shift_type"`
	DayOfWeek int       `json:"day_of_week"` // 0 = Sunday
	Notes     string    `json:"notes,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Hours returns the scheduled duration in hours
func (s Schedule) Hours() float64 {
	return s.EndTime.Sub(s.StartTime).Hours()
}

// ScheduleFilter narrows schedule listings. Zero values mean "any".
type ScheduleFilter struct {
	AgentID    string
	From       time.Time
	To         time.Time
	DayOfWeek  *int
	ActiveOnly bool
}

// WorkedHours is the aggregate returned by the hours calculation
type WorkedHours struct {
	AgentID string    `json:"agent_id"`
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	Hours   float64   `json:"hours"`
}

// SwapStatus is the lifecycle status of a shift swap
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapApproved  SwapStatus = "approved"
	SwapRejected  SwapStatus = "rejected"
	SwapCancelled SwapStatus = "cancelled"
)

// ShiftSwap is a request to exchange two scheduled shifts
type ShiftSwap struct {
	ID                 string     `json:"id"`
	RequesterID        string     `json:"requester_id"`
	TargetAgentID      string     `json:"target_agent_id"`
	OriginalScheduleID string     `json:"original_schedule_id"`
	TargetScheduleID   string     `json:"target_schedule_id"`
	Reason             string     `json:"reason,omitempty"`
	Status             SwapStatus `json:"status"`
	ReviewedBy         string     `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// PointsEntry is one row of the points ledger
type PointsEntry struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Amount    int       `json:"amount"` // negative for redemptions
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// PointsBalance is the current balance of an agent with its recent ledger
type PointsBalance struct {
	AgentID string        `json:"agent_id"`
	Balance int           `json:"balance"`
	Ledger  []PointsEntry `json:"ledger"`
}

// Task is a gamification task worth points on completion
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Points      int        `json:"points"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TaskCompletion records that an agent completed a task
type TaskCompletion struct {
	TaskID      string    `json:"task_id"`
	AgentID     string    `json:"agent_id"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completed_at"`
}

// MarketplaceItem is a reward redeemable for points
type MarketplaceItem struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Cost        int       `json:"cost"`
	Stock       int       `json:"stock"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Redemption records an item bought with points
type Redemption struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id"`
	AgentID    string    `json:"agent_id"`
	Cost       int       `json:"cost"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

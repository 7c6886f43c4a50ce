package types

import (
	"strings"
	"time"
)

// Availability is the coarse presence flag reported by the agent directory
type Availability string

const (
	AvailabilityAvailable   Availability = "AVAILABLE"
	AvailabilityUnavailable Availability = "UNAVAILABLE"

	// AvailabilityUnknown is the previous status of an agent never observed before
	AvailabilityUnknown Availability = "UNKNOWN"
)

// AgentStatus is the optional custom presence reason attached to a directory agent
type AgentStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Agent is an agent record as served by the external agent directory
type Agent struct {
	ID                 string       `json:"id"`
	FirstName          string       `json:"first_name"`
	LastName           string       `json:"last_name"`
	Email              string       `json:"email"`
	RoleID             string       `json:"role_id,omitempty"`
	AvailabilityStatus Availability `json:"availability_status"`
	AgentStatus        *AgentStatus `json:"agent_status,omitempty"`
	LoginStatus        bool         `json:"login_status"`
	Avatar             *AgentAvatar `json:"avatar,omitempty"`
}

// AgentAvatar holds the directory avatar url
type AgentAvatar struct {
	URL string `json:"url"`
}

// FullName returns "first last" with surrounding whitespace removed
func (a Agent) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// AgentList is the directory list payload
type AgentList struct {
	Agents []Agent `json:"agents"`
}

// StatusChange is an observed availability transition. It is never persisted
// as-is; StatusLog is its durable form.
type StatusChange struct {
	AgentID        string       `json:"agent_id"`
	AgentName      string       `json:"agent_name"`
	NewStatus      Availability `json:"new_status"`
	PreviousStatus Availability `json:"previous_status"`
	Reason         string       `json:"reason,omitempty"`
	Timestamp      time.Time    `json:"timestamp"`
}

// StatusLog is the persisted record of a status change
type StatusLog struct {
	ID              string       `json:"id" dynamodbav:"LogID"`
	AgentID         string       `json:"agent_id" dynamodbav:"AgentID"`
	ExternalAgentID string       `json:"external_agent_id" dynamodbav:"ExternalAgentID"`
	Status          Availability `json:"status" dynamodbav:"Status"`
	PreviousStatus  Availability `json:"previous_status" dynamodbav:"PreviousStatus"`
	Details         string       `json:"details" dynamodbav:"Details"`
	DateKey         string       `json:"-" dynamodbav:"DateKey"` // YYYY-MM-DD
	CreatedAt       time.Time    `json:"created_at" dynamodbav:"CreatedAt"`
}

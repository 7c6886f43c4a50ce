package types

import (
	"fmt"
	"strings"
	"time"
)

// Reason is the fine-grained presence reason of an agent
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFeedback
	ReasonMeeting
	ReasonBreak
	ReasonLunch
	ReasonTraining
	ReasonBackoffice
	// ReasonCustom is a directory status id with no configured mapping.
	// The directory-provided name is kept alongside it.
	ReasonCustom
)

var reasonNames = map[Reason]string{
	ReasonNone:       "none",
	ReasonFeedback:   "feedback",
	ReasonMeeting:    "meeting",
	ReasonBreak:      "break",
	ReasonLunch:      "lunch",
	ReasonTraining:   "training",
	ReasonBackoffice: "backoffice",
	ReasonCustom:     "custom",
}

// String returns the machine name used in configuration and JSON
func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Label returns the dashboard label for the reason
func (r Reason) Label() string {
	switch r {
	case ReasonNone:
		return "Disponível"
	case ReasonFeedback:
		return "Feedback"
	case ReasonMeeting:
		return "Reunião"
	case ReasonBreak:
		return "Pausa"
	case ReasonLunch:
		return "Almoço"
	case ReasonTraining:
		return "Treinamento"
	case ReasonBackoffice:
		return "Backoffice"
	case ReasonCustom:
		return "Personalizado"
	}
	return r.String()
}

// IsPause reports whether the reason takes the agent away from the queue
func (r Reason) IsPause() bool {
	return r == ReasonBreak || r == ReasonLunch
}

// MarshalText implements encoding.TextMarshaler
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *Reason) UnmarshalText(text []byte) error {
	parsed, err := ParseReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseReason parses a machine reason name
func ParseReason(s string) (Reason, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range reasonNames {
		if name == s {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown presence reason %q", s)
}

// ReasonTable maps opaque directory status ids to reasons
type ReasonTable map[string]Reason

// Resolve maps an agent's directory status onto a reason. An agent without a
// custom status has ReasonNone; an unmapped id is ReasonCustom with its name.
func (t ReasonTable) Resolve(status *AgentStatus) (Reason, string) {
	if status == nil || status.ID == "" {
		return ReasonNone, ""
	}
	if r, ok := t[status.ID]; ok {
		return r, status.Name
	}
	return ReasonCustom, status.Name
}

// Presence is the dashboard view of one directory agent
type Presence struct {
	Agent
	Reason      Reason     `json:"reason"`
	ReasonLabel string     `json:"reason_label"`
	ReasonName  string     `json:"reason_name,omitempty"`
	Online      bool       `json:"online"`
	Since       *time.Time `json:"since,omitempty"`
	Alerts      []Alert    `json:"alerts,omitempty"`
}

// NewPresence derives the presence view of an agent
func NewPresence(a Agent, table ReasonTable) Presence {
	reason, name := table.Resolve(a.AgentStatus)
	label := reason.Label()
	if reason == ReasonCustom && name != "" {
		label = name
	}
	return Presence{
		Agent:       a,
		Reason:      reason,
		ReasonLabel: label,
		ReasonName:  name,
		Online:      a.LoginStatus && a.AvailabilityStatus == AvailabilityAvailable,
	}
}

// AlertSeverity represents the severity of an agent alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert represents an alert condition for an agent
type Alert struct {
	Rule     string        `json:"rule"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Board is the presence summary pushed to dashboard clients
type Board struct {
	Type                  string               `json:"type"` // always "presence_board"
	Timestamp             time.Time            `json:"timestamp"`
	TotalAgents           int                  `json:"total_agents"`
	OnlineAgents          int                  `json:"online_agents"`
	AvailabilityBreakdown map[Availability]int `json:"availability_breakdown"`
	ReasonBreakdown       map[string]int       `json:"reason_breakdown"`
	Agents                []Presence           `json:"agents"`
}

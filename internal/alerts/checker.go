package alerts

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/types"
)

const (
	pauseWarning   = 15 * time.Minute
	pauseCritical  = 30 * time.Minute
	meetingWarning = 60 * time.Minute
)

// CheckAgentAlerts evaluates alert rules for a slice of presences,
// mutating each entry's Alerts field in place.
func CheckAgentAlerts(agents []types.Presence, now time.Time) {
	for i := range agents {
		agents[i].Alerts = nil
		if agents[i].Since == nil {
			continue
		}
		dur := now.Sub(*agents[i].Since)

		switch {
		case agents[i].Reason.IsPause():
			if dur > pauseCritical {
				agents[i].Alerts = append(agents[i].Alerts, types.Alert{
					Rule:     "pause_long",
					Severity: types.SeverityCritical,
					Message:  fmt.Sprintf("%s for %s", agents[i].ReasonLabel, formatDuration(dur)),
				})
			} else if dur > pauseWarning {
				agents[i].Alerts = append(agents[i].Alerts, types.Alert{
					Rule:     "pause_long",
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("%s for %s", agents[i].ReasonLabel, formatDuration(dur)),
				})
			}

		case agents[i].Reason == types.ReasonMeeting:
			if dur > meetingWarning {
				agents[i].Alerts = append(agents[i].Alerts, types.Alert{
					Rule:     "meeting_long",
					Severity: types.SeverityWarning,
					Message:  fmt.Sprintf("%s for %s", agents[i].ReasonLabel, formatDuration(dur)),
				})
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if mins >= 60 {
		hours := mins / 60
		mins = mins % 60
		return fmt.Sprintf("%dh%dm", hours, mins)
	}
	return fmt.Sprintf("%dm%ds", mins, secs)
}

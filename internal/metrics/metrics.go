// Package metrics holds the Prometheus collectors of the backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfm_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wfm_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Agent directory
	DirectoryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfm_directory_requests_total",
			Help: "Requests to the external agent directory by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	DirectoryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wfm_directory_latency_seconds",
			Help:    "Agent directory response latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Poller
	PollCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfm_poll_cycles_total",
			Help: "Poll cycles by source (cache, fetch, error)",
		},
		[]string{"source"},
	)

	PollSnapshotsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wfm_poll_snapshots_published_total",
			Help: "Poll cycles that produced a changed agent list",
		},
	)

	TrackedAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wfm_tracked_agents",
			Help: "Allow-listed agents in the current snapshot",
		},
	)

	// Status monitor
	StatusChangesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wfm_status_changes_total",
			Help: "Availability transitions detected",
		},
	)

	StatusLogsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wfm_status_logs_saved_total",
			Help: "Status log rows persisted",
		},
	)

	StatusLogErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wfm_status_log_errors_total",
			Help: "Failed status log bulk inserts",
		},
	)

	ArchiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfm_archive_writes_total",
			Help: "Status log archive writes by outcome",
		},
		[]string{"outcome"},
	)

	// User sync
	SyncedUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wfm_synced_users_total",
			Help: "Internal agents touched by the directory user sync",
		},
		[]string{"result"}, // "created", "updated", "skipped"
	)

	// WebSocket
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wfm_websocket_clients",
			Help: "Connected dashboard clients",
		},
	)

	BoardsBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wfm_boards_broadcast_total",
			Help: "Presence boards broadcast to dashboard clients",
		},
	)
)

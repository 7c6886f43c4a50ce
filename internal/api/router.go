package api

import (
	"github.com/dennisdiepolder/monti/wfm/internal/auth"
	"github.com/dennisdiepolder/monti/wfm/internal/cache"
	"github.com/dennisdiepolder/monti/wfm/internal/config"
	"github.com/dennisdiepolder/monti/wfm/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Poller is the live view and refresh control of the directory poller
type Poller interface {
	LiveSource
	Refresher
}

// Deps are the services the HTTP API is built on
type Deps struct {
	Directory    Directory
	Store        storage.Store
	Archive      storage.Archive
	Monitor      StatusMonitor
	Poller       Poller
	Boards       BoardSource
	Statuses     cache.StatusStore
	ListCache    *cache.AgentListCache
	AllowList    *config.AllowList
	SimulatorURL string
	Logger       zerolog.Logger
}

// Routes registers the /api endpoints on r. Authentication has to be applied
// by the caller; role checks are applied here.
func Routes(r chi.Router, d Deps) {
	proxy := NewProxyHandler(d.Directory, d.Logger)
	mon := NewMonitorHandler(d.Monitor, d.Logger)
	roster := NewRosterHandler(d.Poller, d.Boards, d.AllowList.Reasons, d.Logger)
	agents := NewAgentsHandler(d.Store, d.Logger)
	schedules := NewSchedulesHandler(d.Store, d.Logger)
	swaps := NewSwapsHandler(d.Store, d.Logger)
	history := NewAgentHistoryHandler(d.Store, d.Archive, d.Logger)
	userSync := NewUserSyncHandler(d.Directory, d.Store, d.AllowList, d.Logger)
	game := NewGamificationHandler(d.Store, d.Logger)
	admin := NewAdminHandler(d.SimulatorURL, d.Statuses, d.ListCache, d.Poller, d.Archive, d.Logger)

	staff := auth.RequireRole(auth.RoleAdmin, auth.RoleSupervisor)

	r.Route("/api", func(r chi.Router) {
		r.Get("/proxy", proxy.GetAgents)

		r.Route("/freshchat-monitor", func(r chi.Router) {
			r.Use(staff)
			r.Get("/", mon.Sync)
			r.Post("/", mon.Check)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/live", roster.Live)
			r.With(staff).Get("/board", roster.Board)

			r.Get("/", agents.List)
			r.Get("/{id}", agents.Get)
			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Post("/", agents.Create)
				r.Patch("/{id}", agents.Update)
				r.Delete("/{id}", agents.Delete)
			})
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", schedules.List)
			r.Get("/hours", schedules.Hours)
			r.Get("/weekly", schedules.Weekly)
			r.Get("/{id}", schedules.Get)
			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Post("/", schedules.Create)
				r.Put("/", schedules.Update)
				r.Delete("/", schedules.Delete)
				r.Put("/{id}", schedules.Update)
				r.Delete("/{id}", schedules.Delete)
			})
		})

		r.Route("/swaps", func(r chi.Router) {
			r.Get("/", swaps.List)
			r.Post("/", swaps.Create)
			r.Get("/{id}", swaps.Get)
			r.Patch("/{id}", swaps.Resolve)
		})

		r.Route("/status-logs", func(r chi.Router) {
			r.Use(staff)
			r.Get("/", history.GetStatusLogs)
			r.Get("/archive/{agentId}", history.GetArchive)
		})

		r.With(staff).Post("/sync-users-xano", userSync.Sync)
		r.With(staff).Post("/sync-users", userSync.Sync)

		r.Get("/points/{agentId}", game.GetPoints)
		r.With(staff).Post("/points", game.Award)

		r.Get("/tasks", game.ListTasks)
		r.With(staff).Post("/tasks", game.CreateTask)
		r.Post("/tasks/{id}/complete", game.CompleteTask)

		r.Get("/marketplace/items", game.ListItems)
		r.With(staff).Post("/marketplace/items", game.CreateItem)
		r.Post("/marketplace/items/{id}/redeem", game.Redeem)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleAdmin))
			r.Post("/status-memory/reset", admin.ResetStatusMemory)
			r.Post("/poll-cache/invalidate", admin.InvalidatePollCache)
			r.Post("/archive/truncate", admin.TruncateArchive)
			r.Get("/simulator/status", admin.GetSimStatus)
			r.Post("/simulator/start", admin.StartSim)
			r.Post("/simulator/stop", admin.StopSim)
		})
	})
}

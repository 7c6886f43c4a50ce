package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/wfm/internal/agentdir"
	"github.com/dennisdiepolder/monti/wfm/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type App struct {
	simulator *agentdir.Simulator
	ctx       context.Context
	mu        sync.Mutex
	logger    zerolog.Logger
}

func main() {
	// CLI flags
	var (
		port         = flag.String("port", "8081", "Directory and control API port")
		token        = flag.String("token", envOr("FRESHCHAT_API_TOKEN", "dev-token"), "Bearer token clients must send")
		agentCount   = flag.Int("agents", 200, "Total number of agents to generate")
		seed         = flag.Int64("seed", 42, "Seed for generated agents")
		interval     = flag.Duration("interval", 5*time.Second, "Time between presence changes")
		changeRate   = flag.Float64("change-rate", 0.1, "Share of logged-in agents changed per tick")
		autoStart    = flag.Bool("auto-start", false, "Automatically start simulation")
		activeAgents = flag.Int("active", 50, "Number of logged-in agents (if auto-start is true)")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		allowList    = flag.String("write-allowlist", "", "Write an allow-list tracking the generated agents to this file")
	)
	flag.Parse()

	// Setup logger
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "agentdir").
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Generate agents
	agents := agentdir.NewGenerator(*seed, nil).GenerateAgents(*agentCount)
	logger.Info().Int("generated", len(agents)).Int64("seed", *seed).Msg("agents generated")

	if *allowList != "" {
		if err := writeAllowList(*allowList, agents); err != nil {
			logger.Fatal().Err(err).Str("file", *allowList).Msg("failed to write allow-list")
		}
		logger.Info().Str("file", *allowList).Msg("allow-list written")
	}

	dir := agentdir.NewDirectory(agents, *token, logger)

	app := &App{
		simulator: agentdir.NewSimulator(dir, agentdir.SimulatorOptions{
			Interval:   *interval,
			ChangeRate: *changeRate,
		}, time.Now().UnixNano(), logger),
		ctx:    ctx,
		logger: logger,
	}

	controlAPI := agentdir.NewControlAPI(len(agents), logger)
	controlAPI.SetHandlers(app.startSimulation, app.stopSimulation, app.simulator.Stats)

	srv := agentdir.Server(":"+*port, dir, controlAPI)
	go func() {
		if err := agentdir.Serve(ctx, srv, logger); err != nil {
			logger.Fatal().Err(err).Msg("agent directory stopped")
		}
	}()

	// Auto-start if requested
	if *autoStart {
		logger.Info().Int("active_agents", *activeAgents).Msg("auto-starting simulation")
		if err := app.startSimulation(*activeAgents); err != nil {
			logger.Error().Err(err).Msg("failed to auto-start simulation")
		} else {
			controlAPI.MarkRunning(*activeAgents)
		}
	}

	logger.Info().
		Str("directory_url", fmt.Sprintf("http://localhost:%s/v2", *port)).
		Str("control_url", fmt.Sprintf("http://localhost:%s", *port)).
		Msg("agent directory ready")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down agent directory")
	if app.simulator.Running() {
		app.simulator.Stop()
	}
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func (app *App) startSimulation(activeAgents int) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.simulator.Start(app.ctx, activeAgents)
	return nil
}

func (app *App) stopSimulation() error {
	app.mu.Lock()
	defer app.mu.Unlock()

	app.simulator.Stop()
	return nil
}

// writeAllowList tracks every non-supervisor role
func writeAllowList(path string, agents []types.Agent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	roles := []string{"role-agent", "role-senior"}
	if err := agentdir.WriteAllowList(f, agents, roles, agentdir.DefaultStatuses); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

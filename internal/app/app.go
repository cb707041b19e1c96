// Package app wires the session components together and runs the
// interactive loop.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"kodo/internal/client"
	"kodo/internal/complexity"
	"kodo/internal/config"
	"kodo/internal/executor"
	"kodo/internal/git"
	"kodo/internal/logging"
	"kodo/internal/plan"
	"kodo/internal/project"
	"kodo/internal/security"
	"kodo/internal/session"
	"kodo/internal/ui"
	"kodo/internal/validation"
	"kodo/internal/watcher"
)

// App owns the wired component graph for one run.
type App struct {
	cfg        *config.Config
	router     *client.Router
	controller *session.Controller
	watch      *watcher.Watcher
}

// New builds the full component graph. A model initialization failure is
// fatal here; everything else degrades.
func New(ctx context.Context, cfg *config.Config, workDir string) (*App, error) {
	router, err := client.NewRouter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing models: %w", err)
	}

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		router.Close()
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	pathValidator := security.NewPathValidator(absWorkDir)
	gate := security.NewCommandGate(cfg.Tools.TrustedCommands)

	console := ui.NewConsole(cfg.Session.AutoApprove)

	ignore := git.NewIgnore(pathValidator.Root())
	if err := ignore.Load(); err != nil {
		logging.Warn("could not load ignore rules", "error", err)
	}
	watch, err := watcher.New(pathValidator.Root(), ignore, cfg.Watcher)
	if err != nil {
		router.Close()
		return nil, fmt.Errorf("starting workspace watcher: %w", err)
	}
	watch.SetOnChange(func() {
		logging.Debug("workspace changed, project context will be rescanned")
	})

	configDir, err := config.ConfigDir()
	if err != nil {
		router.Close()
		return nil, err
	}
	history := plan.NewHistory(filepath.Join(configDir, "history.jsonl"), cfg.History.MaxEntries)

	s := &session.Session{
		Config:    cfg,
		Router:    router,
		Planner:   plan.NewPlanner(router, pathValidator, console, history, cfg.Planner),
		Executor:  executor.New(router, pathValidator, gate, console, console, cfg, pathValidator.Root()),
		Validator: validation.NewEngine(router, pathValidator, gate, cfg.Validation, cfg.Tools, pathValidator.Root()),
		Assessor:  complexity.NewAssessor(cfg.Complexity),
		History:   history,
		Profiles:  project.NewBuilder(pathValidator.Root(), cfg.Planner.ScanDepth),
		Watcher:   watch,
		UI:        console,
	}

	return &App{
		cfg:        cfg,
		router:     router,
		controller: session.NewController(s),
		watch:      watch,
	}, nil
}

// Run starts the watcher and drives the session until it ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.watch.Start(); err != nil {
		logging.Warn("workspace watcher unavailable", "error", err)
	}
	defer a.watch.Stop()
	defer a.router.Close()

	return a.controller.Run(ctx)
}

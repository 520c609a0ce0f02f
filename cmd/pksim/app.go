package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/config"
	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/orchestrator"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/solver"
	"github.com/san-kum/pksim/internal/storage"
	"github.com/san-kum/pksim/internal/telemetry"
	"github.com/san-kum/pksim/internal/viz"
)

// app is everything a command needs: the persisted session behind an orchestrator, the
// run archive and the ambient logger and telemetry.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	ws       *session.Workspace
	runs     *storage.Store
	o        *orchestrator.Orchestrator
	defaults session.Settings
	session  string
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	name := cfg.UI.Theme
	if theme != "" {
		name = theme
	}
	if err := viz.SetTheme(name); err != nil {
		return nil, err
	}

	rec, err := telemetry.New(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}

	client, err := solver.NewClient(solver.Config{BaseURL: cfg.Service.URL})
	if err != nil {
		return nil, err
	}

	defaults := session.Settings{
		Start:    cfg.Simulation.TStart,
		End:      cfg.Simulation.TEnd,
		Steps:    cfg.Simulation.TSteps,
		LogScale: cfg.Simulation.LogScale,
	}
	ws := session.NewWorkspace(dataDir)
	state, err := ws.Load(defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %s: %w", dataDir, err)
	}
	if state.Model == nil {
		w, err := fitting.ParseWeighting(cfg.Fit.Weighting)
		if err != nil {
			return nil, err
		}
		if err := state.Fit.SetWeighting(w); err != nil {
			return nil, err
		}
	}

	runs := storage.New(filepath.Join(dataDir, "runs"))
	if err := runs.Init(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		ws:       ws,
		runs:     runs,
		defaults: defaults,
		session:  state.ID,
	}
	a.o = orchestrator.New(solver.NewCachedParser(client, cfg.Service.ParseCacheTTL), state,
		orchestrator.WithLogger(log),
		orchestrator.WithRecorder(rec),
		orchestrator.WithTimeouts(cfg.Service.ParseTimeout, cfg.Service.SimulateTimeout, cfg.Service.FitTimeout),
		orchestrator.WithDefaults(defaults),
	)
	a.o.Subscribe(a.archive)
	return a, nil
}

// archive keeps every successful request in the run archive.
func (a *app) archive(ev orchestrator.Event) {
	if ev.Type != orchestrator.EventSucceeded {
		return
	}
	var (
		id  string
		err error
	)
	switch ev.State.Kind {
	case orchestrator.Simulate:
		id, err = a.runs.SaveSimulation(a.session, ev.SimulateRequest, ev.Simulation)
	case orchestrator.Fit:
		id, err = a.runs.SaveFit(a.session, ev.FitRequest, ev.Fit)
	}
	if err != nil {
		a.log.Error("failed to archive run", "kind", ev.State.Kind, "error", err)
		return
	}
	a.log.Debug("run archived", "kind", ev.State.Kind, "id", id)
}

func (a *app) save() error {
	var err error
	a.o.View(func(s *session.State) { err = a.ws.Save(s) })
	if err != nil {
		return fmt.Errorf("failed to save workspace: %w", err)
	}
	return nil
}

// close waits for running requests and flushes telemetry.
func (a *app) close(ctx context.Context) {
	if err := a.o.Close(ctx); err != nil {
		a.log.Warn("shutdown incomplete", "error", err)
	}
}

type action func(ctx context.Context, a *app, args []string) error

// run opens the workspace around fn. With persist the session is saved once fn and
// every request it started have finished.
func run(fn action, persist bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		if err := fn(ctx, a, args); err != nil {
			return err
		}
		if err := a.o.Wait(ctx); err != nil {
			return err
		}
		if persist {
			return a.save()
		}
		return nil
	}
}

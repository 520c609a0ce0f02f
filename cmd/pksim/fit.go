package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/fitting"
	"github.com/san-kum/pksim/internal/orchestrator"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/tui"
	"github.com/san-kum/pksim/internal/viz"
)

func newFitCmd() *cobra.Command {
	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "fit the free parameters to every experiment group",
		Args:  cobra.NoArgs,
		RunE:  run(runFit, true),
	}
	fitCmd.Flags().BoolVar(&interactive, "tui", true, "show interactive progress when attached to a terminal")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "choose free parameters, bounds and weighting",
		Args:  cobra.NoArgs,
		RunE:  run(configureFit, true),
	}
	configCmd.Flags().StringSliceVar(&freeParams, "free", nil, "parameters to estimate")
	configCmd.Flags().StringSliceVar(&fixParams, "fix", nil, "parameters to hold fixed")
	configCmd.Flags().StringArrayVar(&boundsArgs, "bounds", nil, "bounds as name=lo:hi, either side may be empty")
	configCmd.Flags().StringVar(&weighting, "weighting", "", "none, 1/Y or 1/Y2")
	configCmd.Flags().StringSliceVar(&autoBound, "autobound", nil, "set bounds to value/factor..value*factor")
	configCmd.Flags().Float64Var(&boundFactor, "factor", 0, "auto-bound factor (default from config)")

	fitCmd.AddCommand(configCmd)
	return fitCmd
}

func configureFit(_ context.Context, a *app, _ []string) error {
	var w fitting.Weighting
	if weighting != "" {
		var err error
		if w, err = fitting.ParseWeighting(weighting); err != nil {
			return err
		}
	}
	factor := boundFactor
	if factor == 0 {
		factor = a.cfg.Fit.AutoBoundFactor
	}

	return a.o.Update(func(s *session.State) error {
		if s.Model == nil {
			return fmt.Errorf("no model parsed yet")
		}
		for _, name := range freeParams {
			if !s.Model.HasParameter(name) {
				return fmt.Errorf("unknown parameter %q", name)
			}
			s.Fit.SetFree(name, true)
		}
		for _, name := range fixParams {
			s.Fit.SetFree(name, false)
		}
		for _, arg := range boundsArgs {
			name, b, err := parseBounds(arg)
			if err != nil {
				return err
			}
			if err := s.Fit.SetBounds(name, b); err != nil {
				return err
			}
		}
		for _, name := range autoBound {
			applied, err := s.Fit.AutoBound(name, factor)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Printf("%s is 0, bounds left unchanged\n", name)
			}
		}
		if w != "" {
			if err := s.Fit.SetWeighting(w); err != nil {
				return err
			}
		}

		fmt.Printf("weighting: %s\n", s.Fit.Weighting)
		for _, name := range s.Fit.FreeNames(s.Model) {
			b, _ := s.Fit.BoundsOf(name)
			fmt.Printf("  %-12s %s  %s\n", name, viz.FormatValue(s.Fit.Value(name)), b)
		}
		return nil
	})
}

func runFit(ctx context.Context, a *app, _ []string) error {
	var (
		t   *orchestrator.Ticket
		err error
	)
	if interactive && isatty.IsTerminal(os.Stdout.Fd()) {
		t, err = tui.Run(ctx, a.o, orchestrator.Fit, "fit", a.o.SubmitFit, os.Stdout)
	} else {
		t, err = tui.Follow(ctx, a.o, orchestrator.Fit, a.o.SubmitFit, os.Stdout)
	}
	if errors.Is(err, tui.ErrDetached) {
		fmt.Println("waiting for the fit to finish before saving the session")
		if t == nil {
			return a.o.Wait(ctx)
		}
		err = t.Wait(ctx)
	}
	if err != nil {
		return err
	}
	if t == nil {
		return a.o.Wait(ctx)
	}

	a.o.View(func(s *session.State) {
		if s.LatestFit != nil {
			fmt.Println(viz.FitTable(s.LatestFit.Result))
		}
	})

	chained, err := t.Chained()
	if err != nil {
		fmt.Printf("re-simulation with the fitted values not started: %v\n", err)
		return nil
	}
	if chained == nil {
		return nil
	}
	if err := chained.Wait(ctx); err != nil {
		fmt.Printf("re-simulation with the fitted values failed: %v\n", err)
		return nil
	}
	a.o.View(func(s *session.State) {
		fmt.Println(viz.Separator(60))
		fmt.Println(viz.Title.Render("PK summary with the fitted values"))
		fmt.Println(viz.PKTable(s.LatestSimulation.PK))
	})
	return nil
}

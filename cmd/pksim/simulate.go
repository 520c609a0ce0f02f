package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/san-kum/pksim/internal/config"
	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/viz"
)

// simulateChanged reports whether a simulate flag was given explicitly.
var simulateChanged = func(string) bool { return false }

func runSimulate(ctx context.Context, a *app, _ []string) error {
	err := a.o.Update(func(s *session.State) error {
		next := s.Settings
		if preset != "" {
			p := config.GetPreset(preset)
			if p == nil {
				return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
			}
			next.Start, next.End, next.Steps, next.LogScale = p.TStart, p.TEnd, p.TSteps, p.LogScale
		}
		if simulateChanged("start") {
			next.Start = tStart
		}
		if simulateChanged("end") {
			next.End = tEnd
		}
		if simulateChanged("steps") {
			next.Steps = tSteps
		}
		if simulateChanged("log") {
			next.LogScale = logScale
		}
		if simulateChanged("compartments") {
			next.SelectedCompartments = compartments
		}
		return s.SetSettings(next)
	})
	if err != nil {
		return err
	}

	t, err := a.o.SubmitSimulate(ctx)
	if err != nil {
		return err
	}
	if err := t.Wait(ctx); err != nil {
		return err
	}

	a.o.View(func(s *session.State) {
		res := s.LatestSimulation
		fmt.Println(viz.PKTable(res.PK))
		fmt.Println()
		out, err := viz.PlotProfile(res.Profile, s.Settings.SelectedCompartments, overlays(s), viz.PlotOptions{
			Width:    plotWidth,
			Height:   plotHeight,
			LogScale: s.Settings.LogScale,
			Caption:  "simulated profile",
		})
		if err != nil {
			fmt.Println(viz.Subtle.Render(err.Error()))
			return
		}
		fmt.Println(out)
	})
	return nil
}

// overlays returns the mapped columns of selected datasets whose target is plotted.
func overlays(s *session.State) []viz.Overlay {
	var out []viz.Overlay
	for _, d := range s.Datasets.Selected() {
		color := max(slices.Index(observed.Palette, d.Color), 0)
		for _, col := range d.MappedColumns() {
			target, _ := d.Mapping(col)
			if !slices.Contains(s.Settings.SelectedCompartments, target) {
				continue
			}
			values, _ := d.Data.Column(col)
			out = append(out, viz.Overlay{
				Label:  fmt.Sprintf("%s:%s", d.Name, col),
				Color:  color,
				Time:   d.Data.Time,
				Values: values,
			})
		}
	}
	return out
}

func plotProfile(_ context.Context, a *app, args []string) error {
	if len(args) == 1 {
		ts, err := a.runs.LoadProfile(args[0])
		if err != nil {
			return err
		}
		out, err := viz.PlotProfile(ts, nil, nil, viz.PlotOptions{Width: plotWidth, Height: plotHeight, Caption: args[0]})
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	var (
		out string
		err error
	)
	a.o.View(func(s *session.State) {
		var ts *pk.TimeSeries
		if s.LatestSimulation != nil {
			ts = s.LatestSimulation.Profile
		}
		out, err = viz.PlotProfile(ts, s.Settings.SelectedCompartments, overlays(s), viz.PlotOptions{
			Width:    plotWidth,
			Height:   plotHeight,
			LogScale: s.Settings.LogScale,
			Caption:  "simulated profile",
		})
	})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

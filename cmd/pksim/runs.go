package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/storage"
	"github.com/san-kum/pksim/internal/viz"
)

func newRunsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "list archived runs",
		Args:  cobra.NoArgs,
		RunE:  run(listRuns, false),
	}
}

func listRuns(_ context.Context, a *app, _ []string) error {
	runs, err := a.runs.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-19s  %s\n", "ID", "KIND", "TIMESTAMP", "SUMMARY")
	for _, r := range runs {
		summary := fmt.Sprintf("%g..%g, %d points, %d doses", r.TStart, r.TEnd, r.TSteps, r.Doses)
		if r.Kind == storage.KindFit {
			summary = fmt.Sprintf("%d groups, SSR %s, nfev %d", r.Groups, viz.FormatOptional(r.SSRTotal), r.NFev)
		}
		fmt.Printf("%-36s  %-10s  %-19s  %s\n", r.ID, r.Kind, r.Timestamp.Format("2006-01-02 15:04:05"), summary)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "export the latest simulation as CSV",
	}
	profileCmd := &cobra.Command{
		Use:   "profile [csv]",
		Short: "export the simulated profile",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			return exportLatest(a, args[0], func(res *pk.TimeSeries, s pk.Summary, names []string) error {
				return storage.ExportProfile(args[0], res, names)
			})
		}, false),
	}
	pkCmd := &cobra.Command{
		Use:   "pk [csv]",
		Short: "export the PK summary",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			return exportLatest(a, args[0], func(_ *pk.TimeSeries, s pk.Summary, _ []string) error {
				return storage.ExportPK(args[0], s)
			})
		}, false),
	}
	exportCmd.AddCommand(profileCmd, pkCmd)
	return exportCmd
}

func exportLatest(a *app, path string, write func(*pk.TimeSeries, pk.Summary, []string) error) error {
	var err error
	a.o.View(func(s *session.State) {
		if s.LatestSimulation == nil {
			err = fmt.Errorf("no simulation to export: run `pksim simulate` first")
			return
		}
		names := s.Settings.SelectedCompartments
		if !hasAll(s.LatestSimulation.Profile, names) {
			names = nil
		}
		err = write(s.LatestSimulation.Profile, s.LatestSimulation.PK, names)
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func hasAll(ts *pk.TimeSeries, names []string) bool {
	if ts == nil {
		return false
	}
	for _, n := range names {
		if _, ok := ts.Column(n); !ok {
			return false
		}
	}
	return true
}

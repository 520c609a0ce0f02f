package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/viz"
)

func newDataCmd() *cobra.Command {
	dataCmd := &cobra.Command{
		Use:   "data",
		Short: "manage observed datasets",
	}

	addCmd := &cobra.Command{
		Use:   "add [csv]...",
		Short: "ingest observation files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(addData, true),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list datasets",
		Args:  cobra.NoArgs,
		RunE: run(func(_ context.Context, a *app, _ []string) error {
			a.o.View(func(s *session.State) { fmt.Println(viz.DatasetTable(s.Datasets.All())) })
			return nil
		}, false),
	}

	rmCmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "remove a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.o.Update(func(s *session.State) error { return s.Datasets.Remove(id) })
		}, true),
	}

	selectCmd := &cobra.Command{
		Use:   "select [id]",
		Short: "include a dataset in plots and fits",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.o.Update(func(s *session.State) error { return s.Datasets.SetSelected(id, !deselect) })
		}, true),
	}
	selectCmd.Flags().BoolVar(&deselect, "off", false, "deselect instead")

	mapCmd := &cobra.Command{
		Use:   "map [id] [column] [variable|-]",
		Short: "map a data column to a model variable, - to unmap",
		Args:  cobra.ExactArgs(3),
		RunE:  run(mapColumn, true),
	}

	dataCmd.AddCommand(addCmd, listCmd, rmCmd, selectCmd, mapCmd)
	return dataCmd
}

func addData(ctx context.Context, a *app, args []string) error {
	var results []observed.Result
	_ = a.o.Update(func(s *session.State) error {
		results = s.Datasets.IngestFiles(ctx, args, s.Model)
		return nil
	})

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Printf("%s %v\n", viz.StatusFailed.Render("✗"), res.Err)
			continue
		}
		fmt.Printf("%s %s: dataset %d, %d points, %d columns mapped\n",
			viz.StatusOK.Render("✓"), res.File, res.Dataset.ID, res.Dataset.Data.Len(), len(res.Dataset.MappedColumns()))
		for _, w := range res.Warnings {
			a.log.Warn("row dropped", "file", res.File, "row", w.Row, "reason", w.Reason)
			fmt.Printf("    %s\n", viz.Subtle.Render(w.String()))
		}
	}
	if failed == len(results) {
		return fmt.Errorf("no file could be ingested")
	}
	return nil
}

func mapColumn(_ context.Context, a *app, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	variable := args[2]
	if variable == "-" {
		variable = ""
	}
	return a.o.Update(func(s *session.State) error { return s.SetMapping(id, args[1], variable) })
}

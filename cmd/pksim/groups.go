package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/viz"
)

func newGroupCmd() *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "manage the experiment groups of a fit",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "add an experiment group",
		Args:  cobra.NoArgs,
		RunE:  run(addGroup, true),
	}
	addCmd.Flags().IntVar(&groupData, "data", 0, "dataset id (defaults to the only selected dataset)")

	rmCmd := &cobra.Command{
		Use:   "rm [group]",
		Short: "remove a group",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.o.Update(func(s *session.State) error { return s.Groups.RemoveGroup(id) })
		}, true),
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list groups",
		Args:  cobra.NoArgs,
		RunE: run(func(_ context.Context, a *app, _ []string) error {
			a.o.View(func(s *session.State) { fmt.Println(viz.GroupTable(s.Groups.Groups(), s.Datasets)) })
			return nil
		}, false),
	}

	dataCmd := &cobra.Command{
		Use:   "data [group] [dataset]",
		Short: "choose the dataset of a group",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			gid, err := parseID(args[0])
			if err != nil {
				return err
			}
			did, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.o.Update(func(s *session.State) error { return s.Groups.SetDataset(gid, did) })
		}, true),
	}

	doseCmd := &cobra.Command{
		Use:   "dose",
		Short: "manage the doses of a group",
	}
	doseAddCmd := &cobra.Command{
		Use:   "add [group]",
		Short: "add a dose to a group",
		Args:  cobra.ExactArgs(1),
		RunE:  run(addGroupDose, true),
	}
	addDoseFlags(doseAddCmd)
	doseRmCmd := &cobra.Command{
		Use:   "rm [group] [dose]",
		Short: "remove a dose from a group",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			gid, err := parseID(args[0])
			if err != nil {
				return err
			}
			did, err := parseID(args[1])
			if err != nil {
				return err
			}
			return a.o.Update(func(s *session.State) error { return s.Groups.RemoveDose(gid, did) })
		}, true),
	}
	doseCmd.AddCommand(doseAddCmd, doseRmCmd)

	groupCmd.AddCommand(addCmd, rmCmd, listCmd, dataCmd, doseCmd)
	return groupCmd
}

func addGroup(_ context.Context, a *app, _ []string) error {
	var id int
	err := a.o.Update(func(s *session.State) error {
		id = s.Groups.AddGroup(s.Datasets)
		if groupData != 0 {
			return s.Groups.SetDataset(id, groupData)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Printf("group %d added\n", id)
	return nil
}

func addGroupDose(_ context.Context, a *app, args []string) error {
	gid, err := parseID(args[0])
	if err != nil {
		return err
	}
	p, err := doseFromFlags()
	if err != nil {
		return err
	}
	var id int
	if err := a.o.Update(func(s *session.State) error {
		id, err = s.AddGroupDose(gid, p)
		return err
	}); err != nil {
		return err
	}
	fmt.Printf("group %d dose #%d: %s\n", gid, id, p)
	return nil
}

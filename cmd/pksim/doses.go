package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/viz"
)

func addDoseFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&doseCompartment, "compartment", "", "target compartment")
	cmd.Flags().StringVar(&doseType, "type", string(dosing.Bolus), "bolus or infusion")
	cmd.Flags().Float64Var(&doseAmount, "amount", 0, "amount administered")
	cmd.Flags().Float64Var(&doseStart, "start", 0, "administration time")
	cmd.Flags().Float64Var(&doseDuration, "duration", 0, "infusion duration")
	cmd.Flags().Float64Var(&doseEvery, "every", 0, "repeat interval")
	cmd.Flags().Float64Var(&doseUntil, "until", 0, "repeat until this time")
	_ = cmd.MarkFlagRequired("compartment")
	_ = cmd.MarkFlagRequired("amount")
}

// doseFromFlags builds the protocol described by the dose flags. A zero interval or end
// means no repetition.
func doseFromFlags() (dosing.Protocol, error) {
	kind, err := dosing.ParseKind(doseType)
	if err != nil {
		return dosing.Protocol{}, pk.Invalid("dose", err)
	}
	p := dosing.Protocol{
		Compartment: doseCompartment,
		Kind:        kind,
		Amount:      doseAmount,
		StartTime:   doseStart,
		Duration:    doseDuration,
	}
	if doseEvery != 0 {
		every := doseEvery
		p.RepeatEvery = &every
	}
	if doseUntil != 0 {
		until := doseUntil
		p.RepeatUntil = &until
	}
	return p.Normalize(), nil
}

func newDoseCmd() *cobra.Command {
	doseCmd := &cobra.Command{
		Use:   "dose",
		Short: "manage the doses of the forward simulation",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "add a dose",
		Args:  cobra.NoArgs,
		RunE:  run(addDose, true),
	}
	addDoseFlags(addCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list doses",
		Args:  cobra.NoArgs,
		RunE: run(func(_ context.Context, a *app, _ []string) error {
			a.o.View(func(s *session.State) { fmt.Println(viz.DoseTable(s.Doses.Entries())) })
			return nil
		}, false),
	}

	rmCmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "remove a dose",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.o.Update(func(s *session.State) error { return s.Doses.Remove(id) })
		}, true),
	}

	doseCmd.AddCommand(addCmd, listCmd, rmCmd)
	return doseCmd
}

func addDose(_ context.Context, a *app, _ []string) error {
	p, err := doseFromFlags()
	if err != nil {
		return err
	}
	var id int
	if err := a.o.Update(func(s *session.State) error {
		id, err = s.AddDose(p)
		return err
	}); err != nil {
		return err
	}
	fmt.Printf("dose #%d: %s\n", id, p)
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/session"
	"github.com/san-kum/pksim/internal/viz"
)

func newModelCmd() *cobra.Command {
	modelCmd := &cobra.Command{
		Use:   "model",
		Short: "parse and inspect the model equations",
	}

	parseCmd := &cobra.Command{
		Use:   "parse [file|-]",
		Short: "parse equations from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE:  run(parseModel, true),
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "show compartments, parameters and their values",
		Args:  cobra.NoArgs,
		RunE:  run(showModel, false),
	}

	moveCmd := &cobra.Command{
		Use:   "move [symbol]",
		Short: "reclassify a symbol as a compartment or a parameter",
		Args:  cobra.ExactArgs(1),
		RunE:  run(moveSymbol, true),
	}
	moveCmd.Flags().StringVar(&moveTo, "to", "parameter", "compartment or parameter")

	modelCmd.AddCommand(parseCmd, showCmd, moveCmd)
	return modelCmd
}

func parseModel(ctx context.Context, a *app, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	m, err := a.o.Parse(ctx, string(data))
	if err != nil {
		return err
	}
	fmt.Printf("compartments: %s\n", strings.Join(m.Compartments, ", "))
	fmt.Printf("parameters:   %s\n", strings.Join(m.Parameters, ", "))
	for name, expr := range m.DerivedExpressions {
		fmt.Printf("derived:      %s = %s\n", name, expr)
	}
	return nil
}

func showModel(_ context.Context, a *app, _ []string) error {
	a.o.View(func(s *session.State) {
		if s.Model == nil {
			fmt.Println("no model parsed yet: run `pksim model parse <file>`")
			return
		}
		fmt.Println(viz.Title.Render("compartments"))
		for _, c := range s.Model.Compartments {
			fmt.Printf("  %-12s initial %s\n", c, viz.FormatValue(s.Initials[c]))
		}
		fmt.Println(viz.Title.Render("parameters"))
		for _, p := range s.Model.Parameters {
			line := fmt.Sprintf("  %-12s %s", p, viz.FormatValue(s.Fit.Value(p)))
			if s.Fit.IsFree(p) {
				b, _ := s.Fit.BoundsOf(p)
				line += viz.MetricLabel.Render("  free " + b.String())
			}
			if e, ok := s.Estimates[p]; ok && e.Stderr != nil {
				line += viz.Subtle.Render("  ± " + viz.FormatValue(*e.Stderr))
			}
			fmt.Println(line)
		}
		if len(s.Model.DerivedExpressions) > 0 {
			fmt.Println(viz.Title.Render("derived"))
			for name, expr := range s.Model.DerivedExpressions {
				fmt.Printf("  %-12s %s\n", name, expr)
			}
		}
		fmt.Printf("weighting: %s\n", s.Fit.Weighting)
	})
	return nil
}

func moveSymbol(_ context.Context, a *app, args []string) error {
	var toCompartment bool
	switch moveTo {
	case "compartment":
		toCompartment = true
	case "parameter":
	default:
		return fmt.Errorf("--to must be compartment or parameter, got %q", moveTo)
	}
	if err := a.o.Update(func(s *session.State) error { return s.MoveSymbol(args[0], toCompartment) }); err != nil {
		return err
	}
	fmt.Printf("%s is now a %s\n", args[0], moveTo)
	return nil
}

func newSetCmd() *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "set initial amounts and parameter values",
	}
	initialCmd := &cobra.Command{
		Use:   "initial name=value...",
		Short: "set initial amounts of compartments",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(setValues((*session.State).SetInitial), true),
	}
	paramCmd := &cobra.Command{
		Use:   "param name=value...",
		Short: "set parameter values (the next fit starts from them)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  run(setValues((*session.State).SetParameter), true),
	}
	setCmd.AddCommand(initialCmd, paramCmd)
	return setCmd
}

// setValues applies the assignments in order. A failing command is not saved, so the
// workspace keeps either all of them or none.
func setValues(set func(*session.State, string, float64) error) action {
	return func(_ context.Context, a *app, args []string) error {
		values, err := parseAssignments(args)
		if err != nil {
			return err
		}
		return a.o.Update(func(s *session.State) error {
			for _, v := range values {
				if err := set(s, v.name, v.value); err != nil {
					return err
				}
			}
			return nil
		})
	}
}

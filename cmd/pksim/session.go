package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/session"
)

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "save and load session documents (.json, .yaml)",
	}

	saveCmd := &cobra.Command{
		Use:   "save [file]",
		Short: "save equations, values, doses and settings",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(_ context.Context, a *app, args []string) error {
			var doc session.Document
			a.o.View(func(s *session.State) { doc = s.Document() })
			if err := session.SaveDocument(args[0], doc); err != nil {
				return err
			}
			fmt.Printf("session saved to %s\n", args[0])
			return nil
		}, false),
	}

	loadCmd := &cobra.Command{
		Use:   "load [file]",
		Short: "replay a session document into the workspace",
		Args:  cobra.ExactArgs(1),
		RunE:  run(loadSession, true),
	}

	sessionCmd.AddCommand(saveCmd, loadCmd)
	return sessionCmd
}

func loadSession(ctx context.Context, a *app, args []string) error {
	doc, err := session.LoadDocument(args[0])
	if err != nil {
		return err
	}
	skipped, err := a.o.LoadDocument(ctx, doc)
	if err != nil {
		return err
	}
	if len(skipped.Initials) > 0 {
		fmt.Printf("skipped initials without a compartment: %s\n", strings.Join(skipped.Initials, ", "))
	}
	if len(skipped.Parameters) > 0 {
		fmt.Printf("skipped values without a parameter: %s\n", strings.Join(skipped.Parameters, ", "))
	}
	fmt.Printf("session loaded from %s\n", args[0])
	return nil
}

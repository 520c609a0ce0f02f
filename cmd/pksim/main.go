package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/pksim/internal/config"
)

var (
	dataDir    string
	configFile string
	theme      string

	// simulate
	preset       string
	tStart       float64
	tEnd         float64
	tSteps       int
	compartments []string
	logScale     bool

	// dose
	doseCompartment string
	doseType        string
	doseAmount      float64
	doseStart       float64
	doseDuration    float64
	doseEvery       float64
	doseUntil       float64

	// group, data, model
	groupData   int
	deselect    bool
	moveTo      string
	plotWidth   int
	plotHeight  int
	interactive bool

	// fit config
	freeParams  []string
	fixParams   []string
	boundsArgs  []string
	weighting   string
	autoBound   []string
	boundFactor float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pksim",
		Short:         "pharmacokinetic simulation and fitting workbench",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pksim", "workspace directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "", "colour theme (clinical, minimal, retro); overrides ui.theme")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "simulate the current session",
		Args:  cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			simulateChanged = cmd.Flags().Changed
		},
		RunE: run(runSimulate, true),
	}
	simulateCmd.Flags().StringVar(&preset, "preset", "", "use a simulation window preset")
	simulateCmd.Flags().Float64Var(&tStart, "start", 0, "start time")
	simulateCmd.Flags().Float64Var(&tEnd, "end", config.DefaultTEnd, "end time")
	simulateCmd.Flags().IntVar(&tSteps, "steps", config.DefaultTSteps, "number of time points, both ends included")
	simulateCmd.Flags().StringSliceVar(&compartments, "compartments", nil, "compartments to simulate and plot")
	simulateCmd.Flags().BoolVar(&logScale, "log", false, "plot on a log scale")
	simulateCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	simulateCmd.Flags().IntVar(&plotHeight, "height", 15, "plot height")

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the latest simulation, or an archived run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run(plotProfile, false),
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 15, "plot height")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list simulation window presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-8s %g..%g, %d points\n", name, p.TStart, p.TEnd, p.TSteps)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		newModelCmd(),
		newSetCmd(),
		newDoseCmd(),
		newGroupCmd(),
		newDataCmd(),
		newFitCmd(),
		newSessionCmd(),
		newRunsCmd(),
		newExportCmd(),
		simulateCmd,
		plotCmd,
		presetsCmd,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

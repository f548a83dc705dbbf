package main

import (
	"fmt"

	"dam-stability/internal/dam"
	"dam-stability/internal/observability"

	"github.com/spf13/cobra"
)

const appVersion = "0.3.0"

type globalFlags struct {
	mode     string
	friction float64
	jsonOut  bool
	verbose  bool
}

func (g *globalFlags) evaluator() (*dam.Evaluator, error) {
	mode, err := dam.ParseFactorMode(g.mode)
	if err != nil {
		return nil, err
	}
	return dam.NewEvaluator(mode, g.friction), nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "damcalc",
		Short:        "Gravity dam stability calculator",
		Version:      appVersion,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := observability.InitCLILogger(g.verbose); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("damcalc v{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.mode, "mode", string(dam.FactorModeFixed), "Safety factor mode: fixed or computed")
	pf.Float64Var(&g.friction, "default-friction", dam.DefaultFriction, "Friction coefficient used in computed mode when none is given")
	pf.BoolVar(&g.jsonOut, "json", false, "Print JSON instead of text")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Log progress to stderr")

	cmd.AddCommand(newEvaluateCmd(g), newImportCmd(g))
	return cmd
}

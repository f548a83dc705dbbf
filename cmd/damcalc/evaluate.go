package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"dam-stability/internal/analysis"
	"dam-stability/internal/assessment"
	"dam-stability/internal/dam"
	"dam-stability/internal/observability"
	"dam-stability/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type evaluateFlags struct {
	file    string
	analyze bool
	url     string
	timeout time.Duration
	pdf     string
	xlsx    string
}

// fieldFlags maps each form field to its flag name.
var fieldFlags = []struct {
	field dam.Field
	flag  string
	usage string
}{
	{dam.FieldHeight, "height", "Dam height (m)"},
	{dam.FieldWidth, "width", "Dam base width (m)"},
	{dam.FieldWaterLevel, "water-level", "Upstream water level (m)"},
	{dam.FieldMaterialDensity, "density", "Material density (kg/m³)"},
	{dam.FieldFrictionCoefficient, "friction", "Base friction coefficient (computed mode)"},
}

func newEvaluateCmd(g *globalFlags) *cobra.Command {
	var (
		f      evaluateFlags
		values = make(map[dam.Field]*string, len(fieldFlags))
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the stability of one dam",
		Long: `Evaluate computes the dam weight, hydrostatic pressure and resisting
moment, then reports the sliding and overturning safety factors.

Values are taken as typed: an empty value counts as 0 and anything that
is not a number yields NaN.

Examples:
  damcalc evaluate --height 10 --width 4 --water-level 5 --density 2400
  damcalc evaluate --file dam.yaml --mode computed --pdf report.pdf
  damcalc evaluate --file dam.yaml --analyze --endpoint http://localhost:3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := loadInput(f.file)
			if err != nil {
				return err
			}
			for _, ff := range fieldFlags {
				if cmd.Flags().Changed(ff.flag) {
					if in, err = in.With(ff.field, *values[ff.field]); err != nil {
						return err
					}
				}
			}

			e, err := g.evaluator()
			if err != nil {
				return err
			}
			return runEvaluate(cmd.Context(), cmd.OutOrStdout(), e, in, f, g.jsonOut)
		},
	}

	for _, ff := range fieldFlags {
		values[ff.field] = cmd.Flags().String(ff.flag, "", ff.usage)
	}
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "YAML file with the input fields")
	cmd.Flags().BoolVar(&f.analyze, "analyze", false, "Request a narrative from the analysis service")
	cmd.Flags().StringVar(&f.url, "endpoint", "http://localhost:3000", "Analysis service base URL")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Analysis request timeout (0 = none)")
	cmd.Flags().StringVar(&f.pdf, "pdf", "", "Write a PDF report to this path")
	cmd.Flags().StringVar(&f.xlsx, "xlsx", "", "Write an XLSX report to this path")

	return cmd
}

// loadInput reads a YAML input file. An empty path yields an empty form.
func loadInput(path string) (dam.InputState, error) {
	var in dam.InputState
	if path == "" {
		return in, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return in, fmt.Errorf("read input file: %w", err)
	}
	if err := yaml.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("parse input file %s: %w", path, err)
	}
	return in, nil
}

func runEvaluate(ctx context.Context, out io.Writer, e *dam.Evaluator, in dam.InputState, f evaluateFlags, jsonOut bool) error {
	logger := observability.Logger

	ev := e.Evaluate(in)
	logger.Info("evaluated", zap.String("status", ev.Result.Status), zap.String("factor_mode", string(ev.Mode)))

	var outcome analysis.Outcome
	if f.analyze {
		client := analysis.NewClient(f.url, f.timeout)
		logger.Info("requesting analysis", zap.String("endpoint", client.Endpoint()))

		outcome = analysis.Run(ctx, client, ev)
		if !outcome.OK() {
			logger.Error("analysis request failed", zap.Error(outcome.Err))
		}
	}

	rec := assessment.NewRecord(assessment.SourceCLI, ev, outcome.Narrative, outcome.Err)

	if f.pdf != "" {
		if err := writeFile(f.pdf, rec, report.WritePDF); err != nil {
			return err
		}
		logger.Info("wrote pdf report", zap.String("path", f.pdf))
	}
	if f.xlsx != "" {
		if err := writeFile(f.xlsx, rec, report.WriteXLSX); err != nil {
			return err
		}
		logger.Info("wrote xlsx report", zap.String("path", f.xlsx))
	}

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	printEvaluation(out, ev)
	if f.analyze {
		printAnalysis(out, outcome)
	}
	return nil
}

func writeFile(path string, rec assessment.Record, render func(io.Writer, assessment.Record) error) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	return render(file, rec)
}

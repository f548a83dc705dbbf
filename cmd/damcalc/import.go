package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"dam-stability/internal/assessment"
	"dam-stability/internal/observability"
	"dam-stability/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	var traces bool

	cmd := &cobra.Command{
		Use:   "import FILE.xlsx",
		Short: "Evaluate every row of an xlsx workbook",
		Long: `Import reads the first sheet of a workbook. The first row is a header;
the columns are height, width, water level, material density and friction
coefficient. Every non-blank row is evaluated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.evaluator()
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer file.Close()

			rows, err := report.ImportXLSX(file)
			if err != nil {
				return err
			}
			observability.Logger.Info("workbook read", zap.String("path", args[0]), zap.Int("rows", len(rows)))

			recs := make([]assessment.Record, 0, len(rows))
			for _, row := range rows {
				recs = append(recs, assessment.NewRecord(assessment.SourceImport, e.Evaluate(row.Input), "", nil))
			}

			out := cmd.OutOrStdout()
			if g.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(recs)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ROW\tWEIGHT (kg)\tPRESSURE (N/m²)\tMOMENT (Nm)\tSLIDING\tOVERTURNING\tSTATUS")
			for i, rec := range recs {
				q, res := rec.Evaluation.Quantities, rec.Evaluation.Result
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					rows[i].Line, q.Weight.Fixed(), q.WaterPressure.Fixed(), q.ResistingMoment.Fixed(),
					res.SlidingFactor, res.OverturningFactor, res.Status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if traces {
				for i, rec := range recs {
					fmt.Fprintf(out, "\nRow %d\n", rows[i].Line)
					printEvaluation(out, rec.Evaluation)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&traces, "steps", true, "Print the calculation steps of every row")
	return cmd
}

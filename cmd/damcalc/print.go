package main

import (
	"fmt"
	"io"
	"strings"

	"dam-stability/internal/analysis"
	"dam-stability/internal/dam"
)

func printEvaluation(w io.Writer, ev dam.Evaluation) {
	for _, step := range ev.Steps {
		fmt.Fprintln(w, step.Title)
		for _, line := range strings.Split(step.Calculation, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status: %s (sliding %s, overturning %s)\n",
		ev.Result.Status, ev.Result.SlidingFactor, ev.Result.OverturningFactor)
}

func printAnalysis(w io.Writer, outcome analysis.Outcome) {
	fmt.Fprintln(w)
	if !outcome.OK() {
		fmt.Fprintln(w, "Analysis unavailable.")
		return
	}
	fmt.Fprintln(w, "Analysis:")
	fmt.Fprintln(w, outcome.Narrative)
}

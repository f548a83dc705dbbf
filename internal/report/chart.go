package report

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"dam-stability/internal/dam"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoChart is returned when the factors cannot be plotted.
var ErrNoChart = errors.New("factors are not finite")

// chartCeiling bounds the plotted bar heights. Factors beyond it are drawn at
// the ceiling with their value in the label.
const chartCeiling = 10.0

// FactorChart renders the two safety factors next to their minimums as a PNG
// bar chart. Factors at or above their minimum are drawn green, others red.
func FactorChart(res dam.StabilityResult) ([]byte, error) {
	if !res.SlidingFactor.IsFinite() || !res.OverturningFactor.IsFinite() {
		return nil, ErrNoChart
	}
	sliding, slidingLabel := plotted(res.SlidingFactor, "Sliding")
	overturning, overturningLabel := plotted(res.OverturningFactor, "Overturning")

	top := math.Max(3, math.Max(sliding, overturning)*1.1)

	graph := chart.BarChart{
		Title:      "Safety factors",
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Width:      640,
		Height:     360,
		BarWidth:   80,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: math.Min(0, math.Min(sliding, overturning)), Max: top},
		},
		Bars: []chart.Value{
			{Label: slidingLabel, Value: sliding, Style: barStyle(factorColor(sliding, dam.MinSlidingFactor))},
			{Label: "Sliding min", Value: dam.MinSlidingFactor, Style: barStyle(chart.ColorAlternateGray)},
			{Label: overturningLabel, Value: overturning, Style: barStyle(factorColor(overturning, dam.MinOverturningFactor))},
			{Label: "Overturning min", Value: dam.MinOverturningFactor, Style: barStyle(chart.ColorAlternateGray)},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render factor chart: %w", err)
	}
	return buf.Bytes(), nil
}

// plotted clamps a factor to ±chartCeiling and names the clamped value in the
// label.
func plotted(q dam.Quantity, label string) (float64, string) {
	v := q.Float()
	c := math.Max(-chartCeiling, math.Min(chartCeiling, v))
	if c != v {
		label += " (" + q.String() + ")"
	}
	return c, label
}

func factorColor(factor, minimum float64) drawing.Color {
	if factor >= minimum {
		return chart.ColorGreen
	}
	return chart.ColorRed
}

func barStyle(col drawing.Color) chart.Style {
	return chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1}
}

package dam

import (
	"fmt"
	"math"
	"strings"
)

// Physical constants used by the evaluator.
const (
	WaterDensity = 1000.0 // kg/m³
	Gravity      = 9.81   // m/s²
)

// Fixed factors reported in FactorModeFixed.
const (
	FixedSlidingFactor     = 1.5
	FixedOverturningFactor = 2.1
)

// Minimum factors for a Stable status in FactorModeComputed.
const (
	MinSlidingFactor     = 1.5
	MinOverturningFactor = 2.0
)

// DefaultFriction is the friction coefficient used in FactorModeComputed when
// the form leaves it blank.
const DefaultFriction = 0.7

// Step titles, in evaluation order.
const (
	StepForces        = "Forces Calculation"
	StepHydrostatic   = "Hydrostatic Pressure"
	StepMoment        = "Moment Calculations"
	StepSafetyFactors = "Safety Factors"
)

// FactorMode selects how the safety factors are obtained.
type FactorMode string

const (
	// FactorModeFixed reports the constant factors 1.5 / 2.1 / Stable for
	// every input.
	FactorModeFixed FactorMode = "fixed"
	// FactorModeComputed derives the factors from the geometry and loads.
	FactorModeComputed FactorMode = "computed"
)

// ParseFactorMode validates a mode name. An empty name selects
// FactorModeFixed.
func ParseFactorMode(s string) (FactorMode, error) {
	switch FactorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FactorModeFixed:
		return FactorModeFixed, nil
	case FactorModeComputed:
		return FactorModeComputed, nil
	}
	return "", fmt.Errorf("unknown factor mode %q (want %q or %q)", s, FactorModeFixed, FactorModeComputed)
}

// Evaluator runs the stability calculation sequence.
type Evaluator struct {
	Mode FactorMode
	// Friction replaces a blank friction coefficient in FactorModeComputed.
	// Zero means DefaultFriction.
	Friction float64
}

// NewEvaluator returns an Evaluator for mode.
func NewEvaluator(mode FactorMode, friction float64) *Evaluator {
	return &Evaluator{Mode: mode, Friction: friction}
}

// Evaluate runs the calculation sequence with the fixed factors.
func Evaluate(in InputState) Evaluation {
	return (&Evaluator{Mode: FactorModeFixed}).Evaluate(in)
}

// Evaluate derives the weight, hydrostatic pressure, resisting moment and
// safety factors for in. It never fails: unparseable or degenerate input
// yields NaN or infinite values that are carried through to the steps.
func (e *Evaluator) Evaluate(in InputState) Evaluation {
	height := ParseNumber(in.Height)
	width := ParseNumber(in.Width)
	waterLevel := ParseNumber(in.WaterLevel)
	density := ParseNumber(in.MaterialDensity)

	weight := height * width * density
	waterPressure := 0.5 * WaterDensity * Gravity * math.Pow(waterLevel, 2)
	resistingMoment := weight * (width / 2)

	steps := make([]CalculationStep, 0, 4)

	steps = append(steps, CalculationStep{
		Title: StepForces,
		Icon:  "arrows-up-down",
		Calculation: fmt.Sprintf("W = Height × Width × Density = %s × %s × %s = %s kg",
			in.Height, in.Width, in.MaterialDensity, FormatFixed(weight)),
	})

	steps = append(steps, CalculationStep{
		Title: StepHydrostatic,
		Icon:  "water",
		Calculation: fmt.Sprintf("P = ½ × ρ × g × h² = ½ × 1000 × 9.81 × %s² = %s N/m²",
			in.WaterLevel, FormatFixed(waterPressure)),
	})

	steps = append(steps, CalculationStep{
		Title: StepMoment,
		Icon:  "sync",
		Calculation: fmt.Sprintf("Mr = W × (Width/2) = %s × (%s/2) = %s Nm",
			FormatFixed(weight), in.Width, FormatFixed(resistingMoment)),
	})

	var (
		result StabilityResult
		trace  string
	)
	switch e.Mode {
	case FactorModeComputed:
		result, trace = e.computedFactors(in, weight, waterPressure, resistingMoment, waterLevel)
	default:
		result = StabilityResult{
			SlidingFactor:     FixedSlidingFactor,
			OverturningFactor: FixedOverturningFactor,
			Status:            StatusStable,
		}
		trace = fmt.Sprintf("Sliding Factor = %s\nOverturning Factor = %s",
			result.SlidingFactor, result.OverturningFactor)
	}

	steps = append(steps, CalculationStep{
		Title:       StepSafetyFactors,
		Icon:        "balance-scale",
		Calculation: trace,
	})

	mode := e.Mode
	if mode == "" {
		mode = FactorModeFixed
	}

	return Evaluation{
		Input: in,
		Mode:  mode,
		Quantities: Quantities{
			Weight:          Quantity(weight),
			WaterPressure:   Quantity(waterPressure),
			ResistingMoment: Quantity(resistingMoment),
		},
		Result: result,
		Steps:  steps,
	}
}

// computedFactors treats the hydrostatic value as the horizontal thrust per
// unit width, acting at a third of the water depth.
func (e *Evaluator) computedFactors(in InputState, weight, thrust, resistingMoment, waterLevel float64) (StabilityResult, string) {
	friction := e.Friction
	if friction == 0 {
		friction = DefaultFriction
	}
	frictionText := FormatNumber(friction)
	if strings.TrimSpace(in.FrictionCoefficient) != "" {
		friction = ParseNumber(in.FrictionCoefficient)
		frictionText = in.FrictionCoefficient
	}

	sliding := RoundFixed(friction * weight * Gravity / thrust)
	overturning := RoundFixed(resistingMoment * Gravity / (thrust * waterLevel / 3))

	result := StabilityResult{
		SlidingFactor:     Quantity(sliding),
		OverturningFactor: Quantity(overturning),
		Status:            statusFor(sliding, overturning),
	}

	trace := fmt.Sprintf("Sliding Factor = μ × W × g / P = %s × %s × 9.81 / %s = %s\n"+
		"Overturning Factor = Mr × g / (P × h/3) = %s × 9.81 / (%s × %s/3) = %s",
		frictionText, FormatFixed(weight), FormatFixed(thrust), FormatFixed(sliding),
		FormatFixed(resistingMoment), FormatFixed(thrust), in.WaterLevel, FormatFixed(overturning))

	return result, trace
}

func statusFor(sliding, overturning float64) string {
	switch {
	case math.IsNaN(sliding) || math.IsNaN(overturning):
		return StatusIndeterminate
	case sliding >= MinSlidingFactor && overturning >= MinOverturningFactor:
		return StatusStable
	default:
		return StatusUnstable
	}
}

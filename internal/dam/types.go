package dam

import (
	"encoding/json"
	"fmt"
	"math"
)

// Field names an editable InputState field. The values match the form field
// names and the JSON keys.
type Field string

const (
	FieldHeight              Field = "height"
	FieldWidth               Field = "width"
	FieldWaterLevel          Field = "waterLevel"
	FieldMaterialDensity     Field = "materialDensity"
	FieldFrictionCoefficient Field = "frictionCoefficient"
)

// Fields lists every editable field in form order.
var Fields = []Field{
	FieldHeight,
	FieldWidth,
	FieldWaterLevel,
	FieldMaterialDensity,
	FieldFrictionCoefficient,
}

// InputState holds the raw text of the assessment form. Values are kept as
// entered and only coerced to numbers when evaluated.
type InputState struct {
	Height              string `json:"height" yaml:"height"`
	Width               string `json:"width" yaml:"width"`
	WaterLevel          string `json:"waterLevel" yaml:"waterLevel"`
	MaterialDensity     string `json:"materialDensity" yaml:"materialDensity"`
	FrictionCoefficient string `json:"frictionCoefficient" yaml:"frictionCoefficient"`
}

// With returns a copy of s with field set to value.
func (s InputState) With(field Field, value string) (InputState, error) {
	switch field {
	case FieldHeight:
		s.Height = value
	case FieldWidth:
		s.Width = value
	case FieldWaterLevel:
		s.WaterLevel = value
	case FieldMaterialDensity:
		s.MaterialDensity = value
	case FieldFrictionCoefficient:
		s.FrictionCoefficient = value
	default:
		return s, fmt.Errorf("unknown field %q", field)
	}
	return s, nil
}

// Get returns the raw text of field.
func (s InputState) Get(field Field) (string, error) {
	switch field {
	case FieldHeight:
		return s.Height, nil
	case FieldWidth:
		return s.Width, nil
	case FieldWaterLevel:
		return s.WaterLevel, nil
	case FieldMaterialDensity:
		return s.MaterialDensity, nil
	case FieldFrictionCoefficient:
		return s.FrictionCoefficient, nil
	}
	return "", fmt.Errorf("unknown field %q", field)
}

// IsEmpty reports whether no field has been filled in.
func (s InputState) IsEmpty() bool {
	return s == InputState{}
}

// Quantity is a computed value that may be non-finite. It encodes to JSON as a
// number when finite and as "NaN", "Infinity" or "-Infinity" otherwise.
type Quantity float64

// Float returns q as a float64.
func (q Quantity) Float() float64 { return float64(q) }

// Fixed renders q with two decimals.
func (q Quantity) Fixed() string { return FormatFixed(float64(q)) }

// String renders q in shortest form.
func (q Quantity) String() string { return FormatNumber(float64(q)) }

// IsFinite reports whether q is neither NaN nor infinite.
func (q Quantity) IsFinite() bool {
	f := float64(q)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.IsFinite() {
		return json.Marshal(q.String())
	}
	return json.Marshal(float64(q))
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*q = Quantity(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("quantity must be a number or string: %w", err)
	}
	*q = Quantity(ParseNumber(s))
	return nil
}

// CalculationStep is one entry of the evaluation trace.
type CalculationStep struct {
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Calculation string `json:"calculation"`
}

// Status labels.
const (
	StatusStable        = "Stable"
	StatusUnstable      = "Unstable"
	StatusIndeterminate = "Indeterminate"
)

// StabilityResult carries the safety factors and the overall status label.
type StabilityResult struct {
	SlidingFactor     Quantity `json:"sliding_factor"`
	OverturningFactor Quantity `json:"overturning_factor"`
	Status            string   `json:"status"`
}

// Gauge is the fill percentage of the factor bars, each factor drawn against a
// full scale of 3.
type Gauge struct {
	Sliding     float64 `json:"sliding"`
	Overturning float64 `json:"overturning"`
}

const gaugeFullScale = 3.0

// Gauge returns the bar fill percentages for r, clamped to [0, 100].
func (r StabilityResult) Gauge() Gauge {
	return Gauge{
		Sliding:     gaugePercent(r.SlidingFactor.Float()),
		Overturning: gaugePercent(r.OverturningFactor.Float()),
	}
}

func gaugePercent(factor float64) float64 {
	if math.IsNaN(factor) {
		return 0
	}
	return math.Max(0, math.Min(100, factor/gaugeFullScale*100))
}

// Quantities are the intermediate physical values of an evaluation.
type Quantities struct {
	Weight          Quantity `json:"weight"`
	WaterPressure   Quantity `json:"water_pressure"`
	ResistingMoment Quantity `json:"resisting_moment"`
}

// Evaluation is the full output of one evaluator run.
type Evaluation struct {
	Input      InputState        `json:"input"`
	Mode       FactorMode        `json:"factor_mode"`
	Quantities Quantities        `json:"quantities"`
	Result     StabilityResult   `json:"result"`
	Steps      []CalculationStep `json:"steps"`
}

// IsFinite reports whether every computed value of e is finite.
func (e Evaluation) IsFinite() bool {
	return e.Quantities.Weight.IsFinite() &&
		e.Quantities.WaterPressure.IsFinite() &&
		e.Quantities.ResistingMoment.IsFinite() &&
		e.Result.SlidingFactor.IsFinite() &&
		e.Result.OverturningFactor.IsFinite()
}

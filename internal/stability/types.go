package stability

import (
	"bytes"
	"encoding/json"
	"fmt"

	"dam-stability/internal/assessment"
	"dam-stability/internal/dam"
	"dam-stability/internal/report"
)

// FieldText is a form value sent as either a JSON string or a JSON number.
// Numbers keep their literal text so the step traces show what was sent.
type FieldText string

func (t *FieldText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = FieldText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("field value must be a string or a number, got %s", data)
	}
	*t = FieldText(n.String())
	return nil
}

// EvaluateRequest is the JSON body for POST /stability/evaluate.
type EvaluateRequest struct {
	Height              FieldText `json:"height"`
	Width               FieldText `json:"width"`
	WaterLevel          FieldText `json:"waterLevel"`
	MaterialDensity     FieldText `json:"materialDensity"`
	FrictionCoefficient FieldText `json:"frictionCoefficient"`

	// Analyze requests a narrative from the analysis service.
	Analyze bool `json:"analyze"`
	// FactorMode overrides the server's factor mode for this request.
	FactorMode string `json:"factor_mode,omitempty"`
}

// Input converts the request into the form the evaluator reads.
func (r EvaluateRequest) Input() dam.InputState {
	return dam.InputState{
		Height:              string(r.Height),
		Width:               string(r.Width),
		WaterLevel:          string(r.WaterLevel),
		MaterialDensity:     string(r.MaterialDensity),
		FrictionCoefficient: string(r.FrictionCoefficient),
	}
}

// EvaluateResponse is the JSON response for POST /stability/evaluate.
type EvaluateResponse struct {
	ID            string         `json:"id"`
	Evaluation    dam.Evaluation `json:"evaluation"`
	Gauge         dam.Gauge      `json:"gauge"`
	Analysis      string         `json:"analysis,omitempty"`
	AnalysisError string         `json:"analysis_error,omitempty"`
}

// ImportResult is one evaluated row of an imported workbook.
type ImportResult struct {
	ID         string         `json:"id"`
	Line       int            `json:"line"`
	Evaluation dam.Evaluation `json:"evaluation"`
}

// ImportResponse is the JSON response for POST /stability/import.
type ImportResponse struct {
	Count   int            `json:"count"`
	Results []ImportResult `json:"results"`
}

// ListResponse is the JSON response for GET /stability/assessments.
type ListResponse struct {
	Count       int                 `json:"count"`
	Assessments []assessment.Record `json:"assessments"`
}

func newImportResult(rec assessment.Record, row report.ImportedRow) ImportResult {
	return ImportResult{ID: rec.ID, Line: row.Line, Evaluation: rec.Evaluation}
}

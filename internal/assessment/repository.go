// Package assessment keeps the history of completed stability assessments.
package assessment

import (
	"context"
	"errors"
	"time"

	"dam-stability/internal/dam"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no assessment has the requested id.
var ErrNotFound = errors.New("assessment not found")

// Source records which surface produced an assessment.
type Source string

const (
	SourceAPI     Source = "api"
	SourceSession Source = "session"
	SourceImport  Source = "import"
	SourceCLI     Source = "cli"
)

// Record is one completed assessment: the evaluation and, when the analysis
// service answered, its narrative.
type Record struct {
	ID            string         `json:"id"`
	CreatedAt     time.Time      `json:"created_at"`
	Source        Source         `json:"source"`
	Evaluation    dam.Evaluation `json:"evaluation"`
	Narrative     string         `json:"narrative,omitempty"`
	AnalysisError string         `json:"analysis_error,omitempty"`
}

// NewRecord stamps ev with a fresh id and the current time.
func NewRecord(source Source, ev dam.Evaluation, narrative string, analysisErr error) Record {
	rec := Record{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Source:     source,
		Evaluation: ev,
		Narrative:  narrative,
	}
	if analysisErr != nil {
		rec.AnalysisError = analysisErr.Error()
	}
	return rec
}

// Repository stores assessment records.
type Repository interface {
	Save(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	// List returns the most recent records first, at most limit of them.
	List(ctx context.Context, limit int) ([]Record, error)
}

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

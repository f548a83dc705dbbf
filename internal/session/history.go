package session

import (
	"context"

	"dam-stability/internal/analysis"
	"dam-stability/internal/assessment"
	"dam-stability/internal/observability"

	"go.uber.org/zap"
)

// RecordTo returns a SettledFunc that stores every settled submission in repo.
// Storage failures are logged; the session itself is unaffected.
func RecordTo(repo assessment.Repository) SettledFunc {
	return func(ctx context.Context, st State, outcome analysis.Outcome) {
		if st.Evaluation == nil {
			return
		}
		rec := assessment.NewRecord(assessment.SourceSession, *st.Evaluation, outcome.Narrative, outcome.Err)
		if err := repo.Save(ctx, rec); err != nil {
			observability.LoggerWithTrace(ctx).Error("could not store session assessment",
				zap.Error(err),
				zap.String("request_id", observability.RequestIDFromContext(ctx)),
			)
			return
		}
		observability.LoggerWithTrace(ctx).Debug("session assessment stored", zap.String("assessment_id", rec.ID))
	}
}

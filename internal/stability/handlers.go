// Package stability serves stateless dam stability evaluations, batch import
// from xlsx, the assessment history and its reports.
package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"dam-stability/internal/analysis"
	"dam-stability/internal/assessment"
	"dam-stability/internal/dam"
	"dam-stability/internal/handlers"
	"dam-stability/internal/observability"
	"dam-stability/internal/report"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// tracer is the stability domain's dedicated OpenTelemetry tracer.
var tracer = otel.Tracer("stability")

// maxImportSize caps the multipart body of an import.
const maxImportSize = 10 << 20

// Handler serves the /stability routes.
type Handler struct {
	repo      assessment.Repository
	requester analysis.Requester
	mode      dam.FactorMode
	friction  float64
}

// NewHandler returns a Handler that stores assessments in repo. requester may
// be nil, in which case requests asking for analysis get an analysis_error.
func NewHandler(repo assessment.Repository, requester analysis.Requester, mode dam.FactorMode, friction float64) *Handler {
	return &Handler{repo: repo, requester: requester, mode: mode, friction: friction}
}

// Evaluate handles POST /stability/evaluate.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "stability.evaluate",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "evaluate", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	mode := h.mode
	if req.FactorMode != "" {
		m, err := dam.ParseFactorMode(req.FactorMode)
		if err != nil {
			observability.RecordError(ctx, span, logger, errorCounter, "evaluate", err.Error(), err, http.StatusBadRequest, w)
			return
		}
		mode = m
	}

	ev := h.evaluate(ctx, dam.NewEvaluator(mode, h.friction), req.Input())

	resp := EvaluateResponse{Evaluation: ev, Gauge: ev.Result.Gauge()}

	var analysisErr error
	if req.Analyze {
		outcome := h.analyze(ctx, ev)
		resp.Analysis, analysisErr = outcome.Narrative, outcome.Err
		if analysisErr != nil {
			resp.AnalysisError = analysisErr.Error()
			span.AddEvent("analysis.failed", trace.WithAttributes(attribute.String("error", analysisErr.Error())))
		}
	}

	rec := assessment.NewRecord(assessment.SourceAPI, ev, resp.Analysis, analysisErr)
	if err := h.repo.Save(ctx, rec); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "evaluate", "could not store assessment", err, http.StatusInternalServerError, w)
		return
	}
	resp.ID = rec.ID

	span.SetAttributes(attribute.String("assessment.id", rec.ID))
	span.SetStatus(codes.Ok, "")

	logger.Info("stability evaluation completed",
		zap.String("assessment_id", rec.ID),
		zap.String("factor_mode", string(ev.Mode)),
		zap.String("status", ev.Result.Status),
		zap.Bool("analyzed", resp.Analysis != ""),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusOK, resp)
}

// evaluate runs e on in and records the evaluation's span attributes and
// metrics.
func (h *Handler) evaluate(ctx context.Context, e *dam.Evaluator, in dam.InputState) dam.Evaluation {
	span := trace.SpanFromContext(ctx)

	start := time.Now()
	ev := e.Evaluate(in)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0 // ms

	attrs := metric.WithAttributes(
		attribute.String("factor_mode", string(ev.Mode)),
		attribute.String("status", ev.Result.Status),
	)
	evalCounter.Add(ctx, 1, attrs)
	evalHistogram.Record(ctx, elapsed, attrs)

	if ev.IsFinite() {
		factorGauge.Record(ctx, ev.Result.SlidingFactor.Float(), metric.WithAttributes(attribute.String("factor", "sliding")))
		factorGauge.Record(ctx, ev.Result.OverturningFactor.Float(), metric.WithAttributes(attribute.String("factor", "overturning")))
	} else {
		nonFiniteCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("factor_mode", string(ev.Mode))))
	}

	span.AddEvent("evaluation.complete", trace.WithAttributes(
		attribute.String("weight", ev.Quantities.Weight.Fixed()),
		attribute.String("water_pressure", ev.Quantities.WaterPressure.Fixed()),
		attribute.String("resisting_moment", ev.Quantities.ResistingMoment.Fixed()),
		attribute.Float64("duration_ms", elapsed),
	))
	span.SetAttributes(
		attribute.String("stability.factor_mode", string(ev.Mode)),
		attribute.String("stability.status", ev.Result.Status),
		attribute.Bool("stability.finite", ev.IsFinite()),
	)
	return ev
}

func (h *Handler) analyze(ctx context.Context, ev dam.Evaluation) analysis.Outcome {
	if h.requester == nil {
		return analysis.Outcome{Err: errors.New("analysis service not configured")}
	}

	outcome := analysis.Run(ctx, h.requester, ev)
	if !outcome.OK() {
		observability.LoggerWithTrace(ctx).Error("analysis request failed",
			zap.Error(outcome.Err),
			zap.String("request_id", observability.RequestIDFromContext(ctx)),
		)
	}
	return outcome
}

// Import handles POST /stability/import: a multipart "file" field holding an
// xlsx workbook whose rows are evaluated and stored one by one.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "stability.import",
		trace.WithAttributes(attribute.String("request.id", requestID)),
	)
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "import", "file required", err, http.StatusBadRequest, w)
		return
	}
	defer file.Close()

	rows, err := report.ImportXLSX(file)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "import", "invalid workbook", err, http.StatusBadRequest, w)
		return
	}

	e := dam.NewEvaluator(h.mode, h.friction)
	results := make([]ImportResult, 0, len(rows))

	for _, row := range rows {
		rowCtx, rowSpan := tracer.Start(ctx, fmt.Sprintf("stability.import.row.%d", row.Line),
			trace.WithAttributes(attribute.Int("import.line", row.Line)),
		)
		ev := h.evaluate(rowCtx, e, row.Input)
		rowSpan.End()

		rec := assessment.NewRecord(assessment.SourceImport, ev, "", nil)
		if err := h.repo.Save(ctx, rec); err != nil {
			observability.RecordError(ctx, span, logger, errorCounter, "import", "could not store assessment", err, http.StatusInternalServerError, w)
			return
		}
		results = append(results, newImportResult(rec, row))
	}

	span.SetAttributes(attribute.Int("import.rows", len(results)))
	span.SetStatus(codes.Ok, "")

	logger.Info("workbook imported",
		zap.Int("rows", len(results)),
		zap.String("request_id", requestID),
	)

	handlers.WriteJSON(w, http.StatusOK, ImportResponse{Count: len(results), Results: results})
}

// ListAssessments handles GET /stability/assessments?limit=N.
func (h *Handler) ListAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)

	ctx, span := tracer.Start(ctx, "stability.list")
	defer span.End()

	limit := assessment.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			observability.RecordError(ctx, span, logger, errorCounter, "list", "limit must be a positive integer", fmt.Errorf("limit=%q", v), http.StatusBadRequest, w)
			return
		}
		limit = n
	}

	recs, err := h.repo.List(ctx, limit)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "list", "could not list assessments", err, http.StatusInternalServerError, w)
		return
	}
	if recs == nil {
		recs = []assessment.Record{}
	}

	span.SetAttributes(attribute.Int("assessments.count", len(recs)))
	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, ListResponse{Count: len(recs), Assessments: recs})
}

// GetAssessment handles GET /stability/assessments/{id}.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctx, span := tracer.Start(ctx, "stability.get")
	defer span.End()

	rec, ok := h.load(ctx, span, w, r, "get")
	if !ok {
		return
	}

	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, rec)
}

// ReportPDF handles GET /stability/assessments/{id}/report.pdf.
func (h *Handler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	h.renderReport(w, r, "pdf", "application/pdf", report.WritePDF)
}

// ReportXLSX handles GET /stability/assessments/{id}/report.xlsx.
func (h *Handler) ReportXLSX(w http.ResponseWriter, r *http.Request) {
	h.renderReport(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", report.WriteXLSX)
}

func (h *Handler) renderReport(w http.ResponseWriter, r *http.Request, format, contentType string, render func(io.Writer, assessment.Record) error) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	op := "report_" + format

	ctx, span := tracer.Start(ctx, "stability.report",
		trace.WithAttributes(attribute.String("report.format", format)),
	)
	defer span.End()

	rec, ok := h.load(ctx, span, w, r, op)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, rec); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, op, "could not render report", err, http.StatusInternalServerError, w)
		return
	}

	reportCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("format", format)))
	span.SetAttributes(attribute.Int("report.bytes", buf.Len()))
	span.SetStatus(codes.Ok, "")

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"assessment-%s.%s\"", rec.ID, format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// load fetches the assessment named by the {id} URL parameter, writing the
// error response itself when it cannot.
func (h *Handler) load(ctx context.Context, span trace.Span, w http.ResponseWriter, r *http.Request, op string) (assessment.Record, bool) {
	logger := observability.LoggerWithTrace(ctx)
	id := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("assessment.id", id))

	rec, err := h.repo.Get(ctx, id)
	switch {
	case errors.Is(err, assessment.ErrNotFound):
		observability.RecordError(ctx, span, logger, errorCounter, op, "assessment not found", err, http.StatusNotFound, w)
		return rec, false
	case err != nil:
		observability.RecordError(ctx, span, logger, errorCounter, op, "could not load assessment", err, http.StatusInternalServerError, w)
		return rec, false
	}
	return rec, true
}

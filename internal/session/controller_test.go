package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dam-stability/internal/analysis"
	"dam-stability/internal/assessment"
	"dam-stability/internal/dam"
	"dam-stability/internal/observability"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var referenceFields = map[dam.Field]string{
	dam.FieldHeight:          "10",
	dam.FieldWidth:           "4",
	dam.FieldWaterLevel:      "5",
	dam.FieldMaterialDensity: "2400",
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func readyController(t *testing.T, opts Options) *Controller {
	t.Helper()
	c := NewController(opts)
	t.Cleanup(c.Close)

	ctx := context.Background()
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.UpdateFields(ctx, referenceFields); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	return c
}

func TestControllerSubmitAppliesNarrative(t *testing.T) {
	var (
		mu      sync.Mutex
		settled []State
	)
	c := readyController(t, Options{
		Requester: analysis.RequesterFunc(func(ctx context.Context, ev dam.Evaluation) (string, error) {
			return "weight " + ev.Quantities.Weight.Fixed(), nil
		}),
		OnSettled: func(ctx context.Context, st State, outcome analysis.Outcome) {
			mu.Lock()
			settled = append(settled, st)
			mu.Unlock()
		},
	})

	st, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st.Screen != ScreenOutput || st.Evaluation == nil {
		t.Fatalf("expected output screen with results, got %#v", st)
	}

	st, err = c.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if st.Loading {
		t.Fatal("expected loading to be cleared")
	}
	if st.Analysis != "weight 96000.00" {
		t.Fatalf("expected narrative, got %q", st.Analysis)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(settled) != 1 || settled[0].Analysis != st.Analysis {
		t.Fatalf("expected one settled callback, got %d", len(settled))
	}
}

func TestControllerAnalysisFailureKeepsStepsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	oldLogger := observability.Logger
	observability.Logger = zap.New(core)
	t.Cleanup(func() { observability.Logger = oldLogger })

	c := readyController(t, Options{
		Requester: analysis.RequesterFunc(func(context.Context, dam.Evaluation) (string, error) {
			return "", analysis.ErrMalformedResponse
		}),
	})

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	st, err := c.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if st.Screen != ScreenOutput {
		t.Fatalf("expected output screen, got %s", st.Screen)
	}
	if st.Analysis != "" {
		t.Fatalf("expected no narrative, got %q", st.Analysis)
	}
	if st.Evaluation == nil || len(st.Evaluation.Steps) != 4 {
		t.Fatal("expected calculation steps on failure")
	}

	entries := logs.FilterMessage("analysis request failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 failure log, got %d", len(entries))
	}
}

func TestControllerWithoutRequesterSettlesWithoutNarrative(t *testing.T) {
	c := readyController(t, Options{})

	c.Submit(context.Background())
	st, err := c.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if st.Loading || st.Analysis != "" || st.Evaluation == nil {
		t.Fatalf("unexpected state %#v", st)
	}
}

func TestControllerResetMidFlowDropsLateResult(t *testing.T) {
	started := make(chan struct{})
	cancelled := make(chan struct{})
	release := make(chan struct{})

	var settledCalls int
	var mu sync.Mutex

	c := readyController(t, Options{
		ResetDelay: 40 * time.Millisecond,
		Requester: analysis.RequesterFunc(func(ctx context.Context, ev dam.Evaluation) (string, error) {
			close(started)
			<-ctx.Done()
			close(cancelled)
			<-release
			return "late narrative", nil
		}),
		OnSettled: func(context.Context, State, analysis.Outcome) {
			mu.Lock()
			settledCalls++
			mu.Unlock()
		},
	})

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	begin := time.Now()
	st, err := c.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !st.Resetting || st.Evaluation != nil || !st.Form.IsEmpty() {
		t.Fatalf("expected cleared resetting state, got %#v", st)
	}

	if _, err := c.Reset(context.Background()); !errors.Is(err, ErrResetInProgress) {
		t.Fatalf("expected ErrResetInProgress, got %v", err)
	}

	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("expected in-flight analysis to be cancelled")
	}

	st, err = c.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(begin); elapsed < 40*time.Millisecond {
		t.Fatalf("expected reset delay to be honoured, finished after %s", elapsed)
	}
	if st.Screen != ScreenInput || st.Resetting || !st.Form.IsEmpty() || st.Evaluation != nil {
		t.Fatalf("expected empty input screen, got %#v", st)
	}

	close(release)
	time.Sleep(20 * time.Millisecond)

	final := c.State()
	if final.Analysis != "" || final.Evaluation != nil {
		t.Fatalf("expected late result to be dropped, got %#v", final)
	}

	mu.Lock()
	defer mu.Unlock()
	if settledCalls != 0 {
		t.Fatalf("expected no settled callback for superseded submission, got %d", settledCalls)
	}
}

func TestControllerResubmitSupersedesEarlierRequest(t *testing.T) {
	var calls int
	var mu sync.Mutex
	firstStarted := make(chan struct{})

	c := readyController(t, Options{
		Requester: analysis.RequesterFunc(func(ctx context.Context, ev dam.Evaluation) (string, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()

			if n == 1 {
				close(firstStarted)
				<-ctx.Done()
				return "first", nil
			}
			return "second", nil
		}),
	})

	ctx := context.Background()
	c.Submit(ctx)
	<-firstStarted

	if _, err := c.NewAssessment(ctx); err != nil {
		t.Fatalf("NewAssessment: %v", err)
	}
	if _, err := c.UpdateFields(ctx, map[dam.Field]string{dam.FieldHeight: "12"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if _, err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	st, err := c.Wait(waitCtx(t))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	st = c.State()

	if st.Analysis != "second" {
		t.Fatalf("expected narrative of the latest submission, got %q", st.Analysis)
	}
	if st.Evaluation.Input.Height != "12" {
		t.Fatalf("expected latest form to be evaluated, got %q", st.Evaluation.Input.Height)
	}
}

func TestControllerUpdateFieldsIsAllOrNothing(t *testing.T) {
	c := readyController(t, Options{})

	_, err := c.UpdateFields(context.Background(), map[dam.Field]string{
		dam.FieldHeight: "99",
		"depth":         "3",
	})
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if got := c.State().Form.Height; got != "10" {
		t.Fatalf("expected form unchanged, got height %q", got)
	}
}

func TestControllerWaitHonoursContext(t *testing.T) {
	c := readyController(t, Options{
		Requester: analysis.RequesterFunc(func(ctx context.Context, ev dam.Evaluation) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}),
	})
	c.Submit(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	st, err := c.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !st.Loading {
		t.Fatal("expected state to still be loading")
	}
}

func TestControllerComputedMode(t *testing.T) {
	c := readyController(t, Options{Evaluator: dam.NewEvaluator(dam.FactorModeComputed, 0)})

	st, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if st.Evaluation.Mode != dam.FactorModeComputed || st.Evaluation.Result.SlidingFactor == dam.FixedSlidingFactor {
		t.Fatalf("expected computed factors, got %#v", st.Evaluation.Result)
	}
}

func TestRecordToStoresSettledSubmission(t *testing.T) {
	repo := assessment.NewMemoryRepository()
	c := readyController(t, Options{
		Requester: analysis.RequesterFunc(func(context.Context, dam.Evaluation) (string, error) {
			return "fine", nil
		}),
		OnSettled: RecordTo(repo),
	})

	c.Submit(context.Background())
	if _, err := c.Wait(waitCtx(t)); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	var recs []assessment.Record
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); time.Sleep(5 * time.Millisecond) {
		if recs, _ = repo.List(context.Background(), 10); len(recs) > 0 {
			break
		}
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 stored assessment, got %d", len(recs))
	}
	if recs[0].Source != assessment.SourceSession || recs[0].Narrative != "fine" {
		t.Fatalf("unexpected record %#v", recs[0])
	}
}

func TestControllerCloseWaitsForAnalysis(t *testing.T) {
	started := make(chan struct{})
	var exited atomic.Bool
	var settled atomic.Int32

	c := NewController(Options{
		Requester: analysis.RequesterFunc(func(ctx context.Context, ev dam.Evaluation) (string, error) {
			close(started)
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			exited.Store(true)
			return "late", nil
		}),
		OnSettled: func(context.Context, State, analysis.Outcome) { settled.Add(1) },
	})
	ctx := context.Background()
	c.Start(ctx)
	c.UpdateFields(ctx, referenceFields)
	if _, err := c.Submit(ctx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	c.Close()

	if !exited.Load() {
		t.Fatal("expected Close to wait for the analysis goroutine")
	}
	if settled.Load() != 0 {
		t.Fatal("expected no settled callback after Close")
	}
	if st := c.State(); st.Analysis != "" {
		t.Fatalf("expected result after Close to be dropped, got %q", st.Analysis)
	}
	if _, err := c.Submit(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

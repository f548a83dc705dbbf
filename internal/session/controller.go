package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"dam-stability/internal/analysis"
	"dam-stability/internal/dam"
	"dam-stability/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultResetDelay is how long a reset keeps the reset control busy before
// the empty input screen is shown.
const DefaultResetDelay = 800 * time.Millisecond

// ErrClosed is returned by Submit once the controller has been closed.
var ErrClosed = errors.New("session closed")

var errNoRequester = errors.New("analysis requester not configured")

// SettledFunc is called after a submission's analysis settles and the result
// has been applied. It is not called for results that were superseded.
type SettledFunc func(ctx context.Context, st State, outcome analysis.Outcome)

// Options configure a Controller.
type Options struct {
	Evaluator  *dam.Evaluator
	Requester  analysis.Requester
	ResetDelay time.Duration
	OnSettled  SettledFunc
}

// Controller owns the State of one session. All actions are serialised; the
// analysis request runs in its own goroutine and is applied only if its
// submission is still current when it returns.
type Controller struct {
	mu       sync.Mutex
	state    State
	changed  chan struct{}
	cancel   context.CancelFunc
	timer    *time.Timer
	lastSeen time.Time
	closed   bool
	inFlight sync.WaitGroup

	evaluator  *dam.Evaluator
	requester  analysis.Requester
	resetDelay time.Duration
	onSettled  SettledFunc
}

// NewController returns a Controller on the welcome screen. A nil evaluator
// uses the fixed factors.
func NewController(opts Options) *Controller {
	if opts.Evaluator == nil {
		opts.Evaluator = dam.NewEvaluator(dam.FactorModeFixed, 0)
	}
	return &Controller{
		state:      Initial(),
		changed:    make(chan struct{}),
		lastSeen:   time.Now(),
		evaluator:  opts.Evaluator,
		requester:  opts.Requester,
		resetDelay: opts.ResetDelay,
		onSettled:  opts.OnSettled,
	}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start moves welcome → input.
func (c *Controller) Start(ctx context.Context) (State, error) {
	return c.apply(ctx, "start", State.Start)
}

// Back moves input → welcome.
func (c *Controller) Back(ctx context.Context) (State, error) {
	return c.apply(ctx, "back", State.Back)
}

// UpdateFields applies every field edit or none of them.
func (c *Controller) UpdateFields(ctx context.Context, values map[dam.Field]string) (State, error) {
	return c.apply(ctx, "update_fields", func(s State) (State, error) {
		for f := range values {
			if _, err := s.Form.Get(f); err != nil {
				return s, err
			}
		}
		if s.Screen != ScreenInput {
			return s, s.transitionErr("update field")
		}
		for _, f := range dam.Fields {
			v, ok := values[f]
			if !ok {
				continue
			}
			var err error
			if s, err = s.UpdateField(f, v); err != nil {
				return s, err
			}
		}
		return s, nil
	})
}

// NewAssessment moves output → input and abandons any pending analysis.
func (c *Controller) NewAssessment(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.state.NewAssessment()
	if err != nil {
		return c.state, err
	}
	c.cancelInFlightLocked()
	c.setLocked(ctx, "new_assessment", next)
	return next, nil
}

// Submit evaluates the form synchronously, shows the output screen in its
// loading state and starts the analysis request.
func (c *Controller) Submit(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return c.State(), ErrClosed
	}

	next, err := c.state.Submit(c.evaluator.Evaluate)
	if err != nil {
		c.mu.Unlock()
		return c.state, err
	}

	c.cancelInFlightLocked()
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.setLocked(ctx, "submit", next)
	c.inFlight.Add(1)
	c.mu.Unlock()

	go c.runAnalysis(reqCtx, cancel, next.Generation, *next.Evaluation)

	return next, nil
}

func (c *Controller) runAnalysis(ctx context.Context, cancel context.CancelFunc, gen uint64, ev dam.Evaluation) {
	defer c.inFlight.Done()
	defer cancel()

	logger := observability.LoggerWithTrace(ctx)

	outcome := analysis.Outcome{Err: errNoRequester}
	if c.requester != nil {
		outcome = analysis.Run(ctx, c.requester, ev)
	}
	if !outcome.OK() {
		logger.Error("analysis request failed",
			zap.Error(outcome.Err),
			zap.Uint64("generation", gen),
			zap.String("request_id", observability.RequestIDFromContext(ctx)),
		)
	}

	c.mu.Lock()
	var next State
	applied := false
	if !c.closed {
		next, applied = c.state.ApplyAnalysis(gen, outcome)
	}
	if applied {
		c.cancel = nil
		c.setLocked(ctx, "analysis_settled", next)
	}
	c.mu.Unlock()

	if !applied {
		staleCounter.Add(ctx, 1)
		logger.Debug("dropping superseded analysis result", zap.Uint64("generation", gen))
		return
	}

	if c.onSettled != nil {
		c.onSettled(ctx, next, outcome)
	}
}

// Reset clears results, analysis and form immediately, then shows the empty
// input screen once the reset delay has passed. A pending analysis is
// cancelled and its result will be dropped.
func (c *Controller) Reset(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.state.BeginReset()
	if err != nil {
		return c.state, err
	}

	c.cancelInFlightLocked()
	c.setLocked(ctx, "reset", next)

	gen := next.Generation
	finishCtx := context.WithoutCancel(ctx)
	c.timer = time.AfterFunc(c.resetDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if done, ok := c.state.FinishReset(gen); ok {
			c.timer = nil
			c.setLocked(finishCtx, "reset_finished", done)
		}
	})

	return next, nil
}

// Wait blocks until no analysis or reset is outstanding, or ctx is done. It
// returns the latest state either way.
func (c *Controller) Wait(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		st, ch := c.state, c.changed
		c.mu.Unlock()

		if !st.Busy() {
			return st, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close cancels outstanding work and returns once every analysis goroutine
// has exited. Results arriving after Close are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.cancelInFlightLocked()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.inFlight.Wait()
}

func (c *Controller) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Controller) apply(ctx context.Context, action string, fn func(State) (State, error)) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(c.state)
	if err != nil {
		return c.state, err
	}
	c.setLocked(ctx, action, next)
	return next, nil
}

func (c *Controller) cancelInFlightLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) setLocked(ctx context.Context, action string, next State) {
	c.state = next
	close(c.changed)
	c.changed = make(chan struct{})

	transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("screen", string(next.Screen)),
	))
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"dam-stability/internal/dam"
	"dam-stability/internal/handlers"
	"dam-stability/internal/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("session")

// View is the JSON representation of a State.
type View struct {
	State
	Gauge *dam.Gauge `json:"gauge,omitempty"`
}

// NewView renders st, adding the factor gauges once results exist.
func NewView(st State) View {
	v := View{State: st}
	if st.Evaluation != nil {
		g := st.Evaluation.Result.Gauge()
		v.Gauge = &g
	}
	return v
}

type controllerKey struct{}

// Handler serves the session flow over HTTP.
type Handler struct {
	store  *Store
	signer *Signer
	now    func() time.Time
}

func NewHandler(store *Store, signer *Signer) *Handler {
	return &Handler{store: store, signer: signer, now: time.Now}
}

// Middleware resolves the session from the signed cookie, creating a new one
// (and setting the cookie) when the cookie is missing, invalid or expired.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := h.lookup(r)
		if !ok {
			id, c, err := h.create(r.Context(), w)
			if err != nil {
				ctx := r.Context()
				observability.RecordError(ctx, trace.SpanFromContext(ctx), observability.LoggerWithTrace(ctx), errorCounter, "create", "could not create session", err, http.StatusInternalServerError, w)
				return
			}
			observability.LoggerWithTrace(r.Context()).Info("session created",
				zap.String("session_id", id),
				zap.String("request_id", observability.RequestIDFromContext(r.Context())),
			)
			ctrl = c
		}

		ctx := context.WithValue(r.Context(), controllerKey{}, ctrl)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) lookup(r *http.Request) (*Controller, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	id, err := h.signer.Parse(cookie.Value)
	if err != nil {
		return nil, false
	}
	return h.store.Get(id)
}

func (h *Handler) create(ctx context.Context, w http.ResponseWriter) (string, *Controller, error) {
	now := h.now()
	id, ctrl := h.store.Create(ctx)

	token, err := h.signer.Issue(id, now)
	if err != nil {
		return "", nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(h.signer.TTL()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, ctrl, nil
}

func controllerFrom(ctx context.Context) *Controller {
	c, _ := ctx.Value(controllerKey{}).(*Controller)
	return c
}

// Get handles GET /session. With ?wait=true it blocks until pending analysis
// or reset work has finished.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "get", func(ctx context.Context, c *Controller) (State, error) {
		return c.State(), nil
	})
}

// Start handles POST /session/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "start", func(ctx context.Context, c *Controller) (State, error) {
		return c.Start(ctx)
	})
}

// Back handles POST /session/back.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "back", func(ctx context.Context, c *Controller) (State, error) {
		return c.Back(ctx)
	})
}

// UpdateFields handles PATCH /session/fields with a JSON object of field
// name to raw text.
func (h *Handler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "update_fields", func(ctx context.Context, c *Controller) (State, error) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return State{}, badRequest{fmt.Errorf("invalid request body: %w", err)}
		}
		values := make(map[dam.Field]string, len(body))
		for k, v := range body {
			values[dam.Field(k)] = v
		}
		st, err := c.UpdateFields(ctx, values)
		if err != nil && !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, ErrResetInProgress) {
			return st, badRequest{err}
		}
		return st, err
	})
}

// Submit handles POST /session/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "submit", func(ctx context.Context, c *Controller) (State, error) {
		return c.Submit(ctx)
	})
}

// Reset handles POST /session/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "reset", func(ctx context.Context, c *Controller) (State, error) {
		return c.Reset(ctx)
	})
}

// NewAssessment handles POST /session/new.
func (h *Handler) NewAssessment(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "new_assessment", func(ctx context.Context, c *Controller) (State, error) {
		return c.NewAssessment(ctx)
	})
}

type badRequest struct{ error }

func (e badRequest) Unwrap() error { return e.error }

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, action string, fn func(context.Context, *Controller) (State, error)) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)

	ctx, span := tracer.Start(ctx, "session."+action,
		trace.WithAttributes(
			attribute.String("session.action", action),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	ctrl := controllerFrom(ctx)
	if ctrl == nil {
		observability.RecordError(ctx, span, logger, errorCounter, action, "no session", errors.New("session middleware not installed"), http.StatusInternalServerError, w)
		return
	}

	st, err := fn(ctx, ctrl)
	if err != nil {
		var br badRequest
		switch {
		case errors.As(err, &br):
			observability.RecordError(ctx, span, logger, errorCounter, action, br.Error(), err, http.StatusBadRequest, w)
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrResetInProgress):
			observability.RecordError(ctx, span, logger, errorCounter, action, err.Error(), err, http.StatusConflict, w)
		case errors.Is(err, ErrClosed):
			observability.RecordError(ctx, span, logger, errorCounter, action, err.Error(), err, http.StatusGone, w)
		default:
			observability.RecordError(ctx, span, logger, errorCounter, action, "session action failed", err, http.StatusInternalServerError, w)
		}
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && st.Busy() {
		st, err = ctrl.Wait(ctx)
		if err != nil {
			logger.Warn("stopped waiting for session", zap.Error(err), zap.String("request_id", requestID))
		}
	}

	span.SetAttributes(
		attribute.String("session.screen", string(st.Screen)),
		attribute.Bool("session.loading", st.Loading),
		attribute.Int64("session.generation", int64(st.Generation)),
	)
	span.SetStatus(codes.Ok, "")

	status := http.StatusOK
	if st.Busy() && action != "get" {
		status = http.StatusAccepted
	}
	handlers.WriteJSON(w, status, NewView(st))
}

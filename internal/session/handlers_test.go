package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dam-stability/internal/analysis"
	"dam-stability/internal/dam"
	"dam-stability/internal/observability"
	"dam-stability/internal/testutil"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type sessionClient struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func newSessionClient(t *testing.T, requester analysis.Requester) *sessionClient {
	t.Helper()
	oldLogger := observability.Logger
	observability.Logger = zap.NewNop()
	t.Cleanup(func() { observability.Logger = oldLogger })

	store := NewStore(func() *Controller {
		return NewController(Options{Requester: requester, ResetDelay: 10 * time.Millisecond})
	}, time.Hour)
	t.Cleanup(store.Close)
	signer, err := NewSigner([]byte("handler-test"), time.Hour)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	r := chi.NewRouter()
	r.Use(observability.RequestIDMiddleware)
	NewHandler(store, signer).RegisterRoutes(r)

	return &sessionClient{t: t, router: r}
}

func (c *sessionClient) do(method, target, body string) (*httptest.ResponseRecorder, View) {
	c.t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rr := testutil.ExecuteRequest(req, c.router)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == CookieName {
			c.cookie = ck
		}
	}

	var v View
	if rr.Code < 300 {
		testutil.DecodeJSONBody(c.t, rr.Body, &v)
	}
	return rr, v
}

func TestSessionHandlersFullFlow(t *testing.T) {
	client := newSessionClient(t, analysis.RequesterFunc(func(ctx context.Context, ev dam.Evaluation) (string, error) {
		return "The structure is stable.", nil
	}))

	rr, v := client.do(http.MethodGet, "/session/", "")
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	if client.cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if v.Screen != ScreenWelcome {
		t.Fatalf("expected welcome screen, got %s", v.Screen)
	}

	rr, v = client.do(http.MethodPost, "/session/start", "")
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	if v.Screen != ScreenInput {
		t.Fatalf("expected input screen, got %s", v.Screen)
	}

	rr, v = client.do(http.MethodPatch, "/session/fields",
		`{"height":"10","width":"4","waterLevel":"5","materialDensity":"2400"}`)
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	if v.Form.MaterialDensity != "2400" {
		t.Fatalf("expected form to be updated, got %#v", v.Form)
	}

	rr, v = client.do(http.MethodPost, "/session/submit?wait=true", "")
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	if v.Screen != ScreenOutput || v.Loading {
		t.Fatalf("expected settled output screen, got %#v", v.State)
	}
	if v.Analysis != "The structure is stable." {
		t.Fatalf("expected narrative, got %q", v.Analysis)
	}
	if v.Evaluation == nil || v.Evaluation.Quantities.Weight.Fixed() != "96000.00" {
		t.Fatalf("expected weight 96000.00, got %#v", v.Evaluation)
	}
	if v.Gauge == nil || v.Gauge.Sliding != 50 || v.Gauge.Overturning < 69.99 || v.Gauge.Overturning > 70.01 {
		t.Fatalf("expected gauges 50/70, got %#v", v.Gauge)
	}

	rr, v = client.do(http.MethodPost, "/session/reset", "")
	testutil.CheckResponseCode(t, http.StatusAccepted, rr.Code)
	if !v.Resetting {
		t.Fatal("expected resetting state")
	}

	rr, v = client.do(http.MethodGet, "/session/?wait=true", "")
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	if v.Screen != ScreenInput || !v.Form.IsEmpty() || v.Evaluation != nil {
		t.Fatalf("expected empty input screen after reset, got %#v", v.State)
	}
}

func TestSessionHandlersErrors(t *testing.T) {
	client := newSessionClient(t, nil)

	rr, _ := client.do(http.MethodPost, "/session/back", "")
	testutil.CheckResponseCode(t, http.StatusConflict, rr.Code)

	client.do(http.MethodPost, "/session/start", "")

	rr, _ = client.do(http.MethodPatch, "/session/fields", `{"depth":"3"}`)
	testutil.CheckResponseCode(t, http.StatusBadRequest, rr.Code)

	rr, _ = client.do(http.MethodPatch, "/session/fields", `not json`)
	testutil.CheckResponseCode(t, http.StatusBadRequest, rr.Code)

	rr, _ = client.do(http.MethodPost, "/session/new", "")
	testutil.CheckResponseCode(t, http.StatusConflict, rr.Code)
}

func TestSessionHandlersReplaceInvalidCookie(t *testing.T) {
	client := newSessionClient(t, nil)
	client.cookie = &http.Cookie{Name: CookieName, Value: "forged"}

	rr, v := client.do(http.MethodGet, "/session/", "")
	testutil.CheckResponseCode(t, http.StatusOK, rr.Code)
	if v.Screen != ScreenWelcome {
		t.Fatalf("expected a fresh session, got %s", v.Screen)
	}
	if client.cookie.Value == "forged" {
		t.Fatal("expected a new signed cookie")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	a := newSessionClient(t, nil)
	a.do(http.MethodPost, "/session/start", "")

	b := &sessionClient{t: t, router: a.router}
	_, v := b.do(http.MethodGet, "/session/", "")
	if v.Screen != ScreenWelcome {
		t.Fatalf("expected second session on welcome screen, got %s", v.Screen)
	}

	_, v = a.do(http.MethodGet, "/session/", "")
	if v.Screen != ScreenInput {
		t.Fatalf("expected first session on input screen, got %s", v.Screen)
	}
}

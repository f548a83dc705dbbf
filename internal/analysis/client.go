package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dam-stability/internal/dam"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Path is the chat-completion route on the analysis service.
const Path = "/integrations/chat-gpt/conversationgpt4"

// ErrMalformedResponse is returned when the service answers with something
// other than a chat completion carrying narrative text.
var ErrMalformedResponse = errors.New("malformed analysis response")

var tracer = otel.Tracer("analysis")

// Requester produces a narrative for an evaluation.
type Requester interface {
	Analyze(ctx context.Context, ev dam.Evaluation) (string, error)
}

// RequesterFunc adapts a function to Requester.
type RequesterFunc func(ctx context.Context, ev dam.Evaluation) (string, error)

func (f RequesterFunc) Analyze(ctx context.Context, ev dam.Evaluation) (string, error) {
	return f(ctx, ev)
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body sent to the analysis service.
type ChatRequest struct {
	Messages []Message `json:"messages"`
}

// ChatResponse is the subset of the chat-completion response that is read.
type ChatResponse struct {
	Choices []struct {
		Message *Message `json:"message"`
	} `json:"choices"`
}

// StatusError reports a non-2xx answer from the analysis service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.StatusCode, e.Body)
}

// Client sends one request per evaluation to the chat-completion service.
// It never retries.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient returns a Client posting to baseURL + Path. A zero timeout leaves
// requests bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		endpoint: strings.TrimRight(baseURL, "/") + Path,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
	}
}

// Endpoint returns the full URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// Analyze builds the prompt for ev, posts it and returns the narrative text
// unmodified.
func (c *Client) Analyze(ctx context.Context, ev dam.Evaluation) (string, error) {
	ctx, span := tracer.Start(ctx, "analysis.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("analysis.endpoint", c.endpoint)),
	)
	defer span.End()

	start := time.Now()
	narrative, err := c.do(ctx, BuildPrompt(ev))
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	requestCounter.Add(ctx, 1, attrs)
	durationHistogram.Record(ctx, elapsed, attrs)

	if err != nil {
		failureCounter.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis request failed")
		return "", err
	}

	span.SetAttributes(attribute.Int("analysis.narrative_length", len(narrative)))
	span.SetStatus(codes.Ok, "")
	return narrative, nil
}

func (c *Client) do(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ChatRequest{
		Messages: []Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	return decodeNarrative(resp.Body)
}

func decodeNarrative(r io.Reader) (string, error) {
	var out ChatResponse
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	msg := out.Choices[0].Message
	if msg == nil || msg.Content == "" {
		return "", fmt.Errorf("%w: empty message content", ErrMalformedResponse)
	}
	return msg.Content, nil
}

// Outcome is the settled result of an analysis request: either a narrative
// or the reason there is none.
type Outcome struct {
	Narrative string
	Err       error
}

// OK reports whether the outcome carries a narrative.
func (o Outcome) OK() bool { return o.Err == nil }

// Run performs one request and wraps the result as an Outcome.
func Run(ctx context.Context, r Requester, ev dam.Evaluation) Outcome {
	narrative, err := r.Analyze(ctx, ev)
	return Outcome{Narrative: narrative, Err: err}
}

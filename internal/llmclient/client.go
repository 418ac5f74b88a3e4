// Package llmclient is the LLM Service Adapter (spec.md §4.8): a
// request/response client to an externally-hosted chat endpoint, treated
// as opaque per spec.md §1 ("We treat them as an opaque request/response
// service"). This package owns only the transport, retry, and
// code-block-extraction contract — prompt content and result parsing
// belong to the pipeline stages that call it.
//
// Generalizes the teacher's internal/compact/haiku.go haikuClient (same
// retry/backoff/token-accounting/otel-span shape) into a role-parameterized
// client, one instance per LLM_PARSER / LLM_MUTATOR_GENERATOR /
// LLM_STRUCTURAL_MUTATOR / LLM_FIXER endpoint (spec.md §6).
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/covfuzz/mutacore/internal/telemetry"
)

// requestCounter is the shared monotonic request counter across every
// Client instance in the process (spec.md §4.8: "A shared monotonic
// request counter across all adapter instances in the process for
// logging").
var requestCounter atomic.Uint64

// Usage reports the token accounting for one completed request.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Client is one role-scoped connection to the chat endpoint.
type Client struct {
	role   string
	client anthropic.Client
	model  anthropic.Model
}

// New creates a Client for the given role ("parser", "mutator_generator",
// "structural_mutator", or "fixer"), each independently configured per
// spec.md §6.
func New(role, baseURL, model, apiKey string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		role:   role,
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

func init() {
	m := telemetry.Meter("github.com/covfuzz/mutacore/llm")
	aiMetrics.inputTokens, _ = m.Int64Counter("fuzz.llm.input_tokens", metric.WithUnit("{token}"))
	aiMetrics.outputTokens, _ = m.Int64Counter("fuzz.llm.output_tokens", metric.WithUnit("{token}"))
	aiMetrics.duration, _ = m.Float64Histogram("fuzz.llm.request.duration", metric.WithUnit("ms"))
}

// Complete sends prompt (with an optional system message) and returns the
// full response text and token usage. Transport errors are retried
// indefinitely with short backoff (spec.md §4.8, §7 "Transport errors:
// retried silently"). The loop stops on ctx cancellation, on an error
// isRetryable rejects (e.g. a 4xx API error other than 429), and on an
// empty or non-text response.
func (c *Client) Complete(ctx context.Context, prompt, system string) (string, Usage, error) {
	tracer := telemetry.Tracer("github.com/covfuzz/mutacore/llm")
	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("fuzz.llm.role", c.role),
		attribute.String("fuzz.llm.model", string(c.model)),
	)

	reqID := requestCounter.Add(1)
	span.SetAttributes(attribute.Int64("fuzz.llm.request_id", int64(reqID)))

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry indefinitely, per spec.md §4.8

	var usage Usage
	var text string

	err := backoff.Retry(func() error {
		t0 := time.Now()
		message, err := c.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				return backoff.Permanent(fmt.Errorf("llmclient: non-retryable: %w", err))
			}
			return err
		}

		modelAttr := attribute.String("fuzz.llm.model", string(c.model))
		if aiMetrics.inputTokens != nil {
			aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
			aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
		}
		usage = Usage{PromptTokens: message.Usage.InputTokens, CompletionTokens: message.Usage.OutputTokens}

		if len(message.Content) == 0 {
			return backoff.Permanent(errors.New("llmclient: empty response content"))
		}
		content := message.Content[0]
		if content.Type != "text" {
			return backoff.Permanent(fmt.Errorf("llmclient: unexpected content type %q", content.Type))
		}
		text = content.Text
		return nil
	}, backoff.WithContext(bo, ctx))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", Usage{}, err
	}
	return text, usage, nil
}

// Complete1 adapts Complete to the narrow func(ctx, prompt) (string, error)
// shape the pipeline stages and the repair loop depend on, so they never
// need to import this package's richer Usage/system-prompt surface.
func (c *Client) Complete1(ctx context.Context, prompt string) (string, error) {
	text, _, err := c.Complete(ctx, prompt, "")
	return text, err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// Unrecognized error shapes are treated as transport-layer noise and
	// retried, matching spec.md §7's "transport errors: retried silently".
	return true
}

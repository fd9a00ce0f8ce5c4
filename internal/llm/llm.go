// Package llm is the marking gateway: exam marking, model answers, paper
// generation and writing feedback over an OpenAI-compatible chat API.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pavelanni/gcsemock/internal/llm/prompts"
)

var (
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gcsemock",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "Duration of gateway calls to the language model.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	}, []string{"op"})

	callFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gcsemock",
		Subsystem: "llm",
		Name:      "call_failures_total",
		Help:      "Number of failed gateway calls by error code.",
	}, []string{"op", "code"})
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
	prompts *prompts.Set
	schemas responseSchemas
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a new LLM client. An empty variant means standard marking.
func New(baseURL, apiKey, modelName string, variant prompts.PromptVariant) (*Client, error) {
	if variant == "" {
		variant = prompts.PromptStandard
	}
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	set, err := prompts.Default()
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	schemas, err := loadSchemas()
	if err != nil {
		return nil, fmt.Errorf("load response schemas: %w", err)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: variant,
		prompts: set,
		schemas: schemas,
		tracer:  otel.Tracer("github.com/pavelanni/gcsemock/internal/llm"),
		logger:  slog.Default().With("component", "llm"),
		now:     time.Now,
	}, nil
}

// Variant returns the marking prompt variant in use.
func (c *Client) Variant() prompts.PromptVariant { return c.variant }

// Ping checks that the API is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "llm.ping")
	defer span.End()

	if _, err := c.api.ListModels(ctx); err != nil {
		gerr := classify("ping", err)
		span.RecordError(gerr)
		span.SetStatus(codes.Error, gerr.Error())
		return gerr
	}
	return nil
}

// complete sends prompt as the system message, checks the JSON reply
// against the schema of op and decodes it into out.
func (c *Client) complete(ctx context.Context, op, prompt string, temperature float32, out any) error {
	ctx, span := c.tracer.Start(ctx, "llm."+op, trace.WithAttributes(
		attribute.String("model", c.model),
		attribute.String("variant", string(c.variant)),
	))
	defer span.End()

	start := time.Now()
	raw, err := c.chat(ctx, op, prompt, temperature)
	if err == nil {
		err = c.schemas.decode(op, raw, out)
	}
	callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		gerr := classify(op, err)
		callFailures.WithLabelValues(op, gerr.Code).Inc()
		span.RecordError(gerr)
		span.SetStatus(codes.Error, gerr.Error())
		c.logger.Warn("gateway call failed", "op", op, "code", gerr.Code, "error", gerr.Err)
		return gerr
	}
	c.logger.Debug("gateway call", "op", op, "duration", time.Since(start))
	return nil
}

func (c *Client) chat(ctx context.Context, op, prompt string, temperature float32) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", badResponse(op, fmt.Errorf("LLM returned no choices"))
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("LLM response", "op", op, "raw", raw)
	return raw, nil
}

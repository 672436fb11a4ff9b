package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultHistoryLimit = 6
)

// Result is a validated classification.
type Result struct {
	Intent intent.Intent
	// RawIntent is the label exactly as the model produced it; it differs
	// from Intent when the label was outside the enum.
	RawIntent  string
	Confidence float64
	Entities   map[string]any
	Reasoning  string
}

// Options tune a Classifier. Zero values pick the defaults.
type Options struct {
	Timeout      time.Duration
	HistoryLimit int
	// Limiter, when set, bounds calls per key (tenant).
	Limiter *RateLimiter
}

// Classifier wraps a Provider with extraction, schema validation and
// normalisation of the model output.
type Classifier struct {
	provider     Provider
	schema       *jsonschema.Schema
	timeout      time.Duration
	historyLimit int
	limiter      *RateLimiter
}

// NewClassifier returns a Classifier backed by provider.
func NewClassifier(provider Provider, opts Options) (*Classifier, error) {
	if provider == nil {
		return nil, errors.New("nlp: provider is required")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("nlp: compile classification schema: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Classifier{
		provider:     provider,
		schema:       schema,
		timeout:      opts.Timeout,
		historyLimit: opts.HistoryLimit,
		limiter:      opts.Limiter,
	}, nil
}

// ProviderName reports which backend answers classifications.
func (c *Classifier) ProviderName() string { return c.provider.Name() }

// Classify asks the provider for a classification of text. key identifies
// the rate-limit bucket, normally the tenant id. Only the newest
// HistoryLimit history messages are sent.
//
// Every failure is a *ClassificationError; callers treat it as intent
// unknown with confidence 0.
func (c *Classifier) Classify(ctx context.Context, key, systemPrompt string, history []Message, text string) (*Result, error) {
	if c.limiter != nil && !c.limiter.Allow(key) {
		return nil, &ClassificationError{Reason: "rate_limited", Err: ErrRateLimit}
	}

	if len(history) > c.historyLimit {
		history = history[len(history)-c.historyLimit:]
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.provider.Complete(callCtx, Request{System: systemPrompt, History: history, Text: text})
	if err != nil {
		reason := "provider"
		switch {
		case errors.Is(err, ErrRateLimit):
			reason = "rate_limited"
		case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
			reason = "timeout"
		}
		return nil, &ClassificationError{Reason: reason, Err: err}
	}
	slog.Debug("nlp: classifier replied",
		"provider", c.provider.Name(), "latency_ms", time.Since(start).Milliseconds(), "bytes", len(raw))

	return c.parse(raw)
}

func (c *Classifier) parse(raw string) (*Result, error) {
	span, ok := extractJSON(raw)
	if !ok {
		return nil, &ClassificationError{Reason: "no_json", Raw: raw}
	}

	var doc any
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return nil, &ClassificationError{Reason: "invalid_json", Raw: raw, Err: err}
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, &ClassificationError{Reason: "schema", Raw: raw, Err: err}
	}

	// The schema guarantees the shape; only the types are asserted here.
	obj := doc.(map[string]any)
	label, _ := obj["intent"].(string)
	res := &Result{
		Intent:    intent.Parse(label),
		RawIntent: label,
		Entities:  map[string]any{},
	}
	if conf, ok := obj["confidence"].(float64); ok {
		res.Confidence = clamp(conf)
	}
	if ents, ok := obj["entities"].(map[string]any); ok {
		res.Entities = ents
	}
	res.Reasoning, _ = obj["reasoning"].(string)
	return res, nil
}

// extractJSON returns the span from the first '{' to the last '}'.
func extractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

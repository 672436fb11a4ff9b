// Package nlp is the fallback classification layer of the admin channel.
//
// It runs only when the fast matcher found nothing. The model's raw output is
// never trusted: the JSON object is cut out of the reply, validated against a
// schema and mapped onto the closed intent set. Every failure surfaces as a
// *ClassificationError so the orchestrator can degrade to the help handler.
package nlp

import (
	"context"
	"errors"
	"fmt"
)

// ErrRateLimit is returned by a Provider when the upstream API throttles us,
// and by the Classifier when a tenant exceeds its own call budget.
var ErrRateLimit = errors.New("nlp: rate limit exceeded")

// Message is one chat turn passed to the provider.
type Message struct {
	Role    string
	Content string
}

// Request is the input to a single completion.
type Request struct {
	System  string
	History []Message
	Text    string
}

// Provider turns a Request into raw model text. Implementations must be safe
// for concurrent use.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ClassificationError reports an unusable classifier outcome.
type ClassificationError struct {
	// Reason is a short machine-friendly cause: "provider", "timeout",
	// "rate_limited", "no_json", "invalid_json", "schema".
	Reason string
	// Raw is the provider output, when there was one.
	Raw string
	Err error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classification failed (%s)", e.Reason)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

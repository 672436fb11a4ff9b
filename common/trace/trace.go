// Package trace generates per-turn correlation ids and carries them through
// context so log lines, audit rows and ops-room notices can be joined.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

type traceKey struct{}

// GenerateID returns a new turn id of the form "turn_<32 hex chars>".
func GenerateID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("turn_%d", time.Now().UnixNano())
	}
	return "turn_" + hex.EncodeToString(buf)
}

// WithTraceID returns a child context carrying id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// FromContext returns the trace id stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}

// Ensure returns ctx unchanged when it already carries a trace id, otherwise
// a child context with a freshly generated one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := FromContext(ctx); id != "" {
		return ctx, id
	}
	id := GenerateID()
	return WithTraceID(ctx, id), id
}

// Attr is the slog attribute for the trace id in ctx.
func Attr(ctx context.Context) slog.Attr {
	return slog.String("trace_id", FromContext(ctx))
}

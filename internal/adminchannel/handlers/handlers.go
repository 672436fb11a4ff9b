// Package handlers implements the admin channel handler set. Every handler
// is a Func: it reads the turn state and returns a partial update. Handlers
// never return errors; failures become a degraded reply plus State.Error.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/common/retry"
	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// Func is one member of the handler set.
type Func func(ctx context.Context, s session.State) session.Update

const (
	DefaultOpTimeout = 8 * time.Second
	DefaultPoolSize  = 4
)

// msgTryAgain is the reply for any failed external call.
const msgTryAgain = "No pude obtener la información en este momento. Intenta de nuevo en unos minutos."

// Config holds the collaborators of the handler set.
type Config struct {
	Business      store.BusinessStore
	Analytics     store.AnalyticsReader
	Notifications store.NotificationStore

	// PendingTTL is how long a proposal may be confirmed. Defaults to
	// session.DefaultPendingTTL.
	PendingTTL time.Duration
	// OpTimeout bounds each external call. Defaults to DefaultOpTimeout.
	OpTimeout time.Duration
	// PoolSize bounds the notification fan-out. Defaults to DefaultPoolSize.
	PoolSize int
	// Now is the clock; tests override it. Defaults to time.Now.
	Now func() time.Time
	// ReadRetry is the retry policy for read-only calls.
	ReadRetry *retry.Policy
}

// Handlers is the handler set bound to its stores.
type Handlers struct {
	business      store.BusinessStore
	analytics     store.AnalyticsReader
	notifications store.NotificationStore

	pendingTTL time.Duration
	opTimeout  time.Duration
	poolSize   int
	now        func() time.Time
	readRetry  retry.Policy
}

// New creates the handler set. Nil stores are allowed; handlers that need
// them answer with the try-again message.
func New(cfg Config) *Handlers {
	h := &Handlers{
		business:      cfg.Business,
		analytics:     cfg.Analytics,
		notifications: cfg.Notifications,
		pendingTTL:    cfg.PendingTTL,
		opTimeout:     cfg.OpTimeout,
		poolSize:      cfg.PoolSize,
		now:           cfg.Now,
		readRetry:     retry.Reads,
	}
	if h.pendingTTL <= 0 {
		h.pendingTTL = session.DefaultPendingTTL
	}
	if h.opTimeout <= 0 {
		h.opTimeout = DefaultOpTimeout
	}
	if h.poolSize <= 0 {
		h.poolSize = DefaultPoolSize
	}
	if h.now == nil {
		h.now = time.Now
	}
	if cfg.ReadRetry != nil {
		h.readRetry = *cfg.ReadRetry
	}
	return h
}

// Registry returns the handler for every HandlerName.
func (h *Handlers) Registry() map[intent.HandlerName]Func {
	return map[intent.HandlerName]Func{
		intent.HandlerHelp:          h.Help,
		intent.HandlerGreeting:      h.Greeting,
		intent.HandlerAnalytics:     h.Analytics,
		intent.HandlerConfig:        h.Configure,
		intent.HandlerOperations:    h.Operations,
		intent.HandlerNotifications: h.Notifications,
		intent.HandlerConfirm:       h.Confirm,
		intent.HandlerCancel:        h.Cancel,
	}
}

// ValidationError is a user-facing rejection of a proposal or of a pending
// action at execution time. Message is shown to the operator verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

var errNoBackend = errors.New("backend not configured")

// read runs fn under the operation timeout with the read retry policy.
func read[T any](ctx context.Context, h *Handlers, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.Value(ctx, h.readRetry, func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, h.opTimeout)
		defer cancel()
		return fn(ctx)
	})
}

// mutate runs fn once under the operation timeout. Mutations are never
// retried.
func (h *Handlers) mutate(ctx context.Context, fn func(ctx context.Context) (store.Result, error)) (store.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()
	return fn(ctx)
}

func reply(s session.State, r format.Report) session.Update {
	return session.Finish(format.Render(r, s.Caller.Channel))
}

func replyText(s session.State, text string) session.Update {
	return session.Finish(format.Text(text, s.Caller.Channel))
}

// degraded is the reply for an external failure.
func degraded(ctx context.Context, s session.State, op string, err error) session.Update {
	slog.Warn("handler external operation failed",
		trace.Attr(ctx),
		"tenant", s.Caller.TenantID,
		"op", op,
		"err", err,
	)
	return replyText(s, msgTryAgain).WithError(session.KindExternalOperation, fmt.Errorf("%s: %w", op, err))
}

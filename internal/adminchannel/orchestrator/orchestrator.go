// Package orchestrator drives one admin-channel turn through the fixed node
// sequence start → intent_resolution → permission_check → dispatch →
// handler_execution → end.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fernandofuc/tistis-platform-sub010/common/redact"
	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/handlers"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/nlp"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/policy"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

// DefaultResponse is sent when a turn ends without any handler reply.
const DefaultResponse = "Lo siento, no pude procesar tu mensaje. Intenta de nuevo."

// Node names a state of the turn machine.
type Node string

const (
	NodeStart            Node = "start"
	NodeIntentResolution Node = "intent_resolution"
	NodePermissionCheck  Node = "permission_check"
	NodeDispatch         Node = "dispatch"
	NodeHandlerExecution Node = "handler_execution"
	NodeEnd              Node = "end"
)

// MinIterations is the smallest MaxIterations that lets a turn reach its
// handler: one entry each for start, intent_resolution, permission_check,
// dispatch and handler_execution, plus one.
const MinIterations = 6

// ErrMissingHandler is returned by New when the handler set is incomplete.
var ErrMissingHandler = errors.New("orchestrator: missing handler")

// Classifier is the fallback intent classifier. *nlp.Classifier satisfies it.
type Classifier interface {
	Classify(ctx context.Context, key, systemPrompt string, history []nlp.Message, text string) (*nlp.Result, error)
}

// Config wires an Orchestrator.
type Config struct {
	// Classifier may be nil; unmatched messages then resolve to unknown.
	Classifier Classifier
	// Handlers must contain every intent.HandlerName.
	Handlers map[intent.HandlerName]handlers.Func
}

// Orchestrator runs turns. It holds no per-turn state and is safe for
// concurrent use.
type Orchestrator struct {
	classifier Classifier
	handlers   map[intent.HandlerName]handlers.Func
}

var allHandlers = []intent.HandlerName{
	intent.HandlerHelp, intent.HandlerGreeting, intent.HandlerAnalytics, intent.HandlerConfig,
	intent.HandlerOperations, intent.HandlerNotifications, intent.HandlerConfirm, intent.HandlerCancel,
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	for _, name := range allHandlers {
		if cfg.Handlers[name] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, name)
		}
	}
	hs := make(map[intent.HandlerName]handlers.Func, len(cfg.Handlers))
	for k, v := range cfg.Handlers {
		hs[k] = v
	}
	return &Orchestrator{classifier: cfg.Classifier, handlers: hs}, nil
}

// Run executes one turn and returns the final state. It never fails: every
// error is folded into the state and a response is always produced.
func (o *Orchestrator) Run(ctx context.Context, s session.State) session.State {
	node := NodeStart
	for node != NodeEnd {
		s.Iteration++
		if s.Iteration >= s.MaxIterations {
			s = o.tripLoopGuard(ctx, s, node)
			break
		}

		switch node {
		case NodeStart:
			node = NodeIntentResolution
		case NodeIntentResolution:
			s, node = o.resolveIntent(ctx, s)
		case NodePermissionCheck:
			s, node = o.checkPermission(ctx, s)
		case NodeDispatch:
			s, node = o.dispatch(s)
		case NodeHandlerExecution:
			s, node = o.execute(ctx, s)
		default:
			node = NodeEnd
		}
	}
	return o.finish(ctx, s)
}

func (o *Orchestrator) tripLoopGuard(ctx context.Context, s session.State, at Node) session.State {
	slog.Warn("turn loop guard tripped",
		trace.Attr(ctx),
		"tenant", s.Caller.TenantID,
		"node", at,
		"iteration", s.Iteration,
		"max_iterations", s.MaxIterations,
	)
	u := session.Update{ShouldEnd: session.Ptr(true), LoopGuardTripped: session.Ptr(true)}
	if s.Error == nil {
		u = u.WithError(session.KindLoopGuard, fmt.Errorf("stopped at %s after %d iterations", at, s.Iteration))
	}
	return s.Apply(u)
}

func (o *Orchestrator) resolveIntent(ctx context.Context, s session.State) (session.State, Node) {
	if m, ok := intent.Match(s.Message.Text); ok {
		return s.Apply(session.Update{
			Intent:     session.Ptr(m.Intent),
			Confidence: session.Ptr(m.Confidence),
			Entities:   m.Entities,
			ResolvedBy: session.Ptr(session.ResolvedFast),
		}), NodePermissionCheck
	}

	if o.classifier == nil {
		return s.Apply(session.Update{
			Intent:     session.Ptr(intent.Unknown),
			Confidence: session.Ptr(0.0),
			ResolvedBy: session.Ptr(session.ResolvedFallback),
		}), NodePermissionCheck
	}

	history := make([]nlp.Message, 0, len(s.History))
	for _, h := range s.History {
		history = append(history, nlp.Message{Role: string(h.Role), Content: h.Content})
	}
	prompt := nlp.SystemPrompt(s.Caller.BusinessName, s.Caller.Vertical)

	res, err := o.classifier.Classify(ctx, s.Caller.TenantID, prompt, history, s.Message.Text)
	if err != nil {
		slog.Warn("intent classification failed",
			trace.Attr(ctx),
			"tenant", s.Caller.TenantID,
			"text", redact.Phone(s.Message.Text),
			"err", err,
		)
		return s.Apply(session.Update{
			Intent:     session.Ptr(intent.Unknown),
			Confidence: session.Ptr(0.0),
			ResolvedBy: session.Ptr(session.ResolvedFallback),
		}.WithError(session.KindClassification, err)), NodeDispatch
	}

	return s.Apply(session.Update{
		Intent:     session.Ptr(res.Intent),
		Confidence: session.Ptr(res.Confidence),
		Entities:   res.Entities,
		ResolvedBy: session.Ptr(session.ResolvedClassifier),
	}), NodePermissionCheck
}

func (o *Orchestrator) checkPermission(ctx context.Context, s session.State) (session.State, Node) {
	d := policy.Evaluate(s.Intent, s.Caller.Capabilities)
	if d.Allowed {
		return s, NodeDispatch
	}

	slog.Warn("intent denied",
		trace.Attr(ctx),
		"tenant", s.Caller.TenantID,
		"user", s.Caller.UserID,
		"intent", s.Intent,
		"rule", d.Rule,
		"reason", d.Reason,
	)
	msg := format.Text(policy.DenialMessage, s.Caller.Channel)
	u := session.Finish(msg)
	u.AttemptedIntent = session.Ptr(s.Intent)
	u.Denied = session.Ptr(true)
	u = u.WithError(session.KindPermissionDenied, errors.New(d.Reason))
	return s.Apply(u), NodeEnd
}

// dispatch picks the handler. A turn that already carries an error always
// goes to help.
func (o *Orchestrator) dispatch(s session.State) (session.State, Node) {
	name := intent.Route(s.Intent)
	if s.Error != nil {
		name = intent.HandlerHelp
	}
	return s.Apply(session.Update{Handler: session.Ptr(name)}), NodeHandlerExecution
}

func (o *Orchestrator) execute(ctx context.Context, s session.State) (session.State, Node) {
	h, ok := o.handlers[s.Handler]
	if !ok {
		h = o.handlers[intent.HandlerHelp]
	}
	s = s.Apply(o.safeCall(ctx, h, s))
	if s.ShouldEnd {
		return s, NodeEnd
	}
	return s, NodeIntentResolution
}

// safeCall runs h, converting a panic into a degraded reply.
func (o *Orchestrator) safeCall(ctx context.Context, h handlers.Func, s session.State) (u session.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("handler panicked",
				trace.Attr(ctx),
				"tenant", s.Caller.TenantID,
				"handler", s.Handler,
				"panic", r,
			)
			u = session.Finish(format.Text(DefaultResponse, s.Caller.Channel)).
				WithError(session.KindExternalOperation, fmt.Errorf("handler %s panicked: %v", s.Handler, r))
		}
	}()
	return h(ctx, s)
}

// finish applies the default response and records the exchange in history.
func (o *Orchestrator) finish(ctx context.Context, s session.State) session.State {
	u := session.Update{ShouldEnd: session.Ptr(true)}
	if s.Response == "" {
		msg := format.Text(DefaultResponse, s.Caller.Channel)
		u.Reply = &msg
	}
	s = s.Apply(u)
	s = s.Apply(session.Update{History: []session.HistoryEntry{
		{Role: session.RoleUser, Content: s.Message.Text},
		{Role: session.RoleAssistant, Content: s.Response},
	}})

	attrs := []any{
		trace.Attr(ctx),
		"tenant", s.Caller.TenantID,
		"intent", s.Intent,
		"confidence", s.Confidence,
		"handler", s.Handler,
		"resolved_by", s.ResolvedBy,
		"iterations", s.Iteration,
		"denied", s.Denied,
		"loop_guard", s.LoopGuardTripped,
	}
	if s.Error != nil {
		attrs = append(attrs, "error_kind", s.Error.Kind, "error", redact.Phone(s.Error.Message))
	}
	slog.Info("turn completed", attrs...)
	return s
}

// Package session holds the per-turn state of an admin-channel conversation
// and the pure transition that folds handler output into it.
package session

import (
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/policy"
)

const (
	MaxHistory           = 20
	MaxExecuted          = 50
	DefaultMaxIterations = 10
)

// Role of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is one message in the conversation window.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Resolution records which path produced the turn's intent.
type Resolution string

const (
	ResolvedFast       Resolution = "fast"
	ResolvedClassifier Resolution = "classifier"
	ResolvedFallback   Resolution = "fallback"
)

// Caller is the authenticated operator. It never changes during a turn.
type Caller struct {
	TenantID     string              `json:"tenant_id"`
	UserID       string              `json:"user_id"`
	DisplayName  string              `json:"display_name,omitempty"`
	BusinessName string              `json:"business_name,omitempty"`
	Vertical     string              `json:"vertical,omitempty"`
	Capabilities policy.Capabilities `json:"capabilities"`
	Channel      format.Channel      `json:"channel"`
	Locale       string              `json:"locale,omitempty"`
	Timezone     string              `json:"timezone,omitempty"`
}

// Location resolves Timezone, falling back to UTC.
func (c Caller) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// InboundMessage is the operator message that started the turn.
type InboundMessage struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// State is the session state for one turn. Treat it as a value: Apply
// returns a new State and never mutates the receiver's maps or slices.
type State struct {
	Caller  Caller
	Message InboundMessage
	History []HistoryEntry

	Intent     intent.Intent
	Confidence float64
	Entities   map[string]any

	Pending  *PendingAction
	Executed []ExecutedAction

	Iteration     int
	MaxIterations int

	ShouldEnd bool
	Response  string
	Keyboard  format.Keyboard
	ParseMode format.ParseMode
	Error     *TurnError

	AttemptedIntent  intent.Intent
	Denied           bool
	LoopGuardTripped bool
	Handler          intent.HandlerName
	ResolvedBy       Resolution
}

// New builds the initial state for a turn from the persisted conversation
// pieces. History and Executed are truncated to their windows.
func New(caller Caller, msg InboundMessage, history []HistoryEntry, pending *PendingAction, executed []ExecutedAction, maxIterations int) State {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}
	return State{
		Caller:        caller,
		Message:       msg,
		History:       tail(append([]HistoryEntry(nil), history...), MaxHistory),
		Intent:        intent.Unknown,
		Entities:      map[string]any{},
		Pending:       pending,
		Executed:      tail(append([]ExecutedAction(nil), executed...), MaxExecuted),
		MaxIterations: maxIterations,
	}
}

// Apply folds u into s and returns the result. Per-field semantics:
//
//	Intent, Confidence, ShouldEnd, Error  replace when set
//	Reply                                  replaces Response, Keyboard and ParseMode together
//	Entities                               key-wise merge
//	Pending                                keep, set or clear
//	Executed, History                      append, then keep the newest window
func (s State) Apply(u Update) State {
	next := s

	if u.Intent != nil {
		next.Intent = *u.Intent
	}
	if u.Confidence != nil {
		next.Confidence = clamp01(*u.Confidence)
	}
	if u.ShouldEnd != nil {
		next.ShouldEnd = *u.ShouldEnd
	}
	if u.Error != nil {
		e := *u.Error
		next.Error = &e
	}
	if u.ClearError {
		next.Error = nil
	}
	if u.Reply != nil {
		next.Response = u.Reply.Text
		next.Keyboard = u.Reply.Keyboard
		next.ParseMode = u.Reply.ParseMode
	}

	if len(u.Entities) > 0 {
		merged := make(map[string]any, len(s.Entities)+len(u.Entities))
		for k, v := range s.Entities {
			merged[k] = v
		}
		for k, v := range u.Entities {
			merged[k] = v
		}
		next.Entities = merged
	}

	switch u.PendingOp {
	case PendingSet:
		next.Pending = u.Pending
	case PendingClear:
		next.Pending = nil
	}

	if len(u.Executed) > 0 {
		joined := make([]ExecutedAction, 0, len(s.Executed)+len(u.Executed))
		joined = append(append(joined, s.Executed...), u.Executed...)
		next.Executed = tail(joined, MaxExecuted)
	}
	if len(u.History) > 0 {
		joined := make([]HistoryEntry, 0, len(s.History)+len(u.History))
		joined = append(append(joined, s.History...), u.History...)
		next.History = tail(joined, MaxHistory)
	}

	if u.AttemptedIntent != nil {
		next.AttemptedIntent = *u.AttemptedIntent
	}
	if u.Denied != nil {
		next.Denied = *u.Denied
	}
	if u.LoopGuardTripped != nil {
		next.LoopGuardTripped = *u.LoopGuardTripped
	}
	if u.Handler != nil {
		next.Handler = *u.Handler
	}
	if u.ResolvedBy != nil {
		next.ResolvedBy = *u.ResolvedBy
	}
	return next
}

// EntityString returns Entities[key] when it is a non-empty string.
func (s State) EntityString(key string) string {
	if v, ok := s.Entities[key].(string); ok {
		return v
	}
	return ""
}

func tail[T any](xs []T, n int) []T {
	if len(xs) <= n {
		return xs
	}
	return xs[len(xs)-n:]
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

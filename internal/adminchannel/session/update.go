package session

import (
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
)

// PendingOp selects what Apply does with the pending-action slot.
type PendingOp int

const (
	PendingKeep PendingOp = iota
	PendingSet
	PendingClear
)

// Update is a partial state produced by one orchestrator step or handler.
// Nil pointer fields are left untouched by Apply.
type Update struct {
	Intent     *intent.Intent
	Confidence *float64
	ShouldEnd  *bool
	Error      *TurnError
	ClearError bool
	Reply      *format.Message

	Entities map[string]any

	PendingOp PendingOp
	Pending   *PendingAction

	Executed []ExecutedAction
	History  []HistoryEntry

	AttemptedIntent  *intent.Intent
	Denied           *bool
	LoopGuardTripped *bool
	Handler          *intent.HandlerName
	ResolvedBy       *Resolution
}

// Ptr returns a pointer to v, for filling optional Update fields.
func Ptr[T any](v T) *T { return &v }

// Finish is the usual handler result: reply with msg and end the turn.
func Finish(msg format.Message) Update {
	return Update{Reply: &msg, ShouldEnd: Ptr(true)}
}

// WithError attaches a turn error.
func (u Update) WithError(kind ErrorKind, err error) Update {
	u.Error = NewError(kind, err)
	return u
}

// WithPending stores p in the pending slot, replacing any previous proposal.
func (u Update) WithPending(p *PendingAction) Update {
	u.PendingOp, u.Pending = PendingSet, p
	return u
}

// ClearPending empties the pending slot.
func (u Update) ClearPending() Update {
	u.PendingOp, u.Pending = PendingClear, nil
	return u
}

// Record appends an executed action.
func (u Update) Record(a ExecutedAction) Update {
	u.Executed = append(u.Executed, a)
	return u
}

package handlers

import (
	"context"
	"log/slog"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

// msgCancelled is used when the catalogue itself cannot be consulted.
const msgCancelled = "Acción cancelada."

// Cancel discards the pending action. Whatever happens, the turn ends with
// the pending slot empty.
func (h *Handlers) Cancel(ctx context.Context, s session.State) (u session.Update) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cancel handler panicked", trace.Attr(ctx), "tenant", s.Caller.TenantID, "panic", r)
			u = session.Finish(format.Text(msgCancelled, s.Caller.Channel)).ClearPending()
		}
	}()

	if s.Pending == nil {
		return replyText(s, messages.Cancel.Nothing)
	}
	slog.Info("pending action cancelled",
		trace.Attr(ctx),
		"tenant", s.Caller.TenantID,
		"action", s.Pending.Type,
		"entity", s.Pending.EntityType,
	)
	return replyText(s, messages.cancelMessage(s.Pending.Type, s.Pending.EntityType)).ClearPending()
}

// Package audit mirrors notable admin-channel events to an operations room.
//
// The SQLite audit_log table is the record of truth; the notifier posts a
// short human-readable line per event so operators can follow activity
// without querying the log. Every notice carries the turn's trace ID so the
// full entry can be found with GET /v1/audit.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
)

// Kind is a machine-readable event category.
type Kind string

const (
	KindActionExecuted   Kind = "action.executed"
	KindActionFailed     Kind = "action.failed"
	KindAccessDenied     Kind = "access.denied"
	KindClassifierFailed Kind = "classifier.failed"
	KindLoopGuard        Kind = "turn.loop_guard"
	KindNotificationTest Kind = "notification.test"
	KindError            Kind = "error"
)

// Event carries the data that the notifier formats and sends.
type Event struct {
	Kind Kind
	// Tenant is the business the event belongs to.
	Tenant string
	// Actor is the operator user ID that triggered the event.
	Actor string
	// Target is the affected record ("service svc-123", "analytics_sales").
	Target  string
	Message string
	// TraceID defaults to the one in the context.
	TraceID   string
	Timestamp time.Time
}

// Notifier sends ops-room notifications. Notify must not block the turn for
// long; failures are logged, not returned.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}

// Sender is the subset of the Matrix client the notifier needs.
type Sender interface {
	SendNotice(ctx context.Context, roomID, message string) error
}

// DefaultSendTimeout bounds a single notice.
const DefaultSendTimeout = 5 * time.Second

// MatrixNotifier posts notices to a Matrix room.
type MatrixNotifier struct {
	sender  Sender
	roomID  string
	timeout time.Duration
}

// NewMatrixNotifier creates a MatrixNotifier that posts to roomID via sender.
func NewMatrixNotifier(sender Sender, roomID string) *MatrixNotifier {
	return &MatrixNotifier{sender: sender, roomID: roomID, timeout: DefaultSendTimeout}
}

// Notify formats evt and posts it to the room.
func (n *MatrixNotifier) Notify(ctx context.Context, evt Event) {
	if n.roomID == "" || n.sender == nil {
		return
	}

	tid := evt.TraceID
	if tid == "" {
		tid = trace.FromContext(ctx)
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	msg := Format(evt)
	if tid != "" {
		msg = fmt.Sprintf("%s\n  trace: %s", msg, tid)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()
	if err := n.sender.SendNotice(ctx, n.roomID, msg); err != nil {
		slog.Warn("audit notifier: failed to send room notice",
			"room", n.roomID, "kind", evt.Kind, "err", err)
		return
	}
	slog.Debug("audit notifier: sent notice", "room", n.roomID, "kind", evt.Kind)
}

// Format renders evt without the trace line.
func Format(evt Event) string {
	icon := kindIcon(evt.Kind)
	msg := fmt.Sprintf("%s [%s] %s", icon, evt.Kind, evt.Message)
	if evt.Target != "" {
		msg = fmt.Sprintf("%s %s → %s", icon, evt.Target, evt.Message)
	}
	if evt.Tenant != "" {
		msg = fmt.Sprintf("%s\n  tenant: %s", msg, evt.Tenant)
	}
	if evt.Actor != "" {
		msg = fmt.Sprintf("%s\n  actor: %s", msg, evt.Actor)
	}
	return msg
}

// Noop is used when ops-room notifications are disabled.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}

func kindIcon(k Kind) string {
	switch k {
	case KindActionExecuted:
		return "✅"
	case KindActionFailed:
		return "⚠️"
	case KindAccessDenied:
		return "🚫"
	case KindClassifierFailed:
		return "🤔"
	case KindLoopGuard:
		return "🔁"
	case KindNotificationTest:
		return "🔔"
	case KindError:
		return "🚨"
	default:
		return "ℹ️"
	}
}

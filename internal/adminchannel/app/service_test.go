package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/audit"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/conversation"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// stubRunner answers every turn with reply and lets tests shape the state.
type stubRunner struct {
	reply  string
	mutate func(s session.State) session.State
	calls  int
}

func (r *stubRunner) Run(_ context.Context, s session.State) session.State {
	r.calls++
	s.Response = r.reply
	s.ShouldEnd = true
	if r.mutate != nil {
		s = r.mutate(s)
	}
	return s
}

// brokenConversations fails loads or persists on demand.
type brokenConversations struct {
	conversation.Store
	loadErr    error
	persistErr error
}

func (b brokenConversations) Load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.Store.Load(ctx, id)
}

func (b brokenConversations) Persist(ctx context.Context, id string, snap conversation.Snapshot) error {
	if b.persistErr != nil {
		return b.persistErr
	}
	return b.Store.Persist(ctx, id, snap)
}

type auditRow struct {
	traceID, tenant, action, target, result string
}

type recordingAudit struct {
	mu   sync.Mutex
	rows []auditRow
}

func (a *recordingAudit) WriteAudit(_ context.Context, traceID, tenantID, _, action, target, result string, _ store.AuditPayload, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, auditRow{traceID, tenantID, action, target, result})
	return nil
}

func (a *recordingAudit) GetAuditLog(context.Context, string, int) ([]store.AuditEntry, error) {
	return nil, nil
}

type recordingNotifier struct{ events []audit.Event }

func (n *recordingNotifier) Notify(_ context.Context, evt audit.Event) {
	n.events = append(n.events, evt)
}

func memoryStore(t *testing.T) conversation.Store {
	t.Helper()
	cs, err := conversation.New(conversation.DriverMemory)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func newTestService(t *testing.T, cs conversation.Store, r Runner) (*Service, *recordingAudit, *recordingNotifier) {
	t.Helper()
	a, n := &recordingAudit{}, &recordingNotifier{}
	svc, err := NewService(ServiceConfig{Conversations: cs, Runner: r, Audit: a, Notifier: n})
	require.NoError(t, err)
	return svc, a, n
}

func request(text string) TurnRequest {
	return TurnRequest{
		ConversationID: "conv-1",
		Caller: session.Caller{
			TenantID: "tenant-1",
			UserID:   "owner",
			Channel:  format.Telegram,
		},
		Message: session.InboundMessage{Text: text, ReceivedAt: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)},
	}
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(ServiceConfig{Runner: &stubRunner{}})
	require.Error(t, err)
	_, err = NewService(ServiceConfig{Conversations: memoryStore(t)})
	require.Error(t, err)
}

func TestHandleTurn_InvalidRequest(t *testing.T) {
	r := &stubRunner{reply: "hola"}
	svc, _, _ := newTestService(t, memoryStore(t), r)

	req := request("")
	req.Caller.Channel = "sms"
	_, err := svc.HandleTurn(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidRequest)
	require.ErrorContains(t, err, "message.text")
	require.ErrorContains(t, err, "caller.channel")
	require.Zero(t, r.calls)
}

func TestHandleTurn_PersistsConversation(t *testing.T) {
	cs := memoryStore(t)
	r := &stubRunner{reply: "hola", mutate: func(s session.State) session.State {
		s.History = append(s.History,
			session.HistoryEntry{Role: session.RoleUser, Content: s.Message.Text},
			session.HistoryEntry{Role: session.RoleAssistant, Content: "hola"})
		return s
	}}
	svc, _, _ := newTestService(t, cs, r)

	resp, err := svc.HandleTurn(context.Background(), request("hola"))
	require.NoError(t, err)
	require.Equal(t, "conv-1", resp.ConversationID)
	require.Equal(t, "hola", resp.Text)
	require.NotEmpty(t, resp.TraceID)

	_, err = svc.HandleTurn(context.Background(), request("otra vez"))
	require.NoError(t, err)

	snap, err := cs.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, "tenant-1", snap.TenantID)
	require.Len(t, snap.History, 4)
	require.EqualValues(t, 2, snap.Version)
}

func TestHandleTurn_GeneratesConversationID(t *testing.T) {
	svc, _, _ := newTestService(t, memoryStore(t), &stubRunner{reply: "ok"})
	req := request("hola")
	req.ConversationID = ""

	resp, err := svc.HandleTurn(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ConversationID)
}

func TestHandleTurn_KeepsIncomingTraceID(t *testing.T) {
	svc, a, _ := newTestService(t, memoryStore(t), &stubRunner{reply: "no", mutate: func(s session.State) session.State {
		s.Denied = true
		s.AttemptedIntent = intent.AnalyticsSales
		return s
	}})

	ctx := trace.WithTraceID(context.Background(), "turn_incoming")
	resp, err := svc.HandleTurn(ctx, request("/ventas"))
	require.NoError(t, err)
	require.Equal(t, "turn_incoming", resp.TraceID)
	require.Len(t, a.rows, 1)
	require.Equal(t, "turn_incoming", a.rows[0].traceID)
}

func TestHandleTurn_LoadFailureReturnsFallback(t *testing.T) {
	r := &stubRunner{reply: "never"}
	cs := brokenConversations{Store: memoryStore(t), loadErr: errors.New("connection refused")}
	svc, _, _ := newTestService(t, cs, r)

	resp, err := svc.HandleTurn(context.Background(), request("hola"))
	require.ErrorIs(t, err, ErrConversationStore)
	require.Equal(t, msgUnavailable, resp.Text)
	require.NotNil(t, resp.Error)
	require.Equal(t, session.KindExternalOperation, resp.Error.Kind)
	require.Zero(t, r.calls)
}

func TestHandleTurn_PersistFailureKeepsReply(t *testing.T) {
	cs := brokenConversations{Store: memoryStore(t), persistErr: conversation.ErrVersionConflict}
	svc, _, _ := newTestService(t, cs, &stubRunner{reply: "listo"})

	resp, err := svc.HandleTurn(context.Background(), request("hola"))
	require.ErrorIs(t, err, ErrConversationStore)
	require.ErrorIs(t, err, conversation.ErrVersionConflict)
	require.Equal(t, "listo", resp.Text)
}

func TestHandleTurn_TenantMismatch(t *testing.T) {
	cs := memoryStore(t)
	svc, _, _ := newTestService(t, cs, &stubRunner{reply: "ok"})
	_, err := svc.HandleTurn(context.Background(), request("hola"))
	require.NoError(t, err)

	other := request("hola")
	other.Caller.TenantID = "tenant-2"
	_, err = svc.HandleTurn(context.Background(), other)
	require.ErrorIs(t, err, ErrTenantMismatch)
}

func TestHandleTurn_UserMismatch(t *testing.T) {
	cs := memoryStore(t)
	runner := &stubRunner{reply: "ok", mutate: func(s session.State) session.State {
		s.Pending = session.NewPending(session.ActionDelete, session.EntityService, nil, "svc-1", s.Message.ReceivedAt, 0)
		return s
	}}
	svc, _, _ := newTestService(t, cs, runner)
	_, err := svc.HandleTurn(context.Background(), request("borra consulta"))
	require.NoError(t, err)
	require.Equal(t, 1, runner.calls)

	other := request("sí")
	other.Caller.UserID = "staff-2"
	resp, err := svc.HandleTurn(context.Background(), other)
	require.ErrorIs(t, err, ErrUserMismatch)
	require.Empty(t, resp.Text)
	require.Equal(t, 1, runner.calls)

	snap, err := cs.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Equal(t, "owner", snap.UserID)
	require.NotNil(t, snap.Pending)
}

func TestHandleTurn_RecordsExecutedActions(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	p := session.NewPending(session.ActionUpdate, session.EntityPrice, map[string]any{"name": "Consulta"}, "svc-1", now, 0)

	svc, a, n := newTestService(t, memoryStore(t), &stubRunner{reply: "✅", mutate: func(s session.State) session.State {
		s.Executed = append(s.Executed,
			session.Executed(p, "svc-1", nil, now),
			session.Executed(p, "svc-1", errors.New("not found"), now))
		return s
	}})

	resp, err := svc.HandleTurn(context.Background(), request("/confirmar"))
	require.NoError(t, err)
	require.Len(t, resp.Executed, 2)

	require.Len(t, a.rows, 2)
	require.Equal(t, string(audit.KindActionExecuted), a.rows[0].action)
	require.Equal(t, "price svc-1", a.rows[0].target)
	require.Equal(t, "success", a.rows[0].result)
	require.Equal(t, string(audit.KindActionFailed), a.rows[1].action)
	require.Equal(t, "failure", a.rows[1].result)

	require.Len(t, n.events, 2)
	require.Equal(t, audit.KindActionExecuted, n.events[0].Kind)
}

func TestHandleTurn_OnlyNewActionsAreReported(t *testing.T) {
	cs := memoryStore(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	p := session.NewPending(session.ActionDelete, session.EntityStaff, nil, "st-1", now, 0)

	first := true
	svc, a, _ := newTestService(t, cs, &stubRunner{reply: "ok", mutate: func(s session.State) session.State {
		if first {
			s.Executed = append(s.Executed, session.Executed(p, "st-1", nil, now))
			first = false
		}
		return s
	}})

	_, err := svc.HandleTurn(context.Background(), request("/confirmar"))
	require.NoError(t, err)
	resp, err := svc.HandleTurn(context.Background(), request("hola"))
	require.NoError(t, err)
	require.Empty(t, resp.Executed)
	require.Len(t, a.rows, 1)
}

func TestHandleTurn_RecordsClassifierAndLoopGuard(t *testing.T) {
	svc, a, n := newTestService(t, memoryStore(t), &stubRunner{reply: "?", mutate: func(s session.State) session.State {
		s.Error = &session.TurnError{Kind: session.KindClassification, Message: "no JSON object"}
		s.LoopGuardTripped = true
		s.Iteration = 10
		return s
	}})

	_, err := svc.HandleTurn(context.Background(), request("asdf"))
	require.NoError(t, err)

	var actions []string
	for _, r := range a.rows {
		actions = append(actions, r.action)
	}
	require.ElementsMatch(t, []string{string(audit.KindClassifierFailed), string(audit.KindLoopGuard)}, actions)
	require.Len(t, n.events, 2)
}

func TestHandleTurn_RecordsNotificationTest(t *testing.T) {
	svc, a, _ := newTestService(t, memoryStore(t), &stubRunner{reply: "ok", mutate: func(s session.State) session.State {
		s.Intent = intent.NotificationTest
		s.Handler = intent.HandlerNotifications
		s.Entities = map[string]any{"succeeded": 2, "failed": 0}
		return s
	}})

	_, err := svc.HandleTurn(context.Background(), request("prueba de notificaciones"))
	require.NoError(t, err)
	require.Len(t, a.rows, 1)
	require.Equal(t, string(audit.KindNotificationTest), a.rows[0].action)
	require.Equal(t, "success", a.rows[0].result)
}

func TestHandleTurn_PendingExpiryIsReported(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	p := session.NewPending(session.ActionCreate, session.EntityService, map[string]any{"name": "Rayos X"}, "", now, 0)
	svc, _, _ := newTestService(t, memoryStore(t), &stubRunner{reply: "¿Confirmas?", mutate: func(s session.State) session.State {
		s.Pending = p
		return s
	}})

	resp, err := svc.HandleTurn(context.Background(), request("crear servicio Rayos X a $300"))
	require.NoError(t, err)
	require.Equal(t, p.ExpiresAt, resp.PendingExpires)
}

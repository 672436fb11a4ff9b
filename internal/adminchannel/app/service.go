package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/audit"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/conversation"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// msgUnavailable is returned when the conversation could not be loaded.
const msgUnavailable = "El servicio no está disponible en este momento. Intenta de nuevo en unos minutos."

var (
	// ErrInvalidRequest means the turn request is missing required fields.
	ErrInvalidRequest = errors.New("invalid turn request")
	// ErrTenantMismatch means the conversation belongs to another tenant.
	ErrTenantMismatch = errors.New("conversation belongs to another tenant")
	// ErrUserMismatch means the conversation was opened by another user of
	// the same tenant.
	ErrUserMismatch = errors.New("conversation belongs to another user")
	// ErrConversationStore wraps load and persist failures.
	ErrConversationStore = errors.New("conversation store unavailable")
)

// Runner executes one turn. *orchestrator.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, s session.State) session.State
}

// AuditLog is the audit trail. *store.Store satisfies it.
type AuditLog interface {
	WriteAudit(ctx context.Context, traceID, tenantID, actor, action, target, result string, payload store.AuditPayload, errorMsg string) error
	GetAuditLog(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error)
}

// TurnRequest is one inbound operator message.
type TurnRequest struct {
	// ConversationID is generated when empty and echoed in the response.
	ConversationID string                 `json:"conversation_id"`
	Caller         session.Caller         `json:"caller"`
	Message        session.InboundMessage `json:"message"`
}

// TurnResponse is the outbound payload for the channel sender.
type TurnResponse struct {
	ConversationID string                   `json:"conversation_id"`
	TraceID        string                   `json:"trace_id"`
	Text           string                   `json:"text"`
	Keyboard       format.Keyboard          `json:"keyboard,omitempty"`
	ParseMode      format.ParseMode         `json:"parse_mode,omitempty"`
	Intent         intent.Intent            `json:"intent"`
	Handler        intent.HandlerName       `json:"handler,omitempty"`
	ResolvedBy     session.Resolution       `json:"resolved_by,omitempty"`
	Executed       []session.ExecutedAction `json:"executed,omitempty"`
	PendingExpires string                   `json:"pending_expires_at,omitempty"`
	Error          *session.TurnError       `json:"error,omitempty"`
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Conversations conversation.Store
	Runner        Runner
	// Audit may be nil; audit rows are then skipped.
	Audit AuditLog
	// Notifier may be nil; defaults to audit.Noop.
	Notifier      audit.Notifier
	MaxIterations int
	HistoryLimit  int
	// StoreTimeout bounds each conversation store call.
	StoreTimeout time.Duration
}

// Service runs turns end to end: load the conversation, run the
// orchestrator, persist, then record audit rows and ops-room notices.
type Service struct {
	conversations conversation.Store
	runner        Runner
	audit         AuditLog
	notifier      audit.Notifier
	maxIterations int
	historyLimit  int
	storeTimeout  time.Duration
}

// NewService validates cfg and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Conversations == nil {
		return nil, errors.New("app: conversation store is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("app: runner is required")
	}
	s := &Service{
		conversations: cfg.Conversations,
		runner:        cfg.Runner,
		audit:         cfg.Audit,
		notifier:      cfg.Notifier,
		maxIterations: cfg.MaxIterations,
		historyLimit:  cfg.HistoryLimit,
		storeTimeout:  cfg.StoreTimeout,
	}
	if s.notifier == nil {
		s.notifier = audit.Noop{}
	}
	if s.maxIterations <= 0 {
		s.maxIterations = session.DefaultMaxIterations
	}
	if s.historyLimit <= 0 || s.historyLimit > session.MaxHistory {
		s.historyLimit = session.MaxHistory
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = 5 * time.Second
	}
	return s, nil
}

// HandleTurn processes req. A non-nil error is returned only for invalid
// requests and conversation store failures; in the latter case the response
// is still usable: a "try again" message when loading failed, or the real
// reply when only persisting failed.
func (s *Service) HandleTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	ctx, traceID := trace.Ensure(ctx)

	if err := validateRequest(req); err != nil {
		return TurnResponse{TraceID: traceID}, err
	}
	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	if req.Message.ID == "" {
		req.Message.ID = uuid.NewString()
	}

	snap, err := s.load(ctx, convID)
	if err != nil {
		slog.Error("conversation load failed", trace.Attr(ctx), "conversation", convID, "err", err)
		return s.unavailable(convID, traceID, req.Caller.Channel), fmt.Errorf("%w: load %s: %v", ErrConversationStore, convID, err)
	}

	var (
		history  []session.HistoryEntry
		pending  *session.PendingAction
		executed []session.ExecutedAction
		version  int64
	)
	if snap != nil {
		if snap.TenantID != "" && snap.TenantID != req.Caller.TenantID {
			slog.Warn("conversation tenant mismatch", trace.Attr(ctx),
				"conversation", convID, "tenant", req.Caller.TenantID)
			return TurnResponse{ConversationID: convID, TraceID: traceID}, ErrTenantMismatch
		}
		if snap.UserID != "" && snap.UserID != req.Caller.UserID {
			slog.Warn("conversation user mismatch", trace.Attr(ctx),
				"conversation", convID, "user", req.Caller.UserID)
			return TurnResponse{ConversationID: convID, TraceID: traceID}, ErrUserMismatch
		}
		history = tailHistory(snap.History, s.historyLimit)
		pending, executed, version = snap.Pending, snap.Executed, snap.Version
	}

	initial := session.New(req.Caller, req.Message, history, pending, executed, s.maxIterations)
	final := s.runner.Run(ctx, initial)

	resp := TurnResponse{
		ConversationID: convID,
		TraceID:        traceID,
		Text:           final.Response,
		Keyboard:       final.Keyboard,
		ParseMode:      final.ParseMode,
		Intent:         final.Intent,
		Handler:        final.Handler,
		ResolvedBy:     final.ResolvedBy,
		Executed:       newActions(initial.Executed, final.Executed),
		Error:          final.Error,
	}
	if final.Pending != nil {
		resp.PendingExpires = final.Pending.ExpiresAt
	}

	s.record(ctx, final, resp.Executed)

	if err := s.persist(ctx, convID, conversation.FromState(convID, version, final)); err != nil {
		slog.Error("conversation persist failed", trace.Attr(ctx), "conversation", convID, "err", err)
		return resp, fmt.Errorf("%w: persist %s: %w", ErrConversationStore, convID, err)
	}
	return resp, nil
}

// AuditLog returns the newest audit entries for tenant.
func (s *Service) AuditLog(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.GetAuditLog(ctx, tenantID, limit)
}

func (s *Service) load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.conversations.Load(ctx, id)
}

func (s *Service) persist(ctx context.Context, id string, snap conversation.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.conversations.Persist(ctx, id, snap)
}

func (s *Service) unavailable(convID, traceID string, ch format.Channel) TurnResponse {
	msg := format.Text(msgUnavailable, ch)
	return TurnResponse{
		ConversationID: convID,
		TraceID:        traceID,
		Text:           msg.Text,
		ParseMode:      msg.ParseMode,
		Intent:         intent.Unknown,
		Error:          &session.TurnError{Kind: session.KindExternalOperation, Message: "conversation store unavailable"},
	}
}

// record writes audit rows and ops-room notices for the notable outcomes of
// a turn. Failures are logged and never affect the reply.
func (s *Service) record(ctx context.Context, st session.State, executed []session.ExecutedAction) {
	tenant, actor := st.Caller.TenantID, st.Caller.UserID

	for _, a := range executed {
		target := strings.TrimSpace(string(a.EntityType) + " " + a.EntityID)
		kind, result := audit.KindActionExecuted, "success"
		if !a.Success {
			kind, result = audit.KindActionFailed, "failure"
		}
		s.write(ctx, tenant, actor, string(kind), target, result,
			store.AuditPayload{"action_id": a.ID, "type": string(a.Type)}, a.Error)
		s.notify(ctx, audit.Event{Kind: kind, Tenant: tenant, Actor: actor, Target: target, Message: string(a.Type)})
	}

	if st.Denied {
		s.write(ctx, tenant, actor, string(audit.KindAccessDenied), string(st.AttemptedIntent), "denied", nil, "")
		s.notify(ctx, audit.Event{Kind: audit.KindAccessDenied, Tenant: tenant, Actor: actor,
			Target: string(st.AttemptedIntent), Message: "capability missing"})
	}

	if st.Error != nil && st.Error.Kind == session.KindClassification {
		s.write(ctx, tenant, actor, string(audit.KindClassifierFailed), "", "failure", nil, st.Error.Message)
		s.notify(ctx, audit.Event{Kind: audit.KindClassifierFailed, Tenant: tenant, Actor: actor, Message: st.Error.Message})
	}

	if st.LoopGuardTripped {
		s.write(ctx, tenant, actor, string(audit.KindLoopGuard), string(st.Handler), "failure",
			store.AuditPayload{"iterations": st.Iteration}, "")
		s.notify(ctx, audit.Event{Kind: audit.KindLoopGuard, Tenant: tenant, Actor: actor,
			Message: fmt.Sprintf("turn stopped after %d steps", st.Iteration)})
	}

	if st.Intent == intent.NotificationTest && st.Handler == intent.HandlerNotifications && !st.Denied {
		payload := store.AuditPayload{"succeeded": st.Entities["succeeded"], "failed": st.Entities["failed"]}
		result, errMsg := "success", ""
		if st.Error != nil {
			result, errMsg = "failure", st.Error.Message
		}
		s.write(ctx, tenant, actor, string(audit.KindNotificationTest), "", result, payload, errMsg)
		s.notify(ctx, audit.Event{Kind: audit.KindNotificationTest, Tenant: tenant, Actor: actor,
			Message: fmt.Sprintf("%v sent, %v failed", st.Entities["succeeded"], st.Entities["failed"])})
	}
}

func (s *Service) write(ctx context.Context, tenant, actor, action, target, result string, payload store.AuditPayload, errMsg string) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := s.audit.WriteAudit(ctx, trace.FromContext(ctx), tenant, actor, action, target, result, payload, errMsg); err != nil {
		slog.Warn("audit write failed", trace.Attr(ctx), "action", action, "err", err)
	}
}

func (s *Service) notify(ctx context.Context, evt audit.Event) {
	s.notifier.Notify(ctx, evt)
}

func validateRequest(req TurnRequest) error {
	var missing []string
	if strings.TrimSpace(req.Caller.TenantID) == "" {
		missing = append(missing, "caller.tenant_id")
	}
	if strings.TrimSpace(req.Caller.UserID) == "" {
		missing = append(missing, "caller.user_id")
	}
	if strings.TrimSpace(req.Message.Text) == "" {
		missing = append(missing, "message.text")
	}
	switch req.Caller.Channel {
	case format.Telegram, format.WhatsApp:
	default:
		missing = append(missing, "caller.channel")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing or invalid %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// newActions returns the entries of after that are not in before.
func newActions(before, after []session.ExecutedAction) []session.ExecutedAction {
	seen := make(map[string]bool, len(before))
	for _, a := range before {
		seen[a.ID] = true
	}
	var out []session.ExecutedAction
	for _, a := range after {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func tailHistory(h []session.HistoryEntry, n int) []session.HistoryEntry {
	if len(h) <= n {
		return h
	}
	return h[len(h)-n:]
}

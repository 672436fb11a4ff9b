package orchestrator_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/handlers"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/nlp"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/orchestrator"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/policy"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// stubClassifier returns a fixed result and counts calls.
type stubClassifier struct {
	mu    sync.Mutex
	res   *nlp.Result
	err   error
	calls int
}

func (c *stubClassifier) Classify(context.Context, string, string, []nlp.Message, string) (*nlp.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.res, c.err
}

func classifies(i intent.Intent, conf float64) *stubClassifier {
	return &stubClassifier{res: &nlp.Result{Intent: i, RawIntent: string(i), Confidence: conf, Entities: map[string]any{}}}
}

// spyBusiness counts every call before delegating to a real store.
type spyBusiness struct {
	store.BusinessStore
	mu        sync.Mutex
	calls     int
	mutations int
}

func (s *spyBusiness) count(mutation bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if mutation {
		s.mutations++
	}
}

func (s *spyBusiness) UpsertService(ctx context.Context, t string, v store.Service) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.UpsertService(ctx, t, v)
}

func (s *spyBusiness) DeleteService(ctx context.Context, t, id string) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.DeleteService(ctx, t, id)
}

func (s *spyBusiness) GetServices(ctx context.Context, t string) ([]store.Service, error) {
	s.count(false)
	return s.BusinessStore.GetServices(ctx, t)
}

func (s *spyBusiness) UpdatePriceByName(ctx context.Context, t, name string, price float64) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.UpdatePriceByName(ctx, t, name, price)
}

func (s *spyBusiness) UpsertHours(ctx context.Context, t string, h store.Hours) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.UpsertHours(ctx, t, h)
}

func (s *spyBusiness) GetHours(ctx context.Context, t string) ([]store.Hours, error) {
	s.count(false)
	return s.BusinessStore.GetHours(ctx, t)
}

func (s *spyBusiness) UpsertStaff(ctx context.Context, t string, m store.StaffMember) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.UpsertStaff(ctx, t, m)
}

func (s *spyBusiness) DeleteStaff(ctx context.Context, t, id string) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.DeleteStaff(ctx, t, id)
}

func (s *spyBusiness) GetStaff(ctx context.Context, t string) ([]store.StaffMember, error) {
	s.count(false)
	return s.BusinessStore.GetStaff(ctx, t)
}

func (s *spyBusiness) UpsertPromotion(ctx context.Context, t string, p store.Promotion) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.UpsertPromotion(ctx, t, p)
}

func (s *spyBusiness) DeletePromotion(ctx context.Context, t, id string) (store.Result, error) {
	s.count(true)
	return s.BusinessStore.DeletePromotion(ctx, t, id)
}

func (s *spyBusiness) GetActivePromotions(ctx context.Context, t string) ([]store.Promotion, error) {
	s.count(false)
	return s.BusinessStore.GetActivePromotions(ctx, t)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	st    *store.Store
	biz   *spyBusiness
	clock *clock
	h     *handlers.Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "orchestrator-test-*.db")
	require.NoError(t, err)
	f.Close()

	st, err := store.New(f.Name())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fx := &fixture{
		st:    st,
		biz:   &spyBusiness{BusinessStore: st},
		clock: &clock{now: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)},
	}
	fx.h = handlers.New(handlers.Config{
		Business:      fx.biz,
		Analytics:     st,
		Notifications: st,
		Now:           fx.clock.Now,
	})
	return fx
}

func (fx *fixture) orchestrator(t *testing.T, c orchestrator.Classifier) *orchestrator.Orchestrator {
	t.Helper()
	o, err := orchestrator.New(orchestrator.Config{Classifier: c, Handlers: fx.h.Registry()})
	require.NoError(t, err)
	return o
}

func caller(caps policy.Capabilities) session.Caller {
	return session.Caller{
		TenantID:     "tenant-1",
		UserID:       "owner",
		BusinessName: "Clínica Sonrisa",
		Vertical:     "dental",
		Capabilities: caps,
		Channel:      format.Telegram,
		Timezone:     "UTC",
	}
}

func allCaps() policy.Capabilities {
	return policy.Capabilities{CanViewAnalytics: true, CanConfigure: true, CanReceiveNotifications: true}
}

func turn(c session.Caller, text string, prev *session.State) session.State {
	msg := session.InboundMessage{ID: "m", Text: text}
	if prev == nil {
		return session.New(c, msg, nil, nil, nil, 0)
	}
	return session.New(c, msg, prev.History, prev.Pending, prev.Executed, 0)
}

func TestNew_RequiresEveryHandler(t *testing.T) {
	reg := newFixture(t).h.Registry()
	delete(reg, intent.HandlerCancel)

	_, err := orchestrator.New(orchestrator.Config{Handlers: reg})
	require.ErrorIs(t, err, orchestrator.ErrMissingHandler)
}

func TestScenarioA_HelpCommand(t *testing.T) {
	fx := newFixture(t)
	cls := classifies(intent.Greeting, 0.9)
	o := fx.orchestrator(t, cls)

	s := o.Run(context.Background(), turn(caller(allCaps()), "/ayuda", nil))

	require.Equal(t, intent.Help, s.Intent)
	require.Equal(t, 1.0, s.Confidence)
	require.Equal(t, session.ResolvedFast, s.ResolvedBy)
	require.Equal(t, intent.HandlerHelp, s.Handler)
	require.NotEmpty(t, s.Response)
	require.True(t, s.ShouldEnd)
	require.Zero(t, cls.calls)
	require.Nil(t, s.Error)
}

func TestScenarioBCD_ProposeConfirmExpire(t *testing.T) {
	fx := newFixture(t)
	o := fx.orchestrator(t, classifies(intent.ConfigServices, 0.92))
	ctx := context.Background()
	c := caller(allCaps())

	// B: propose.
	b := o.Run(ctx, turn(c, "agregar servicio Limpieza Dental $500", nil))
	require.Equal(t, intent.ConfigServices, b.Intent)
	require.Equal(t, session.ResolvedClassifier, b.ResolvedBy)
	require.True(t, b.ShouldEnd)
	require.Contains(t, b.Response, "Confirma el cambio")
	require.NotNil(t, b.Pending)
	require.Equal(t, session.ActionCreate, b.Pending.Type)
	price, ok := b.Pending.Number("price")
	require.True(t, ok)
	require.Equal(t, 500.0, price)
	require.Zero(t, fx.biz.mutations)

	// C: confirm within the TTL.
	cTurn := o.Run(ctx, turn(c, "sí", &b))
	require.Equal(t, intent.Confirm, cTurn.Intent)
	require.Equal(t, 1, fx.biz.mutations)
	require.Nil(t, cTurn.Pending)
	require.Len(t, cTurn.Executed, 1)
	require.True(t, cTurn.Executed[0].Success)

	services, err := fx.st.GetServices(ctx, "tenant-1")
	require.NoError(t, err)
	require.Len(t, services, 1)
	require.Equal(t, "Limpieza Dental", services[0].Name)

	// D: same proposal, confirmed after the TTL.
	fx.biz.mutations = 0
	d := o.Run(ctx, turn(c, "agregar servicio Blanqueamiento $900", nil))
	require.NotNil(t, d.Pending)

	fx.clock.Advance(session.DefaultPendingTTL + time.Second)
	expired := o.Run(ctx, turn(c, "sí", &d))
	require.Zero(t, fx.biz.mutations)
	require.Nil(t, expired.Pending)
	require.Contains(t, expired.Response, "expiró")
	require.Empty(t, expired.Executed)
}

func TestScenarioE_PriceChangeWithoutConfigure(t *testing.T) {
	fx := newFixture(t)
	o := fx.orchestrator(t, classifies(intent.ConfigPrices, 0.95))

	caps := allCaps()
	caps.CanConfigure = false
	s := o.Run(context.Background(), turn(caller(caps), "cambiar precio de Consulta a $600", nil))

	require.Equal(t, policy.DenialMessage, s.Response)
	require.True(t, s.Denied)
	require.Equal(t, intent.ConfigPrices, s.AttemptedIntent)
	require.True(t, s.ShouldEnd)
	require.Empty(t, s.Handler)
	require.Zero(t, fx.biz.calls)
	require.Nil(t, s.Pending)
}

func TestAnalyticsWithoutPermission_NoHandlerCall(t *testing.T) {
	calls := 0
	reg := newFixture(t).h.Registry()
	reg[intent.HandlerAnalytics] = func(ctx context.Context, s session.State) session.Update {
		calls++
		return session.Finish(format.Message{Text: "report"})
	}
	o, err := orchestrator.New(orchestrator.Config{Handlers: reg})
	require.NoError(t, err)

	caps := allCaps()
	caps.CanViewAnalytics = false
	s := o.Run(context.Background(), turn(caller(caps), "/resumen", nil))

	require.Zero(t, calls)
	require.True(t, s.Denied)
	require.Equal(t, policy.DenialMessage, s.Response)
	require.Equal(t, session.KindPermissionDenied, s.Error.Kind)
}

func TestFastMatch_NeverCallsClassifier(t *testing.T) {
	fx := newFixture(t)
	cls := classifies(intent.AnalyticsSales, 0.99)
	o := fx.orchestrator(t, cls)

	for _, text := range []string{"hola", "/ventas", "ok", "cancelar", "Buenas tardes equipo"} {
		s := o.Run(context.Background(), turn(caller(allCaps()), text, nil))
		require.Equal(t, 1.0, s.Confidence, text)
		require.Equal(t, session.ResolvedFast, s.ResolvedBy, text)
	}
	require.Zero(t, cls.calls)
}

func TestCancelTwice(t *testing.T) {
	fx := newFixture(t)
	o := fx.orchestrator(t, nil)
	c := caller(allCaps())

	first := o.Run(context.Background(), turn(c, "cancelar", nil))
	second := o.Run(context.Background(), turn(c, "cancelar", &first))

	for _, s := range []session.State{first, second} {
		require.Nil(t, s.Pending)
		require.Contains(t, s.Response, "No hay ninguna acción pendiente")
	}
}

func TestClassifierFailure_ForcesHelp(t *testing.T) {
	fx := newFixture(t)
	cls := &stubClassifier{err: &nlp.ClassificationError{Reason: "no_json", Raw: "lo siento"}}
	o := fx.orchestrator(t, cls)

	// Analytics capability is off: a failed classification skips the
	// permission check and still gets a help reply.
	caps := allCaps()
	caps.CanViewAnalytics = false
	s := o.Run(context.Background(), turn(caller(caps), "necesito algo raro", nil))

	require.Equal(t, 1, cls.calls)
	require.Equal(t, intent.Unknown, s.Intent)
	require.Equal(t, session.ResolvedFallback, s.ResolvedBy)
	require.Equal(t, intent.HandlerHelp, s.Handler)
	require.Equal(t, session.KindClassification, s.Error.Kind)
	require.Contains(t, s.Response, "No entendí")
	require.False(t, s.Denied)
}

func TestNoClassifier_FallsBackToHelp(t *testing.T) {
	o := newFixture(t).orchestrator(t, nil)
	s := o.Run(context.Background(), turn(caller(allCaps()), "necesito algo raro", nil))

	require.Equal(t, intent.Unknown, s.Intent)
	require.Equal(t, intent.HandlerHelp, s.Handler)
	require.Equal(t, session.ResolvedFallback, s.ResolvedBy)
	require.NotEmpty(t, s.Response)
}

func TestLoopGuard_AtMaxMinusOne(t *testing.T) {
	fx := newFixture(t)
	cls := classifies(intent.Help, 1)
	o := fx.orchestrator(t, cls)

	s := turn(caller(allCaps()), "necesito algo", nil)
	s.Iteration = s.MaxIterations - 1
	s = o.Run(context.Background(), s)

	require.True(t, s.ShouldEnd)
	require.True(t, s.LoopGuardTripped)
	require.Empty(t, s.Handler)
	require.Zero(t, cls.calls)
	require.Equal(t, orchestrator.DefaultResponse, s.Response)
	require.Equal(t, session.KindLoopGuard, s.Error.Kind)
}

func TestLoopGuard_MinIterationsFitsOneTurn(t *testing.T) {
	fx := newFixture(t)
	o := fx.orchestrator(t, nil)
	c := caller(allCaps())
	msg := session.InboundMessage{ID: "m", Text: "/ayuda"}

	s := o.Run(context.Background(), session.New(c, msg, nil, nil, nil, orchestrator.MinIterations))
	require.False(t, s.LoopGuardTripped)
	require.Equal(t, intent.HandlerHelp, s.Handler)
	require.Nil(t, s.Error)

	s = o.Run(context.Background(), session.New(c, msg, nil, nil, nil, orchestrator.MinIterations-1))
	require.True(t, s.LoopGuardTripped)
	require.Equal(t, session.KindLoopGuard, s.Error.Kind)
	require.Equal(t, orchestrator.DefaultResponse, s.Response)
}

func TestLoopGuard_HandlerThatNeverEnds(t *testing.T) {
	calls := 0
	reg := newFixture(t).h.Registry()
	reg[intent.HandlerGreeting] = func(ctx context.Context, s session.State) session.Update {
		calls++
		return session.Update{}
	}
	o, err := orchestrator.New(orchestrator.Config{Handlers: reg})
	require.NoError(t, err)

	s := o.Run(context.Background(), turn(caller(allCaps()), "hola", nil))

	require.Equal(t, 2, calls)
	require.True(t, s.LoopGuardTripped)
	require.Equal(t, s.MaxIterations, s.Iteration)
	require.Equal(t, orchestrator.DefaultResponse, s.Response)
}

func TestHandlerPanic_Recovered(t *testing.T) {
	reg := newFixture(t).h.Registry()
	reg[intent.HandlerGreeting] = func(context.Context, session.State) session.Update {
		panic("boom")
	}
	o, err := orchestrator.New(orchestrator.Config{Handlers: reg})
	require.NoError(t, err)

	s := o.Run(context.Background(), turn(caller(allCaps()), "hola", nil))

	require.True(t, s.ShouldEnd)
	require.Equal(t, orchestrator.DefaultResponse, s.Response)
	require.Equal(t, session.KindExternalOperation, s.Error.Kind)
}

func TestHistoryIsAppended(t *testing.T) {
	o := newFixture(t).orchestrator(t, nil)
	c := caller(allCaps())

	prev := turn(c, "x", nil)
	for i := 0; i < session.MaxHistory; i++ {
		prev.History = append(prev.History, session.HistoryEntry{Role: session.RoleUser, Content: "old"})
	}
	s := o.Run(context.Background(), turn(c, "/ayuda", &prev))

	require.Len(t, s.History, session.MaxHistory)
	last := s.History[len(s.History)-2:]
	require.Equal(t, session.HistoryEntry{Role: session.RoleUser, Content: "/ayuda"}, last[0])
	require.Equal(t, session.RoleAssistant, last[1].Role)
	require.Equal(t, s.Response, last[1].Content)
}

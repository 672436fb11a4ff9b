package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/common/retry"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/policy"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

var errBackend = errors.New("backend unavailable")

// fakeBusiness records every call and serves canned records.
type fakeBusiness struct {
	mu        sync.Mutex
	calls     []string
	mutations int

	services []store.Service
	staff    []store.StaffMember
	promos   []store.Promotion
	hours    []store.Hours

	mutateErr error
	refuse    string
	readErr   error
}

func (f *fakeBusiness) record(name string, mutation bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if mutation {
		f.mutations++
	}
}

func (f *fakeBusiness) result(id string) (store.Result, error) {
	if f.mutateErr != nil {
		return store.Result{}, f.mutateErr
	}
	if f.refuse != "" {
		return store.Result{Error: f.refuse}, nil
	}
	return store.Result{Success: true, EntityID: id}, nil
}

func (f *fakeBusiness) UpsertService(_ context.Context, _ string, svc store.Service) (store.Result, error) {
	f.record("UpsertService", true)
	return f.result("svc-new")
}

func (f *fakeBusiness) DeleteService(_ context.Context, _, id string) (store.Result, error) {
	f.record("DeleteService", true)
	return f.result(id)
}

func (f *fakeBusiness) GetServices(context.Context, string) ([]store.Service, error) {
	f.record("GetServices", false)
	return f.services, f.readErr
}

func (f *fakeBusiness) UpdatePriceByName(context.Context, string, string, float64) (store.Result, error) {
	f.record("UpdatePriceByName", true)
	return f.result("svc-1")
}

func (f *fakeBusiness) UpsertHours(context.Context, string, store.Hours) (store.Result, error) {
	f.record("UpsertHours", true)
	return f.result("")
}

func (f *fakeBusiness) GetHours(context.Context, string) ([]store.Hours, error) {
	f.record("GetHours", false)
	return f.hours, f.readErr
}

func (f *fakeBusiness) UpsertStaff(context.Context, string, store.StaffMember) (store.Result, error) {
	f.record("UpsertStaff", true)
	return f.result("staff-new")
}

func (f *fakeBusiness) DeleteStaff(_ context.Context, _, id string) (store.Result, error) {
	f.record("DeleteStaff", true)
	return f.result(id)
}

func (f *fakeBusiness) GetStaff(context.Context, string) ([]store.StaffMember, error) {
	f.record("GetStaff", false)
	return f.staff, f.readErr
}

func (f *fakeBusiness) UpsertPromotion(context.Context, string, store.Promotion) (store.Result, error) {
	f.record("UpsertPromotion", true)
	return f.result("promo-new")
}

func (f *fakeBusiness) DeletePromotion(_ context.Context, _, id string) (store.Result, error) {
	f.record("DeletePromotion", true)
	return f.result(id)
}

func (f *fakeBusiness) GetActivePromotions(context.Context, string) ([]store.Promotion, error) {
	f.record("GetActivePromotions", false)
	return f.promos, f.readErr
}

// fakeAnalytics serves fixed numbers; failOn names a method that errors.
type fakeAnalytics struct {
	mu     sync.Mutex
	calls  map[string]int
	failOn string

	lowStock []store.InventoryItem
	orders   []store.Order
	appts    []store.Appointment
}

func (f *fakeAnalytics) hit(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
	if f.failOn == name {
		return errBackend
	}
	return nil
}

func (f *fakeAnalytics) SalesSummary(context.Context, string, time.Time, time.Time) (store.SalesStats, error) {
	return store.SalesStats{Total: 1520.5, Count: 4, AvgTicket: 380.125}, f.hit("SalesSummary")
}

func (f *fakeAnalytics) OrderSummary(context.Context, string, time.Time, time.Time) (store.OrderStats, error) {
	return store.OrderStats{Total: 6, Pending: 2, Completed: 3, Cancelled: 1}, f.hit("OrderSummary")
}

func (f *fakeAnalytics) LeadSummary(context.Context, string, time.Time, time.Time) (store.LeadStats, error) {
	return store.LeadStats{New: 5, Hot: 2, Converted: 1}, f.hit("LeadSummary")
}

func (f *fakeAnalytics) AppointmentSummary(context.Context, string, time.Time, time.Time) (store.AppointmentStats, error) {
	return store.AppointmentStats{Scheduled: 7, Completed: 3, NoShow: 1}, f.hit("AppointmentSummary")
}

func (f *fakeAnalytics) LowStockItems(context.Context, string) ([]store.InventoryItem, error) {
	return f.lowStock, f.hit("LowStockItems")
}

func (f *fakeAnalytics) PendingOrders(context.Context, string) ([]store.Order, error) {
	return f.orders, f.hit("PendingOrders")
}

func (f *fakeAnalytics) OpenEscalations(context.Context, string) ([]store.Escalation, error) {
	return nil, f.hit("OpenEscalations")
}

func (f *fakeAnalytics) AppointmentsOn(context.Context, string, time.Time, time.Time) ([]store.Appointment, error) {
	return f.appts, f.hit("AppointmentsOn")
}

// fakeNotifications fails CreateNotification for users listed in failFor.
type fakeNotifications struct {
	mu         sync.Mutex
	prefs      store.NotificationPreferences
	paused     *bool
	recipients []store.Recipient
	failFor    map[string]bool
	created    []store.Notification
}

func (f *fakeNotifications) GetNotificationPreferences(context.Context, string, string) (store.NotificationPreferences, error) {
	return f.prefs, nil
}

func (f *fakeNotifications) SetNotificationsPaused(_ context.Context, _, _ string, paused bool) (store.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = &paused
	return store.Result{Success: true}, nil
}

func (f *fakeNotifications) ListRecipients(context.Context, string) ([]store.Recipient, error) {
	return f.recipients, nil
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n store.Notification) (store.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[n.UserID] {
		return store.Result{}, errBackend
	}
	f.created = append(f.created, n)
	return store.Result{Success: true}, nil
}

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestHandlers(b *fakeBusiness, a *fakeAnalytics, n *fakeNotifications) *Handlers {
	cfg := Config{
		Now:       func() time.Time { return testNow },
		ReadRetry: &retry.Policy{Attempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	// Assign only non-nil fakes so nil interfaces stay nil.
	if b != nil {
		cfg.Business = b
	}
	if a != nil {
		cfg.Analytics = a
	}
	if n != nil {
		cfg.Notifications = n
	}
	return New(cfg)
}

func fullCaps() policy.Capabilities {
	return policy.Capabilities{CanViewAnalytics: true, CanConfigure: true, CanReceiveNotifications: true}
}

func newState(text string, caps policy.Capabilities) session.State {
	caller := session.Caller{
		TenantID:     "tenant-1",
		UserID:       "user-1",
		DisplayName:  "Laura",
		BusinessName: "Clínica Sonrisa",
		Vertical:     "dental",
		Capabilities: caps,
		Channel:      format.Telegram,
		Timezone:     "America/Mexico_City",
	}
	return session.New(caller, session.InboundMessage{ID: "m1", Text: text, ReceivedAt: testNow}, nil, nil, nil, 0)
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

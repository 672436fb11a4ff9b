package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "adminchannel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db file: %v", err)
	}
	f.Close()

	s, err := store.New(f.Name())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v < 5 {
		t.Fatalf("schema version = %d, want >= 5", v)
	}
	n, err := s.Migrate(ctx)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if n != 0 {
		t.Errorf("second Migrate applied %d migrations", n)
	}
}

// --- Services ---

func TestServices_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.UpsertService(ctx, "t1", store.Service{Name: "Limpieza Dental", Price: 500})
	if err != nil || !res.Success || res.EntityID == "" {
		t.Fatalf("create: %+v %v", res, err)
	}
	id := res.EntityID

	dup, err := s.UpsertService(ctx, "t1", store.Service{Name: "limpieza dental", Price: 300})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if dup.Success {
		t.Error("duplicate name (case-insensitive) must fail")
	}

	if _, err := s.UpsertService(ctx, "t2", store.Service{Name: "Limpieza Dental", Price: 300}); err != nil {
		t.Fatalf("other tenant create: %v", err)
	}

	res, err = s.UpdatePriceByName(ctx, "t1", "LIMPIEZA DENTAL", 650)
	if err != nil || !res.Success || res.EntityID != id {
		t.Fatalf("update price: %+v %v", res, err)
	}

	services, err := s.GetServices(ctx, "t1")
	if err != nil {
		t.Fatalf("GetServices: %v", err)
	}
	if len(services) != 1 || services[0].Price != 650 {
		t.Fatalf("unexpected services %+v", services)
	}

	res, err = s.UpdatePriceByName(ctx, "t1", "Ortodoncia", 100)
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("missing service should be a domain failure, got %+v", res)
	}

	res, err = s.DeleteService(ctx, "t1", id)
	if err != nil || !res.Success {
		t.Fatalf("delete: %+v %v", res, err)
	}
	res, _ = s.DeleteService(ctx, "t1", id)
	if res.Success {
		t.Error("second delete should report not found")
	}
}

// --- Hours ---

func TestHours_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertHours(ctx, "t1", store.Hours{Day: 1, Open: "09:00", Close: "18:00"}); err != nil {
		t.Fatalf("UpsertHours: %v", err)
	}
	if _, err := s.UpsertHours(ctx, "t1", store.Hours{Day: 1, Open: "10:00", Close: "14:00"}); err != nil {
		t.Fatalf("UpsertHours again: %v", err)
	}
	if _, err := s.UpsertHours(ctx, "t1", store.Hours{Day: 0, Closed: true}); err != nil {
		t.Fatalf("UpsertHours closed: %v", err)
	}

	hours, err := s.GetHours(ctx, "t1")
	if err != nil {
		t.Fatalf("GetHours: %v", err)
	}
	if len(hours) != 2 {
		t.Fatalf("want 2 days, got %+v", hours)
	}
	if !hours[0].Closed || hours[1].Open != "10:00" {
		t.Errorf("unexpected hours %+v", hours)
	}
}

// --- Staff and promotions ---

func TestStaffAndPromotions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.UpsertStaff(ctx, "t1", store.StaffMember{Name: "Dra. Ruiz", Role: "ortodoncista"})
	if err != nil || !res.Success {
		t.Fatalf("UpsertStaff: %+v %v", res, err)
	}
	staff, _ := s.GetStaff(ctx, "t1")
	if len(staff) != 1 || staff[0].Role != "ortodoncista" {
		t.Fatalf("unexpected staff %+v", staff)
	}
	if res, _ := s.DeleteStaff(ctx, "t1", staff[0].ID); !res.Success {
		t.Error("DeleteStaff failed")
	}

	past := time.Now().Add(-48 * time.Hour)
	if _, err := s.UpsertPromotion(ctx, "t1", store.Promotion{Title: "2x1", DiscountType: store.DiscountPercentage, DiscountValue: 50}); err != nil {
		t.Fatalf("UpsertPromotion: %v", err)
	}
	if _, err := s.UpsertPromotion(ctx, "t1", store.Promotion{Title: "Vencida", DiscountType: store.DiscountFixed, DiscountValue: 100, EndsAt: &past}); err != nil {
		t.Fatalf("UpsertPromotion expired: %v", err)
	}
	promos, err := s.GetActivePromotions(ctx, "t1")
	if err != nil {
		t.Fatalf("GetActivePromotions: %v", err)
	}
	if len(promos) != 1 || promos[0].Title != "2x1" {
		t.Fatalf("expected only the running promotion, got %+v", promos)
	}
}

// --- Analytics ---

func TestAnalytics_Summaries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.SeedDemo(ctx, "t1", "dental"); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now().Add(24 * time.Hour)

	sales, err := s.SalesSummary(ctx, "t1", from, to)
	if err != nil {
		t.Fatalf("SalesSummary: %v", err)
	}
	if sales.Count != 1 || sales.Total != 320 || sales.AvgTicket != 320 {
		t.Errorf("unexpected sales %+v", sales)
	}

	orders, err := s.OrderSummary(ctx, "t1", from, to)
	if err != nil || orders.Total != 2 || orders.Pending != 1 || orders.Completed != 1 {
		t.Errorf("unexpected orders %+v %v", orders, err)
	}

	leads, err := s.LeadSummary(ctx, "t1", from, to)
	if err != nil || leads.Hot != 1 {
		t.Errorf("unexpected leads %+v %v", leads, err)
	}

	appts, err := s.AppointmentSummary(ctx, "t1", from, to)
	if err != nil || appts.Scheduled != 1 {
		t.Errorf("unexpected appointments %+v %v", appts, err)
	}

	low, _ := s.LowStockItems(ctx, "t1")
	if len(low) != 1 || low[0].Name != "Guantes" {
		t.Errorf("unexpected low stock %+v", low)
	}
	pending, _ := s.PendingOrders(ctx, "t1")
	if len(pending) != 1 || pending[0].Reference != "A-102" {
		t.Errorf("unexpected pending orders %+v", pending)
	}
	esc, _ := s.OpenEscalations(ctx, "t1")
	if len(esc) != 1 {
		t.Errorf("unexpected escalations %+v", esc)
	}
	list, _ := s.AppointmentsOn(ctx, "t1", from, to)
	if len(list) != 1 || list[0].CustomerName != "Sofía" {
		t.Errorf("unexpected appointments list %+v", list)
	}

	if err := s.SeedDemo(ctx, "t1", "dental"); err != nil {
		t.Fatalf("second SeedDemo: %v", err)
	}
	if again, _ := s.PendingOrders(ctx, "t1"); len(again) != 1 {
		t.Error("SeedDemo must not duplicate data")
	}
}

// --- Notifications ---

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prefs, err := s.GetNotificationPreferences(ctx, "t1", "u1")
	if err != nil || prefs.Paused || !prefs.Daily {
		t.Fatalf("defaults: %+v %v", prefs, err)
	}

	if err := s.SaveRecipient(ctx, "t1", store.Recipient{UserID: "u1", Channel: "telegram", Address: "12345"}); err != nil {
		t.Fatalf("SaveRecipient: %v", err)
	}
	if res, err := s.SetNotificationsPaused(ctx, "t1", "u1", true); err != nil || !res.Success {
		t.Fatalf("pause: %+v %v", res, err)
	}
	prefs, _ = s.GetNotificationPreferences(ctx, "t1", "u1")
	if !prefs.Paused {
		t.Error("preferences should be paused")
	}

	recipients, _ := s.ListRecipients(ctx, "t1")
	if len(recipients) != 1 || recipients[0].Address != "12345" || !recipients[0].Paused {
		t.Errorf("unexpected recipients %+v", recipients)
	}

	res, err := s.CreateNotification(ctx, store.Notification{TenantID: "t1", UserID: "u1", Type: "test", Title: "Prueba"})
	if err != nil || !res.Success {
		t.Fatalf("CreateNotification: %+v %v", res, err)
	}
	if res, _ := s.CreateNotification(ctx, store.Notification{TenantID: "t1"}); res.Success {
		t.Error("incomplete notification should fail")
	}
}

// --- Audit ---

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.WriteAudit(ctx, "turn_1", "t1", "u1", "pending.confirm", "service", "success", store.AuditPayload{"price": 500}, ""); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}
	if err := s.WriteAudit(ctx, "turn_2", "t2", "u9", "permission.denied", "analytics_sales", "denied", nil, ""); err != nil {
		t.Fatalf("WriteAudit: %v", err)
	}

	all, _ := s.GetAuditLog(ctx, "", 10)
	if len(all) != 2 || all[0].TraceID != "turn_2" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	t1, _ := s.GetAuditLog(ctx, "t1", 10)
	if len(t1) != 1 || t1[0].Payload["price"] != 500.0 {
		t.Fatalf("unexpected tenant-filtered log %+v", t1)
	}
}

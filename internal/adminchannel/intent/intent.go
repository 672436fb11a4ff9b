// Package intent defines the closed set of admin-channel intents, the
// deterministic fast matcher that resolves common messages without a
// classifier, and the router that maps each intent to a handler.
package intent

import "strings"

// Intent identifies what the operator wants. The set is closed: values
// outside All() are treated as Unknown everywhere.
type Intent string

const (
	Unknown Intent = "unknown"

	AnalyticsDailySummary   Intent = "analytics_daily_summary"
	AnalyticsWeeklySummary  Intent = "analytics_weekly_summary"
	AnalyticsMonthlySummary Intent = "analytics_monthly_summary"
	AnalyticsSales          Intent = "analytics_sales"
	AnalyticsLeads          Intent = "analytics_leads"

	ConfigServices      Intent = "config_services"
	ConfigPrices        Intent = "config_prices"
	ConfigHours         Intent = "config_hours"
	ConfigStaff         Intent = "config_staff"
	ConfigPromotions    Intent = "config_promotions"
	ConfigNotifications Intent = "config_notifications"

	OperationInventoryCheck    Intent = "operation_inventory_check"
	OperationPendingOrders     Intent = "operation_pending_orders"
	OperationAppointmentsToday Intent = "operation_appointments_today"
	OperationEscalations       Intent = "operation_escalations"

	NotificationSettings Intent = "notification_settings"
	NotificationPause    Intent = "notification_pause"
	NotificationResume   Intent = "notification_resume"
	NotificationTest     Intent = "notification_test"

	Help     Intent = "help"
	Greeting Intent = "greeting"
	Confirm  Intent = "confirm"
	Cancel   Intent = "cancel"
)

var all = []Intent{
	Unknown,
	AnalyticsDailySummary, AnalyticsWeeklySummary, AnalyticsMonthlySummary, AnalyticsSales, AnalyticsLeads,
	ConfigServices, ConfigPrices, ConfigHours, ConfigStaff, ConfigPromotions, ConfigNotifications,
	OperationInventoryCheck, OperationPendingOrders, OperationAppointmentsToday, OperationEscalations,
	NotificationSettings, NotificationPause, NotificationResume, NotificationTest,
	Help, Greeting, Confirm, Cancel,
}

var known = func() map[Intent]struct{} {
	m := make(map[Intent]struct{}, len(all))
	for _, i := range all {
		m[i] = struct{}{}
	}
	return m
}()

// All returns every member of the enum, Unknown first.
func All() []Intent {
	out := make([]Intent, len(all))
	copy(out, all)
	return out
}

// Parse converts a classifier label into an Intent. Labels are matched
// case-insensitively; anything outside the enum becomes Unknown.
func Parse(s string) Intent {
	i := Intent(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := known[i]; ok {
		return i
	}
	return Unknown
}

// Valid reports whether i is a member of the enum.
func (i Intent) Valid() bool {
	_, ok := known[i]
	return ok
}

// Family is the identifier prefix before the first underscore ("analytics",
// "config", ...), or the whole identifier for single-word intents.
func (i Intent) Family() string {
	s := string(i)
	if idx := strings.IndexByte(s, '_'); idx > 0 {
		return s[:idx]
	}
	return s
}

func (i Intent) String() string { return string(i) }

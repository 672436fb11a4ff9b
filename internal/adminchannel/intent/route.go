package intent

// HandlerName identifies one member of the handler set.
type HandlerName string

const (
	HandlerHelp          HandlerName = "help"
	HandlerGreeting      HandlerName = "greeting"
	HandlerAnalytics     HandlerName = "analytics"
	HandlerConfig        HandlerName = "config"
	HandlerOperations    HandlerName = "operations"
	HandlerNotifications HandlerName = "notifications"
	HandlerConfirm       HandlerName = "confirm"
	HandlerCancel        HandlerName = "cancel"
)

// Route returns the handler responsible for i. It is total: Unknown and any
// value outside the enum go to the help handler.
func Route(i Intent) HandlerName {
	switch i {
	case AnalyticsDailySummary, AnalyticsWeeklySummary, AnalyticsMonthlySummary,
		AnalyticsSales, AnalyticsLeads:
		return HandlerAnalytics
	case ConfigServices, ConfigPrices, ConfigHours, ConfigStaff, ConfigPromotions:
		return HandlerConfig
	case ConfigNotifications, NotificationSettings, NotificationPause,
		NotificationResume, NotificationTest:
		return HandlerNotifications
	case OperationInventoryCheck, OperationPendingOrders,
		OperationAppointmentsToday, OperationEscalations:
		return HandlerOperations
	case Greeting:
		return HandlerGreeting
	case Confirm:
		return HandlerConfirm
	case Cancel:
		return HandlerCancel
	case Help, Unknown:
		return HandlerHelp
	default:
		return HandlerHelp
	}
}

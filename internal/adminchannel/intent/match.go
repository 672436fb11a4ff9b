package intent

import "strings"

// Result is a fast-path resolution.
type Result struct {
	Intent     Intent
	Confidence float64
	Entities   map[string]any
}

// commands maps slash commands (without the leading slash) to intents.
var commands = map[string]Intent{
	"start":          Greeting,
	"ayuda":          Help,
	"help":           Help,
	"resumen":        AnalyticsDailySummary,
	"semana":         AnalyticsWeeklySummary,
	"mes":            AnalyticsMonthlySummary,
	"ventas":         AnalyticsSales,
	"leads":          AnalyticsLeads,
	"inventario":     OperationInventoryCheck,
	"pedidos":        OperationPendingOrders,
	"citas":          OperationAppointmentsToday,
	"escalaciones":   OperationEscalations,
	"servicios":      ConfigServices,
	"promociones":    ConfigPromotions,
	"horarios":       ConfigHours,
	"notificaciones": NotificationSettings,
	"pausar":         NotificationPause,
	"reanudar":       NotificationResume,
	"confirmar":      Confirm,
	"cancelar":       Cancel,
}

// greetings are matched as a whole message or as a leading token followed by
// whitespace. Longer phrases come first so "buenas tardes" wins over "buenas".
var greetings = []string{
	"buenos días", "buenos dias", "buenas tardes", "buenas noches", "qué tal", "que tal",
	"buenas", "hola", "hey", "hi", "hello", "saludos",
}

var confirmWords = map[string]struct{}{
	"sí": {}, "si": {}, "ok": {}, "dale": {}, "confirmar": {}, "adelante": {},
}

var cancelWords = map[string]struct{}{
	"no": {}, "cancelar": {}, "olvídalo": {}, "olvidalo": {}, "mejor no": {},
}

// Match resolves text deterministically. It reports false when nothing
// matched, in which case the caller falls back to the classifier.
func Match(text string) (Result, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return Result{}, false
	}

	if strings.HasPrefix(lower, "/") {
		return matchCommand(lower)
	}

	bare := strings.TrimRight(lower, ".!")
	if _, ok := confirmWords[bare]; ok {
		return hit(Confirm, nil), true
	}
	if _, ok := cancelWords[bare]; ok {
		return hit(Cancel, nil), true
	}

	for _, g := range greetings {
		if hasToken(bare, g) {
			return hit(Greeting, nil), true
		}
	}
	return Result{}, false
}

func matchCommand(lower string) (Result, bool) {
	fields := strings.Fields(lower)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	in, ok := commands[name]
	if !ok {
		return Result{}, false
	}
	entities := map[string]any{"command": name}
	if len(fields) > 1 {
		entities["args"] = strings.Join(fields[1:], " ")
	}
	return hit(in, entities), true
}

// hasToken reports whether s equals tok or starts with tok followed by
// whitespace. "holanda" does not contain the token "hola".
func hasToken(s, tok string) bool {
	if s == tok {
		return true
	}
	if !strings.HasPrefix(s, tok) {
		return false
	}
	switch s[len(tok)] {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

func hit(i Intent, entities map[string]any) Result {
	if entities == nil {
		entities = map[string]any{}
	}
	return Result{Intent: i, Confidence: 1.0, Entities: entities}
}

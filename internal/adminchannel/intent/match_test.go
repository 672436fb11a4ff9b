package intent

import "testing"

func TestMatch_Commands(t *testing.T) {
	tests := []struct {
		text string
		want Intent
		args string
	}{
		{"/ayuda", Help, ""},
		{"  /HELP  ", Help, ""},
		{"/start", Greeting, ""},
		{"/resumen", AnalyticsDailySummary, ""},
		{"/semana", AnalyticsWeeklySummary, ""},
		{"/ventas@TisBot", AnalyticsSales, ""},
		{"/inventario bodega norte", OperationInventoryCheck, "bodega norte"},
		{"/servicios", ConfigServices, ""},
		{"/pausar", NotificationPause, ""},
		{"/confirmar", Confirm, ""},
		{"/cancelar", Cancel, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			m, ok := Match(tt.text)
			if !ok {
				t.Fatalf("Match(%q) did not match", tt.text)
			}
			if m.Intent != tt.want {
				t.Errorf("intent = %q, want %q", m.Intent, tt.want)
			}
			if m.Confidence != 1.0 {
				t.Errorf("confidence = %v, want 1.0", m.Confidence)
			}
			if m.Entities["command"] == nil {
				t.Error("command entity missing")
			}
			if tt.args != "" && m.Entities["args"] != tt.args {
				t.Errorf("args = %v, want %q", m.Entities["args"], tt.args)
			}
		})
	}
}

func TestMatch_ConfirmAndCancel(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{"sí", Confirm},
		{"Si", Confirm},
		{"OK!", Confirm},
		{"dale.", Confirm},
		{"adelante", Confirm},
		{"confirmar", Confirm},
		{"no", Cancel},
		{"Cancelar", Cancel},
		{"olvídalo", Cancel},
		{"mejor no", Cancel},
	}
	for _, tt := range tests {
		m, ok := Match(tt.text)
		if !ok || m.Intent != tt.want {
			t.Errorf("Match(%q) = %q, %v; want %q", tt.text, m.Intent, ok, tt.want)
		}
	}
}

func TestMatch_Greetings(t *testing.T) {
	for _, text := range []string{"hola", "Hola equipo", "buenos días", "buenas tardes a todos", "hey", "qué tal"} {
		m, ok := Match(text)
		if !ok || m.Intent != Greeting {
			t.Errorf("Match(%q) = %q, %v; want greeting", text, m.Intent, ok)
		}
	}
}

func TestMatch_NoMatch(t *testing.T) {
	for _, text := range []string{
		"",
		"holanda tiene buenos precios",
		"hijo de la cliente",
		"si puedes manda el reporte",
		"no hay stock de resina",
		"agregar servicio Limpieza Dental $500",
		"/desconocido",
	} {
		if m, ok := Match(text); ok {
			t.Errorf("Match(%q) unexpectedly matched %q", text, m.Intent)
		}
	}
}

func TestRoute_Total(t *testing.T) {
	for _, i := range All() {
		if Route(i) == "" {
			t.Errorf("Route(%q) returned empty handler", i)
		}
	}
	if Route(Unknown) != HandlerHelp {
		t.Errorf("unknown must route to help")
	}
	if Route(Intent("made_up")) != HandlerHelp {
		t.Errorf("out-of-enum values must route to help")
	}
}

func TestRoute_Families(t *testing.T) {
	tests := map[Intent]HandlerName{
		AnalyticsLeads:       HandlerAnalytics,
		ConfigServices:       HandlerConfig,
		ConfigPrices:         HandlerConfig,
		ConfigNotifications:  HandlerNotifications,
		NotificationTest:     HandlerNotifications,
		OperationEscalations: HandlerOperations,
		Greeting:             HandlerGreeting,
		Confirm:              HandlerConfirm,
		Cancel:               HandlerCancel,
		Help:                 HandlerHelp,
	}
	for in, want := range tests {
		if got := Route(in); got != want {
			t.Errorf("Route(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	if Parse(" Analytics_Sales ") != AnalyticsSales {
		t.Error("Parse should normalise case and whitespace")
	}
	if Parse("delete_everything") != Unknown {
		t.Error("unknown labels must map to Unknown")
	}
	if ConfigHours.Family() != "config" || Help.Family() != "help" {
		t.Error("Family returned unexpected prefix")
	}
}

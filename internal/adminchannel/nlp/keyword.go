package nlp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
)

// keywordRule maps messages containing every word in all and at least one
// word in any (when any is non-empty) to an intent.
type keywordRule struct {
	intent intent.Intent
	all    []string
	any    []string
}

// keywordRules are checked in order; the first match wins, so the more
// specific rules come first.
var keywordRules = []keywordRule{
	{intent: intent.NotificationPause, all: []string{"notificaci"}, any: []string{"pausa", "silenci", "detén", "deten"}},
	{intent: intent.NotificationResume, all: []string{"notificaci"}, any: []string{"reanuda", "activa", "reactiva"}},
	{intent: intent.NotificationTest, all: []string{"notificaci"}, any: []string{"prueba", "test"}},
	{intent: intent.NotificationSettings, any: []string{"notificaci", "alertas"}},

	{intent: intent.ConfigPrices, any: []string{"precio", "cuesta", "costo"}},
	{intent: intent.ConfigHours, any: []string{"horario", "abrimos", "cerramos", "cerrado"}},
	{intent: intent.ConfigPromotions, any: []string{"promoci", "descuento", "oferta"}},
	{intent: intent.ConfigStaff, any: []string{"empleado", "doctor", "estilista", "personal", "staff"}},
	{intent: intent.ConfigServices, any: []string{"servicio"}},

	{intent: intent.OperationInventoryCheck, any: []string{"inventario", "stock", "existencias"}},
	{intent: intent.OperationPendingOrders, any: []string{"pedido", "orden", "órden"}},
	{intent: intent.OperationAppointmentsToday, any: []string{"cita", "agenda"}},
	{intent: intent.OperationEscalations, any: []string{"escalaci", "queja", "reclamo"}},

	{intent: intent.AnalyticsLeads, any: []string{"lead", "prospecto"}},
	{intent: intent.AnalyticsWeeklySummary, any: []string{"semana", "semanal"}},
	{intent: intent.AnalyticsMonthlySummary, any: []string{"del mes", "este mes", "mensual"}},
	{intent: intent.AnalyticsSales, any: []string{"venta", "vendimos", "ingreso"}},
	{intent: intent.AnalyticsDailySummary, any: []string{"resumen", "reporte", "hoy", "cómo vamos", "como vamos"}},

	{intent: intent.Help, any: []string{"ayuda", "qué puedes", "que puedes", "comandos"}},
}

// KeywordProvider is an offline Provider that answers with the same JSON
// contract as a model, using fixed Spanish keyword rules. It keeps the
// service usable when no API key is configured.
type KeywordProvider struct{}

func (KeywordProvider) Name() string { return "keyword" }

func (KeywordProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lower := strings.ToLower(req.Text)

	out := struct {
		Intent     string         `json:"intent"`
		Confidence float64        `json:"confidence"`
		Entities   map[string]any `json:"entities"`
		Reasoning  string         `json:"reasoning"`
	}{Intent: string(intent.Unknown), Confidence: 0.2, Entities: map[string]any{}, Reasoning: "no keyword matched"}

	for _, r := range keywordRules {
		if r.matches(lower) {
			out.Intent = string(r.intent)
			out.Confidence = 0.7
			out.Reasoning = "keyword rule"
			break
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r keywordRule) matches(s string) bool {
	for _, w := range r.all {
		if !strings.Contains(s, w) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, w := range r.any {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// listLimit caps the lines shown in operational lists.
const listLimit = 10

// Operations answers the day-to-day queries: low stock, pending orders,
// open escalations and today's appointments.
func (h *Handlers) Operations(ctx context.Context, s session.State) session.Update {
	if h.analytics == nil {
		return degraded(ctx, s, "operations", errNoBackend)
	}
	tenant := s.Caller.TenantID

	switch s.Intent {
	case intent.OperationPendingOrders:
		orders, err := read(ctx, h, func(ctx context.Context) ([]store.Order, error) {
			return h.analytics.PendingOrders(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "pending_orders", err)
		}
		if len(orders) == 0 {
			return replyText(s, "No hay pedidos pendientes. 🎉")
		}
		lines := make([]string, 0, len(orders))
		for _, o := range capped(orders) {
			line := fmt.Sprintf("%s · %s", o.Reference, format.Money(o.Total))
			if o.CustomerName != "" {
				line += " · " + o.CustomerName
			}
			lines = append(lines, line)
		}
		return reply(s, listReport(fmt.Sprintf("🧾 Pedidos pendientes (%d)", len(orders)), lines, len(orders)))

	case intent.OperationEscalations:
		escalations, err := read(ctx, h, func(ctx context.Context) ([]store.Escalation, error) {
			return h.analytics.OpenEscalations(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "open_escalations", err)
		}
		if len(escalations) == 0 {
			return replyText(s, "No hay conversaciones escaladas.")
		}
		lines := make([]string, 0, len(escalations))
		for _, e := range capped(escalations) {
			who := e.CustomerName
			if who == "" {
				who = "Cliente"
			}
			lines = append(lines, fmt.Sprintf("%s: %s", who, e.Reason))
		}
		return reply(s, listReport(fmt.Sprintf("🚨 Escalaciones abiertas (%d)", len(escalations)), lines, len(escalations)))

	case intent.OperationAppointmentsToday:
		local := h.now().In(s.Caller.Location())
		p := periodFor(intent.AnalyticsDailySummary, "", local)
		appts, err := read(ctx, h, func(ctx context.Context) ([]store.Appointment, error) {
			return h.analytics.AppointmentsOn(ctx, tenant, p.From, p.To)
		})
		if err != nil {
			return degraded(ctx, s, "appointments_today", err)
		}
		if len(appts) == 0 {
			return replyText(s, "No hay citas agendadas para hoy.")
		}
		lines := make([]string, 0, len(appts))
		for _, a := range capped(appts) {
			line := fmt.Sprintf("%s · %s", a.StartsAt.In(local.Location()).Format("15:04"), a.CustomerName)
			if a.ServiceName != "" {
				line += " · " + a.ServiceName
			}
			lines = append(lines, line)
		}
		return reply(s, listReport(fmt.Sprintf("📅 Citas de hoy (%d)", len(appts)), lines, len(appts)))

	default:
		items, err := read(ctx, h, func(ctx context.Context) ([]store.InventoryItem, error) {
			return h.analytics.LowStockItems(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "low_stock", err)
		}
		if len(items) == 0 {
			return replyText(s, "El inventario está en orden. Ningún producto bajo el mínimo.")
		}
		lines := make([]string, 0, len(items))
		for _, it := range capped(items) {
			lines = append(lines, fmt.Sprintf("%s: %s (mínimo %s)",
				it.Name, strings.TrimSpace(qty(it.Quantity)+" "+it.Unit), qty(it.MinQuantity)))
		}
		return reply(s, listReport(fmt.Sprintf("📦 Poco stock (%d)", len(items)), lines, len(items)))
	}
}

func capped[T any](xs []T) []T {
	if len(xs) > listLimit {
		return xs[:listLimit]
	}
	return xs
}

func listReport(title string, lines []string, total int) format.Report {
	r := format.Report{Title: title, Sections: []format.Section{{Lines: lines}}}
	if total > len(lines) {
		r.Footer = fmt.Sprintf("… y %d más.", total-len(lines))
	}
	return r
}

func qty(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// Business verticals that change which report sections apply.
const (
	VerticalRestaurant = "restaurant"
	VerticalDental     = "dental"
	VerticalClinic     = "clinic"
	VerticalSalon      = "salon"
)

type period struct {
	Label    string
	From, To time.Time
}

// periodFor derives the report window from the intent, letting an explicit
// "period" entity ("day", "week", "month" or their Spanish forms) win.
func periodFor(i intent.Intent, entity string, now time.Time) period {
	kind := "day"
	switch i {
	case intent.AnalyticsWeeklySummary:
		kind = "week"
	case intent.AnalyticsMonthlySummary:
		kind = "month"
	}
	switch strings.ToLower(strings.TrimSpace(entity)) {
	case "day", "daily", "hoy", "dia", "día":
		kind = "day"
	case "week", "weekly", "semana", "semanal":
		kind = "week"
	case "month", "monthly", "mes", "mensual":
		kind = "month"
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)
	switch kind {
	case "week":
		return period{Label: "Últimos 7 días", From: today.AddDate(0, 0, -6), To: tomorrow}
	case "month":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return period{Label: "Este mes", From: first, To: tomorrow}
	}
	return period{Label: "Hoy", From: today, To: tomorrow}
}

type analyticsSections struct {
	sales, orders, leads, appointments bool
}

func sectionsFor(i intent.Intent, vertical string) analyticsSections {
	switch i {
	case intent.AnalyticsSales:
		return analyticsSections{sales: true}
	case intent.AnalyticsLeads:
		return analyticsSections{leads: true}
	}
	switch strings.ToLower(vertical) {
	case VerticalRestaurant:
		return analyticsSections{sales: true, orders: true, leads: true}
	case VerticalDental, VerticalClinic, VerticalSalon:
		return analyticsSections{sales: true, leads: true, appointments: true}
	}
	return analyticsSections{sales: true, orders: true, leads: true, appointments: true}
}

// Analytics renders the sales, orders, leads and appointments report for
// the requested period. The reads run concurrently; any failure fails the
// whole report.
func (h *Handlers) Analytics(ctx context.Context, s session.State) session.Update {
	if h.analytics == nil {
		return degraded(ctx, s, "analytics", errNoBackend)
	}

	now := h.now().In(s.Caller.Location())
	p := periodFor(s.Intent, s.EntityString("period"), now)
	want := sectionsFor(s.Intent, s.Caller.Vertical)
	tenant := s.Caller.TenantID

	var (
		sales        store.SalesStats
		orders       store.OrderStats
		leads        store.LeadStats
		appointments store.AppointmentStats
	)
	g, gctx := errgroup.WithContext(ctx)
	if want.sales {
		g.Go(func() (err error) {
			sales, err = read(gctx, h, func(ctx context.Context) (store.SalesStats, error) {
				return h.analytics.SalesSummary(ctx, tenant, p.From, p.To)
			})
			return err
		})
	}
	if want.orders {
		g.Go(func() (err error) {
			orders, err = read(gctx, h, func(ctx context.Context) (store.OrderStats, error) {
				return h.analytics.OrderSummary(ctx, tenant, p.From, p.To)
			})
			return err
		})
	}
	if want.leads {
		g.Go(func() (err error) {
			leads, err = read(gctx, h, func(ctx context.Context) (store.LeadStats, error) {
				return h.analytics.LeadSummary(ctx, tenant, p.From, p.To)
			})
			return err
		})
	}
	if want.appointments {
		g.Go(func() (err error) {
			appointments, err = read(gctx, h, func(ctx context.Context) (store.AppointmentStats, error) {
				return h.analytics.AppointmentSummary(ctx, tenant, p.From, p.To)
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return degraded(ctx, s, "analytics", err)
	}

	r := format.Report{Title: fmt.Sprintf("📊 Resumen · %s", p.Label)}
	if s.Caller.BusinessName != "" {
		r.Intro = s.Caller.BusinessName
	}
	if want.sales {
		r.Sections = append(r.Sections, format.Section{Heading: "💰 Ventas", Lines: []string{
			"Total: " + format.Money(sales.Total),
			fmt.Sprintf("Transacciones: %d", sales.Count),
			"Ticket promedio: " + format.Money(sales.AvgTicket),
		}})
	}
	if want.orders {
		r.Sections = append(r.Sections, format.Section{Heading: "🧾 Pedidos", Lines: []string{
			fmt.Sprintf("Total: %d", orders.Total),
			fmt.Sprintf("Pendientes: %d", orders.Pending),
			fmt.Sprintf("Completados: %d", orders.Completed),
			fmt.Sprintf("Cancelados: %d", orders.Cancelled),
		}})
	}
	if want.appointments {
		r.Sections = append(r.Sections, format.Section{Heading: "📅 Citas", Lines: []string{
			fmt.Sprintf("Agendadas: %d", appointments.Scheduled),
			fmt.Sprintf("Completadas: %d", appointments.Completed),
			fmt.Sprintf("No asistieron: %d", appointments.NoShow),
			fmt.Sprintf("Canceladas: %d", appointments.Cancelled),
		}})
	}
	if want.leads {
		r.Sections = append(r.Sections, format.Section{Heading: "🎯 Prospectos", Lines: []string{
			fmt.Sprintf("Nuevos: %d", leads.New),
			fmt.Sprintf("Calientes: %d", leads.Hot),
			fmt.Sprintf("Convertidos: %d", leads.Converted),
		}})
	}
	return reply(s, r)
}

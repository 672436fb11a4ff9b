package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// Configure proposes a change to the business configuration, or lists the
// current records when the message is not a change request. Proposals are
// stored as the pending action and only applied by Confirm.
func (h *Handlers) Configure(ctx context.Context, s session.State) session.Update {
	d, err := parseProposal(s.Message.Text)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return replyText(s, ve.Message).WithError(session.KindValidation, err)
		}
		return degraded(ctx, s, "parse_proposal", err)
	}
	if d == nil && s.Intent == intent.ConfigPrices {
		d = draftFromEntities(s)
	}
	if d == nil {
		return h.listConfig(ctx, s)
	}
	if h.business == nil {
		return degraded(ctx, s, "configure", errNoBackend)
	}

	if d.lookup != "" {
		id, err := h.resolve(ctx, s.Caller.TenantID, d.Entity, d.lookup)
		if err != nil {
			return degraded(ctx, s, "resolve_"+string(d.Entity), err)
		}
		if id == "" {
			msg := fmt.Sprintf("No encontré «%s». Revisa el nombre e intenta de nuevo.", d.lookup)
			return replyText(s, msg).WithError(session.KindValidation, invalid("name", "not found: "+d.lookup))
		}
		d.EntityID = id
	}

	now := h.now()
	p := session.NewPending(d.Type, d.Entity, d.Data, d.EntityID, now, h.pendingTTL)
	if s.Pending != nil {
		slog.Warn("replacing pending action",
			trace.Attr(ctx),
			"tenant", s.Caller.TenantID,
			"previous", s.Pending.ID,
			"previous_type", s.Pending.Type,
			"next", p.ID,
		)
	}

	minutes := int(h.pendingTTL.Minutes())
	return reply(s, format.Report{
		Title:    "Confirma el cambio",
		Intro:    d.prompt,
		Footer:   fmt.Sprintf("Responde «sí» para confirmar o «no» para cancelar. La propuesta vence en %d min.", minutes),
		Keyboard: format.ConfirmKeyboard(),
	}).WithPending(p)
}

// resolve finds the id of the record called name, or "" when none matches.
func (h *Handlers) resolve(ctx context.Context, tenantID string, entity session.EntityType, name string) (string, error) {
	switch entity {
	case session.EntityService:
		services, err := read(ctx, h, func(ctx context.Context) ([]store.Service, error) {
			return h.business.GetServices(ctx, tenantID)
		})
		if err != nil {
			return "", err
		}
		for _, svc := range services {
			if strings.EqualFold(svc.Name, name) {
				return svc.ID, nil
			}
		}
	case session.EntityStaff:
		staff, err := read(ctx, h, func(ctx context.Context) ([]store.StaffMember, error) {
			return h.business.GetStaff(ctx, tenantID)
		})
		if err != nil {
			return "", err
		}
		for _, m := range staff {
			if strings.EqualFold(m.Name, name) {
				return m.ID, nil
			}
		}
	case session.EntityPromotion:
		promos, err := read(ctx, h, func(ctx context.Context) ([]store.Promotion, error) {
			return h.business.GetActivePromotions(ctx, tenantID)
		})
		if err != nil {
			return "", err
		}
		for _, p := range promos {
			if strings.EqualFold(p.Title, name) {
				return p.ID, nil
			}
		}
	}
	return "", nil
}

func (h *Handlers) listConfig(ctx context.Context, s session.State) session.Update {
	if h.business == nil {
		return degraded(ctx, s, "configure", errNoBackend)
	}
	tenant := s.Caller.TenantID

	switch s.Intent {
	case intent.ConfigHours:
		hours, err := read(ctx, h, func(ctx context.Context) ([]store.Hours, error) {
			return h.business.GetHours(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "get_hours", err)
		}
		return reply(s, hoursReport(hours))

	case intent.ConfigStaff:
		staff, err := read(ctx, h, func(ctx context.Context) ([]store.StaffMember, error) {
			return h.business.GetStaff(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "get_staff", err)
		}
		if len(staff) == 0 {
			return replyText(s, "Aún no hay personas registradas. Ejemplo: agregar doctora Ana Pérez")
		}
		lines := make([]string, 0, len(staff))
		for _, m := range staff {
			line := m.Name
			if m.Role != "" {
				line += " · " + m.Role
			}
			lines = append(lines, line)
		}
		return reply(s, format.Report{Title: "👥 Equipo", Sections: []format.Section{{Lines: lines}}})

	case intent.ConfigPromotions:
		promos, err := read(ctx, h, func(ctx context.Context) ([]store.Promotion, error) {
			return h.business.GetActivePromotions(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "get_promotions", err)
		}
		if len(promos) == 0 {
			return replyText(s, "No hay promociones activas. Ejemplo: crear promoción Verano 15%")
		}
		lines := make([]string, 0, len(promos))
		for _, p := range promos {
			lines = append(lines, fmt.Sprintf("%s · %s", p.Title, discountLabel(p.DiscountType, p.DiscountValue)))
		}
		return reply(s, format.Report{Title: "🏷️ Promociones activas", Sections: []format.Section{{Lines: lines}}})

	default:
		services, err := read(ctx, h, func(ctx context.Context) ([]store.Service, error) {
			return h.business.GetServices(ctx, tenant)
		})
		if err != nil {
			return degraded(ctx, s, "get_services", err)
		}
		if len(services) == 0 {
			return replyText(s, "Aún no hay servicios. Ejemplo: agregar servicio Limpieza Dental $500")
		}
		lines := make([]string, 0, len(services))
		for _, svc := range services {
			if !svc.Active {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s · %s", svc.Name, format.Money(svc.Price)))
		}
		return reply(s, format.Report{
			Title:    "🛎️ Servicios",
			Sections: []format.Section{{Lines: lines}},
			Footer:   "Para cambiar un precio: cambiar precio de <servicio> a $<precio>",
		})
	}
}

func hoursReport(hours []store.Hours) format.Report {
	byDay := make(map[int]store.Hours, len(hours))
	for _, h := range hours {
		byDay[h.Day] = h
	}
	lines := make([]string, 0, 7)
	// Monday first.
	for i := 1; i <= 7; i++ {
		day := i % 7
		label := capitalize(dayNames[day])
		h, ok := byDay[day]
		switch {
		case !ok:
			lines = append(lines, label+": sin horario")
		case h.Closed:
			lines = append(lines, label+": cerrado")
		default:
			lines = append(lines, fmt.Sprintf("%s: %s a %s", label, h.Open, h.Close))
		}
	}
	return format.Report{
		Title:    "🕘 Horarios",
		Sections: []format.Section{{Lines: lines}},
		Footer:   "Para cambiarlo: lunes de 09:00 a 18:00",
	}
}

func discountLabel(kind string, value float64) string {
	if kind == store.DiscountFixed {
		return format.Money(value) + " de descuento"
	}
	return qty(value) + "% de descuento"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

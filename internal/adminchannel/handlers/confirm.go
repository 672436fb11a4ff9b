package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/common/trace"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

const (
	msgNothingToConfirm = "No hay ninguna acción pendiente por confirmar."
	msgExpired          = "La propuesta expiró y no se aplicó ningún cambio. Vuelve a pedirlo si aún lo necesitas."
	msgInvalidExpiry    = "La propuesta pendiente está dañada y la descarté. Vuelve a pedir el cambio."
	msgSaveFailed       = "No pude guardar el cambio. Intenta de nuevo en unos minutos."
)

// executor performs the single store mutation for a confirmed action.
type executor func(ctx context.Context, h *Handlers, tenantID string, p *session.PendingAction) (store.Result, error)

var executors = map[session.EntityType]executor{
	session.EntityService:   execService,
	session.EntityPrice:     execPrice,
	session.EntityHours:     execHours,
	session.EntityStaff:     execStaff,
	session.EntityPromotion: execPromotion,
}

// Confirm applies the pending action. The pending slot is cleared on every
// path except "nothing to confirm", where it is already empty.
func (h *Handlers) Confirm(ctx context.Context, s session.State) session.Update {
	now := h.now()
	p := s.Pending

	if err := p.Check(now); err != nil {
		switch {
		case errors.Is(err, session.ErrNoPendingAction):
			return replyText(s, msgNothingToConfirm).WithError(session.KindNoPendingAction, err)
		case errors.Is(err, session.ErrInvalidExpiry):
			return replyText(s, msgInvalidExpiry).ClearPending().WithError(session.KindInvalidExpiry, err)
		default:
			return replyText(s, msgExpired).ClearPending().WithError(session.KindPendingExpired, err)
		}
	}

	res, err := h.execute(ctx, s.Caller.TenantID, p)
	log := slog.With(trace.Attr(ctx), "tenant", s.Caller.TenantID, "action", p.Type, "entity", p.EntityType)

	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		log.Info("pending action rejected", "err", err)
		return replyText(s, "No pude aplicar el cambio: "+ve.Message).
			ClearPending().
			Record(session.Executed(p, "", err, now)).
			WithError(session.KindValidation, err)

	case err != nil:
		log.Error("pending action failed", "err", err)
		return replyText(s, msgSaveFailed).
			ClearPending().
			Record(session.Executed(p, "", err, now)).
			WithError(session.KindExternalOperation, err)

	case !res.Success:
		log.Info("pending action refused by store", "reason", res.Error)
		refused := errors.New(res.Error)
		return replyText(s, "No se aplicó el cambio: "+res.Error).
			ClearPending().
			Record(session.Executed(p, res.EntityID, refused, now)).
			WithError(session.KindExternalOperation, refused)
	}

	log.Info("pending action executed", "entity_id", res.EntityID)
	return replyText(s, successMessage(p)).
		ClearPending().
		Record(session.Executed(p, res.EntityID, nil, now))
}

func (h *Handlers) execute(ctx context.Context, tenantID string, p *session.PendingAction) (store.Result, error) {
	exec, ok := executors[p.EntityType]
	if !ok {
		return store.Result{}, invalid("entity_type", fmt.Sprintf("tipo de registro no soportado: %q", p.EntityType))
	}
	if h.business == nil {
		return store.Result{}, errNoBackend
	}
	return exec(ctx, h, tenantID, p)
}

func execService(ctx context.Context, h *Handlers, tenantID string, p *session.PendingAction) (store.Result, error) {
	switch p.Type {
	case session.ActionCreate, session.ActionUpdate:
		name := strings.TrimSpace(p.String("name"))
		if name == "" {
			return store.Result{}, invalid("name", "falta el nombre del servicio")
		}
		price, err := positivePrice(p)
		if err != nil {
			return store.Result{}, err
		}
		if p.Type == session.ActionUpdate && p.EntityID == "" {
			return store.Result{}, invalid("entity_id", "falta el servicio a modificar")
		}
		svc := store.Service{ID: p.EntityID, Name: name, Price: price, Active: true}
		if p.Type == session.ActionCreate {
			svc.ID = ""
		}
		return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
			return h.business.UpsertService(ctx, tenantID, svc)
		})
	case session.ActionDelete:
		if p.EntityID == "" {
			return store.Result{}, invalid("entity_id", "falta el servicio a eliminar")
		}
		return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
			return h.business.DeleteService(ctx, tenantID, p.EntityID)
		})
	}
	return store.Result{}, unsupported(p)
}

func execPrice(ctx context.Context, h *Handlers, tenantID string, p *session.PendingAction) (store.Result, error) {
	if p.Type != session.ActionUpdate {
		return store.Result{}, unsupported(p)
	}
	name := strings.TrimSpace(p.String("name"))
	if name == "" {
		return store.Result{}, invalid("name", "falta el nombre del servicio")
	}
	price, err := positivePrice(p)
	if err != nil {
		return store.Result{}, err
	}
	return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
		return h.business.UpdatePriceByName(ctx, tenantID, name, price)
	})
}

func execHours(ctx context.Context, h *Handlers, tenantID string, p *session.PendingAction) (store.Result, error) {
	if p.Type != session.ActionUpdate && p.Type != session.ActionCreate {
		return store.Result{}, unsupported(p)
	}
	day, ok := p.Number("day")
	if !ok || day != math.Trunc(day) || day < 0 || day > 6 {
		return store.Result{}, invalid("day", "el día debe estar entre 0 y 6")
	}
	hours := store.Hours{Day: int(day), Closed: dataBool(p, "closed")}
	if !hours.Closed {
		open, ok1 := validClock(p.String("open"))
		closeAt, ok2 := validClock(p.String("close"))
		if !ok1 || !ok2 {
			return store.Result{}, invalid("hours", "el horario debe tener formato HH:MM")
		}
		if open >= closeAt {
			return store.Result{}, invalid("hours", "la hora de apertura debe ser anterior a la de cierre")
		}
		hours.Open, hours.Close = open, closeAt
	}
	return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
		return h.business.UpsertHours(ctx, tenantID, hours)
	})
}

func execStaff(ctx context.Context, h *Handlers, tenantID string, p *session.PendingAction) (store.Result, error) {
	switch p.Type {
	case session.ActionCreate:
		name := strings.TrimSpace(p.String("name"))
		if name == "" {
			return store.Result{}, invalid("name", "falta el nombre")
		}
		m := store.StaffMember{Name: name, Role: p.String("role"), Active: true}
		return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
			return h.business.UpsertStaff(ctx, tenantID, m)
		})
	case session.ActionDelete:
		if p.EntityID == "" {
			return store.Result{}, invalid("entity_id", "falta la persona a eliminar")
		}
		return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
			return h.business.DeleteStaff(ctx, tenantID, p.EntityID)
		})
	}
	return store.Result{}, unsupported(p)
}

func execPromotion(ctx context.Context, h *Handlers, tenantID string, p *session.PendingAction) (store.Result, error) {
	switch p.Type {
	case session.ActionCreate:
		title := strings.TrimSpace(p.String("title"))
		if title == "" {
			return store.Result{}, invalid("title", "falta el nombre de la promoción")
		}
		value, _ := p.Number("discount_value")
		kind := p.String("discount_type")
		switch kind {
		case store.DiscountPercentage:
			if value <= 0 || value > 100 {
				return store.Result{}, invalid("discount_value", "el porcentaje debe ser mayor a 0 y hasta 100")
			}
		case store.DiscountFixed:
			if value <= 0 {
				return store.Result{}, invalid("discount_value", "el descuento debe ser mayor a 0")
			}
		default:
			return store.Result{}, invalid("discount_type", fmt.Sprintf("tipo de descuento desconocido: %q", kind))
		}
		promo := store.Promotion{Title: title, DiscountType: kind, DiscountValue: value, Active: true}
		return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
			return h.business.UpsertPromotion(ctx, tenantID, promo)
		})
	case session.ActionDelete:
		if p.EntityID == "" {
			return store.Result{}, invalid("entity_id", "falta la promoción a eliminar")
		}
		return h.mutate(ctx, func(ctx context.Context) (store.Result, error) {
			return h.business.DeletePromotion(ctx, tenantID, p.EntityID)
		})
	}
	return store.Result{}, unsupported(p)
}

func positivePrice(p *session.PendingAction) (float64, error) {
	price, ok := p.Number("price")
	if !ok || price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return 0, invalid("price", "el precio debe ser mayor a 0")
	}
	return price, nil
}

// validClock accepts only canonical "HH:MM".
func validClock(s string) (string, bool) {
	if len(s) != 5 || s[2] != ':' {
		return "", false
	}
	return parseClock(s)
}

func dataBool(p *session.PendingAction, key string) bool {
	b, _ := p.Data[key].(bool)
	return b
}

func unsupported(p *session.PendingAction) error {
	return invalid("type", fmt.Sprintf("acción %q no soportada para %q", p.Type, p.EntityType))
}

func successMessage(p *session.PendingAction) string {
	name := p.String("name")
	switch p.EntityType {
	case session.EntityService:
		switch p.Type {
		case session.ActionCreate:
			return fmt.Sprintf("✅ Agregué el servicio «%s».", name)
		case session.ActionDelete:
			return fmt.Sprintf("✅ Eliminé el servicio «%s».", name)
		}
		return fmt.Sprintf("✅ Actualicé el servicio «%s».", name)
	case session.EntityPrice:
		price, _ := p.Number("price")
		return fmt.Sprintf("✅ El precio de «%s» ahora es %s.", name, format.Money(price))
	case session.EntityHours:
		day, _ := p.Number("day")
		return fmt.Sprintf("✅ Actualicé el horario del %s.", dayNames[int(day)])
	case session.EntityStaff:
		if p.Type == session.ActionDelete {
			return fmt.Sprintf("✅ «%s» ya no está en el equipo.", name)
		}
		return fmt.Sprintf("✅ Agregué a «%s» al equipo.", name)
	case session.EntityPromotion:
		title := p.String("title")
		if p.Type == session.ActionDelete {
			return fmt.Sprintf("✅ Eliminé la promoción «%s».", title)
		}
		return fmt.Sprintf("✅ La promoción «%s» está activa.", title)
	}
	return "✅ Cambio aplicado."
}

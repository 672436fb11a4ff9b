package handlers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/store"
)

// draft is a parsed configuration request before it becomes a pending
// action. When lookup is set the entity id still has to be resolved by name.
type draft struct {
	Type     session.ActionType
	Entity   session.EntityType
	Data     map[string]any
	EntityID string
	lookup   string
	prompt   string
}

// rule recognises one kind of configuration request. When verb matches but
// build cannot extract the details, the operator gets hint back.
type rule struct {
	verb  *regexp.Regexp
	hint  string
	build func(text string) (*draft, bool)
}

const (
	amountPattern = `(\d[\d,]*(?:\.\d+)?)`
	dayPattern    = `(domingo|lunes|martes|mi[eé]rcoles|jueves|viernes|s[aá]bado)s?`
	clockPattern  = `(\d{1,2}(?::\d{2})?)`
	staffNouns    = `(empleado|empleada|doctor|doctora|estilista|colaborador|colaboradora)`
	hoursVerb     = `(?:(?:cambiar|actualizar|poner)\s+(?:el\s+)?horario\s+(?:del?\s+|el\s+)?)?(?:el\s+)?`
)

var (
	reCreateServiceVerb = regexp.MustCompile(`(?i)^(?:agregar|añadir|anadir|crear|nuevo)\s+(?:un\s+)?(?:nuevo\s+)?servicio\b`)
	reCreateService     = regexp.MustCompile(`(?i)^(?:agregar|añadir|anadir|crear|nuevo)\s+(?:un\s+)?(?:nuevo\s+)?servicio\s+(?:de\s+|llamado\s+)?(.+?)\s+(?:(?:a|por|en|de|con precio de)\s+)?\$\s*` + amountPattern + `\s*(?:mxn|pesos)?$`)

	reDeleteServiceVerb = regexp.MustCompile(`(?i)^(?:eliminar|borrar|quitar)\s+(?:el\s+)?servicio\b`)
	reDeleteService     = regexp.MustCompile(`(?i)^(?:eliminar|borrar|quitar)\s+(?:el\s+)?servicio\s+(?:de\s+)?(.+)$`)

	rePriceVerb = regexp.MustCompile(`(?i)^(?:cambiar|actualizar|modificar)\s+(?:el\s+)?precio\b`)
	rePrice     = regexp.MustCompile(`(?i)^(?:cambiar|actualizar|modificar)\s+(?:el\s+)?precio\s+(?:del?\s+)?(.+?)\s+a\s+\$?\s*` + amountPattern + `\s*(?:mxn|pesos)?$`)

	reHoursVerb = regexp.MustCompile(`(?i)^(?:(?:cambiar|actualizar|poner)\s+(?:el\s+)?horario\b|(?:el\s+)?` + dayPattern + `\s)`)
	reHours     = regexp.MustCompile(`(?i)^` + hoursVerb + dayPattern + `\s+(?:de\s+)?` + clockPattern + `\s*(?:a|-|hasta)\s*` + clockPattern + `$`)
	reClosed    = regexp.MustCompile(`(?i)^` + hoursVerb + dayPattern + `\s+(?:est[aá]\s+|queda\s+)?cerrado$`)

	reCreateStaffVerb = regexp.MustCompile(`(?i)^(?:agregar|añadir|anadir|crear|registrar|nuevo|nueva)\s+(?:a\s+)?(?:un\s+|una\s+|al\s+|la\s+)?` + staffNouns + `\b`)
	reCreateStaff     = regexp.MustCompile(`(?i)^(?:agregar|añadir|anadir|crear|registrar|nuevo|nueva)\s+(?:a\s+)?(?:un\s+|una\s+|al\s+|la\s+)?` + staffNouns + `\s+(.+?)(?:\s+(?:rol|como)\s+(.+))?$`)

	reDeleteStaffVerb = regexp.MustCompile(`(?i)^(?:eliminar|borrar|quitar)\s+(?:a\s+)?(?:al\s+|la\s+)?` + staffNouns + `\b`)
	reDeleteStaff     = regexp.MustCompile(`(?i)^(?:eliminar|borrar|quitar)\s+(?:a\s+)?(?:al\s+|la\s+)?` + staffNouns + `\s+(.+)$`)

	reCreatePromoVerb = regexp.MustCompile(`(?i)^(?:crear|agregar|añadir|anadir|nueva)\s+(?:una\s+)?(?:nueva\s+)?promoci[oó]n\b`)
	reCreatePromo     = regexp.MustCompile(`(?i)^(?:crear|agregar|añadir|anadir|nueva)\s+(?:una\s+)?(?:nueva\s+)?promoci[oó]n\s+(.+?)\s+(?:(\d+(?:\.\d+)?)\s*%|\$\s*` + amountPattern + `)(?:\s+de\s+descuento)?$`)

	reDeletePromoVerb = regexp.MustCompile(`(?i)^(?:eliminar|borrar|quitar|terminar)\s+(?:la\s+)?promoci[oó]n\b`)
	reDeletePromo     = regexp.MustCompile(`(?i)^(?:eliminar|borrar|quitar|terminar)\s+(?:la\s+)?promoci[oó]n\s+(.+)$`)
)

// dayNames is indexed by time.Weekday.
var dayNames = [7]string{"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado"}

var dayNumbers = map[string]int{
	"domingo": 0, "lunes": 1, "martes": 2, "miércoles": 3, "miercoles": 3,
	"jueves": 4, "viernes": 5, "sábado": 6, "sabado": 6,
}

var rules = []rule{
	{
		verb: reDeleteServiceVerb,
		hint: "¿Qué servicio quieres eliminar? Ejemplo: eliminar servicio Limpieza Dental",
		build: func(text string) (*draft, bool) {
			m := reDeleteService.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			name := cleanName(m[1])
			return &draft{
				Type: session.ActionDelete, Entity: session.EntityService,
				Data: map[string]any{"name": name}, lookup: name,
				prompt: fmt.Sprintf("Voy a eliminar el servicio «%s».", name),
			}, name != ""
		},
	},
	{
		verb: reCreateServiceVerb,
		hint: "Necesito el nombre y el precio. Ejemplo: agregar servicio Limpieza Dental $500",
		build: func(text string) (*draft, bool) {
			m := reCreateService.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			name := cleanName(m[1])
			price, ok := parseAmount(m[2])
			if !ok || name == "" {
				return nil, false
			}
			return &draft{
				Type: session.ActionCreate, Entity: session.EntityService,
				Data:   map[string]any{"name": name, "price": price},
				prompt: fmt.Sprintf("Voy a agregar el servicio «%s» con precio %s.", name, format.Money(price)),
			}, true
		},
	},
	{
		verb:  rePriceVerb,
		hint:  "¿De qué servicio y a qué precio? Ejemplo: cambiar precio de Consulta a $600",
		build: buildPrice,
	},
	{
		verb: reHoursVerb,
		hint: "Indica el día y el horario. Ejemplo: lunes de 09:00 a 18:00, o domingo cerrado",
		build: func(text string) (*draft, bool) {
			if m := reClosed.FindStringSubmatch(text); m != nil {
				day := dayNumbers[strings.ToLower(m[1])]
				return &draft{
					Type: session.ActionUpdate, Entity: session.EntityHours,
					Data:   map[string]any{"day": day, "closed": true},
					prompt: fmt.Sprintf("Voy a marcar el %s como cerrado.", dayNames[day]),
				}, true
			}
			m := reHours.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			day := dayNumbers[strings.ToLower(m[1])]
			open, ok1 := parseClock(m[2])
			closeAt, ok2 := parseClock(m[3])
			if !ok1 || !ok2 || open >= closeAt {
				return nil, false
			}
			return &draft{
				Type: session.ActionUpdate, Entity: session.EntityHours,
				Data:   map[string]any{"day": day, "open": open, "close": closeAt, "closed": false},
				prompt: fmt.Sprintf("Voy a poner el horario del %s de %s a %s.", dayNames[day], open, closeAt),
			}, true
		},
	},
	{
		verb: reDeleteStaffVerb,
		hint: "¿A quién quieres quitar del equipo? Ejemplo: eliminar empleado Ana",
		build: func(text string) (*draft, bool) {
			m := reDeleteStaff.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			name := cleanName(m[2])
			return &draft{
				Type: session.ActionDelete, Entity: session.EntityStaff,
				Data: map[string]any{"name": name}, lookup: name,
				prompt: fmt.Sprintf("Voy a quitar a «%s» del equipo.", name),
			}, name != ""
		},
	},
	{
		verb: reCreateStaffVerb,
		hint: "¿Cómo se llama? Ejemplo: agregar doctora Ana Pérez rol ortodoncista",
		build: func(text string) (*draft, bool) {
			m := reCreateStaff.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			name := cleanName(m[2])
			role := strings.TrimSpace(m[3])
			if role == "" {
				role = staffRole(m[1])
			}
			if name == "" {
				return nil, false
			}
			prompt := fmt.Sprintf("Voy a agregar a «%s» al equipo.", name)
			if role != "" {
				prompt = fmt.Sprintf("Voy a agregar a «%s» al equipo (rol: %s).", name, role)
			}
			return &draft{
				Type: session.ActionCreate, Entity: session.EntityStaff,
				Data:   map[string]any{"name": name, "role": role},
				prompt: prompt,
			}, true
		},
	},
	{
		verb: reDeletePromoVerb,
		hint: "¿Qué promoción quieres eliminar? Ejemplo: eliminar promoción Martes 2x1",
		build: func(text string) (*draft, bool) {
			m := reDeletePromo.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			title := cleanName(m[1])
			return &draft{
				Type: session.ActionDelete, Entity: session.EntityPromotion,
				Data: map[string]any{"title": title}, lookup: title,
				prompt: fmt.Sprintf("Voy a eliminar la promoción «%s».", title),
			}, title != ""
		},
	},
	{
		verb: reCreatePromoVerb,
		hint: "Necesito el nombre y el descuento. Ejemplo: crear promoción Verano 15% o crear promoción Bienvenida $100",
		build: func(text string) (*draft, bool) {
			m := reCreatePromo.FindStringSubmatch(text)
			if m == nil {
				return nil, false
			}
			title := cleanName(m[1])
			kind, raw, shown := store.DiscountPercentage, m[2], m[2]+"%"
			if raw == "" {
				kind, raw = store.DiscountFixed, m[3]
			}
			value, ok := parseAmount(raw)
			if !ok || title == "" {
				return nil, false
			}
			if kind == store.DiscountFixed {
				shown = format.Money(value)
			}
			return &draft{
				Type: session.ActionCreate, Entity: session.EntityPromotion,
				Data:   map[string]any{"title": title, "discount_type": kind, "discount_value": value},
				prompt: fmt.Sprintf("Voy a crear la promoción «%s» con %s de descuento.", title, shown),
			}, true
		},
	},
}

// parseProposal turns free text into a draft. It returns nil, nil when the
// text is not a change request (the caller lists records instead) and a
// *ValidationError when the request is recognised but incomplete.
func parseProposal(text string) (*draft, error) {
	text = strings.TrimRight(strings.TrimSpace(text), ".!")
	for _, r := range rules {
		if !r.verb.MatchString(text) {
			continue
		}
		d, ok := r.build(text)
		if !ok {
			return nil, invalid("", r.hint)
		}
		return d, nil
	}
	return nil, nil
}

func buildPrice(text string) (*draft, bool) {
	m := rePrice.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	name := cleanName(m[1])
	price, ok := parseAmount(m[2])
	if !ok || name == "" {
		return nil, false
	}
	return priceDraft(name, price), true
}

func priceDraft(name string, price float64) *draft {
	return &draft{
		Type: session.ActionUpdate, Entity: session.EntityPrice,
		Data:   map[string]any{"name": name, "price": price},
		prompt: fmt.Sprintf("Voy a cambiar el precio de «%s» a %s.", name, format.Money(price)),
	}
}

// draftFromEntities builds a price change from classifier entities when the
// text itself did not parse.
func draftFromEntities(s session.State) *draft {
	name := s.EntityString("service_name")
	if name == "" {
		name = s.EntityString("name")
	}
	price, ok := entityNumber(s.Entities["price"])
	if name == "" || !ok || price <= 0 {
		return nil
	}
	return priceDraft(cleanName(name), price)
}

func entityNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		return parseAmount(n)
	}
	return 0, false
}

// parseAmount accepts "500", "$1,250.50" and similar. Only positive amounts
// are valid.
func parseAmount(s string) (float64, bool) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// parseClock normalises "9", "9:30" or "18:00" to "HH:MM".
func parseClock(s string) (string, bool) {
	hh, mm := s, "00"
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hh, mm = s[:i], s[i+1:]
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'«»“”`)
}

func staffRole(noun string) string {
	switch n := strings.ToLower(noun); n {
	case "empleado", "empleada", "colaborador", "colaboradora":
		return ""
	default:
		return n
	}
}

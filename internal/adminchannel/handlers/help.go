package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

// Help lists the commands the caller may use. A turn that already carries
// an error (classifier failure, unknown intent) gets the "no entendí"
// intro instead of the regular one.
func (h *Handlers) Help(ctx context.Context, s session.State) session.Update {
	hc := messages.Help
	r := format.Report{
		Title:  hc.Title,
		Intro:  hc.Intro,
		Footer: hc.Footer,
	}
	if s.Error != nil {
		r.Intro = hc.NotUnderstood
	}
	for _, sec := range hc.Sections {
		if !sec.allowed(s.Caller.Capabilities) {
			continue
		}
		r.Sections = append(r.Sections, format.Section{Heading: sec.Heading, Lines: sec.Lines})
	}
	return reply(s, r)
}

// Greeting answers with a time-of-day greeting in the tenant's timezone.
func (h *Handlers) Greeting(ctx context.Context, s session.State) session.Update {
	local := h.now().In(s.Caller.Location())

	salute := greetingFor(local)
	if s.Caller.DisplayName != "" {
		salute += ", " + s.Caller.DisplayName
	}
	salute += " 👋"

	intro := "Soy tu asistente de administración."
	if s.Caller.BusinessName != "" {
		intro = fmt.Sprintf("Soy tu asistente de administración de %s.", s.Caller.BusinessName)
	}

	var kb format.Keyboard
	row := []format.Button{}
	if s.Caller.Capabilities.CanViewAnalytics {
		row = append(row, format.Button{Text: "📊 Resumen de hoy", Data: "/resumen"})
	}
	row = append(row, format.Button{Text: "❓ Ayuda", Data: "/ayuda"})
	kb = append(kb, row)

	return reply(s, format.Report{
		Title:    salute,
		Intro:    intro,
		Footer:   "¿En qué te ayudo hoy?",
		Keyboard: kb,
	})
}

func greetingFor(t time.Time) string {
	switch hr := t.Hour(); {
	case hr >= 5 && hr < 12:
		return "Buenos días"
	case hr >= 12 && hr < 19:
		return "Buenas tardes"
	default:
		return "Buenas noches"
	}
}

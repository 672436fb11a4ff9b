// Package format renders handler reports as channel-specific chat payloads.
//
// Telegram gets HTML parse mode with inline keyboards; WhatsApp gets its
// lightweight *bold* markup and at most three quick-reply buttons.
package format

import (
	"fmt"
	"html"
	"math"
	"strings"
	"unicode/utf8"
)

// Channel is the chat platform the operator is using.
type Channel string

const (
	Telegram Channel = "telegram"
	WhatsApp Channel = "whatsapp"
)

// ParseMode tells the outbound sender how to interpret Text.
type ParseMode string

const (
	ParseHTML  ParseMode = "HTML"
	ParsePlain ParseMode = ""
)

// whatsappMaxButtons and whatsappMaxTitle are the WhatsApp interactive
// message limits for reply buttons.
const (
	whatsappMaxButtons = 3
	whatsappMaxTitle   = 20
)

// Button is one quick-reply affordance. Data is the text sent back when the
// operator taps it, so it must be something the fast matcher understands.
type Button struct {
	Text string `json:"text"`
	Data string `json:"data"`
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Message is the payload handed to the outbound sender.
type Message struct {
	Text      string    `json:"text"`
	Keyboard  Keyboard  `json:"keyboard,omitempty"`
	ParseMode ParseMode `json:"parse_mode,omitempty"`
}

// Section is a titled block of report lines.
type Section struct {
	Heading string
	Lines   []string
}

// Report is the channel-neutral output of a handler.
type Report struct {
	Title    string
	Intro    string
	Sections []Section
	Footer   string
	Keyboard Keyboard
}

// Render converts r for ch. Unknown channels are rendered as plain text.
func Render(r Report, ch Channel) Message {
	var b strings.Builder
	bold, esc := plainBold, identity
	mode := ParsePlain
	switch ch {
	case Telegram:
		bold, esc, mode = htmlBold, html.EscapeString, ParseHTML
	case WhatsApp:
		bold = whatsappBold
	}

	if r.Title != "" {
		b.WriteString(bold(esc(r.Title)))
		b.WriteString("\n")
	}
	if r.Intro != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(esc(r.Intro))
		b.WriteString("\n")
	}
	for _, s := range r.Sections {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if s.Heading != "" {
			b.WriteString(bold(esc(s.Heading)))
			b.WriteString("\n")
		}
		for _, l := range s.Lines {
			b.WriteString("• ")
			b.WriteString(esc(l))
			b.WriteString("\n")
		}
	}
	if r.Footer != "" {
		b.WriteString("\n")
		b.WriteString(esc(r.Footer))
	}

	return Message{
		Text:      strings.TrimRight(b.String(), "\n"),
		Keyboard:  keyboardFor(r.Keyboard, ch),
		ParseMode: mode,
	}
}

// Text renders a single paragraph for ch.
func Text(s string, ch Channel) Message {
	return Render(Report{Intro: s}, ch)
}

// ConfirmKeyboard is the two-button confirm/cancel affordance attached to
// every proposal.
func ConfirmKeyboard() Keyboard {
	return Keyboard{{
		{Text: "✅ Confirmar", Data: "/confirmar"},
		{Text: "❌ Cancelar", Data: "/cancelar"},
	}}
}

// Money formats an amount as "$1,234.50", dropping ".00".
func Money(v float64) string {
	neg := v < 0
	v = math.Abs(v)
	whole := int64(v)
	cents := int64(math.Round((v - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}

	digits := fmt.Sprintf("%d", whole)
	var grouped strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}

	out := "$" + grouped.String()
	if cents > 0 {
		out += fmt.Sprintf(".%02d", cents)
	}
	if neg {
		out = "-" + out
	}
	return out
}

func keyboardFor(k Keyboard, ch Channel) Keyboard {
	if len(k) == 0 || ch != WhatsApp {
		return k
	}
	// WhatsApp reply buttons are a single row.
	row := make([]Button, 0, whatsappMaxButtons)
	for _, r := range k {
		for _, btn := range r {
			if len(row) == whatsappMaxButtons {
				return Keyboard{row}
			}
			btn.Text = truncate(btn.Text, whatsappMaxTitle)
			row = append(row, btn)
		}
	}
	return Keyboard{row}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func identity(s string) string     { return s }
func htmlBold(s string) string     { return "<b>" + s + "</b>" }
func whatsappBold(s string) string { return "*" + s + "*" }
func plainBold(s string) string    { return s }

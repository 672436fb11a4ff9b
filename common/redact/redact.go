// Package redact strips sensitive values from text before it is logged,
// audited or echoed into an ops room.
//
// Two classes of data are covered: credentials (classifier API keys, store
// tokens) and customer contact data, chiefly the WhatsApp phone numbers that
// identify staff members in conversation ids.
package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// phonePattern matches international-looking phone numbers: an optional +,
// then 10 to 15 digits that may be separated by spaces or dashes.
var phonePattern = regexp.MustCompile(`\+?\d(?:[\s-]?\d){9,14}`)

// String replaces every occurrence of each secret in s with [REDACTED].
// Secrets shorter than 4 characters are ignored.
func String(s string, secrets ...string) string {
	for _, v := range secrets {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Phone masks all but the last four digits of every phone number in s.
//
//	redact.Phone("wa:+52 55 1234 5678") == "wa:***5678"
func Phone(s string) string {
	return phonePattern.ReplaceAllStringFunc(s, func(m string) string {
		digits := make([]byte, 0, len(m))
		for i := 0; i < len(m); i++ {
			if m[i] >= '0' && m[i] <= '9' {
				digits = append(digits, m[i])
			}
		}
		return "***" + string(digits[len(digits)-4:])
	})
}

// Map returns a shallow copy of m where string values under secret-looking
// keys are replaced and phone numbers in the remaining string values are
// masked.
func Map(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		str, ok := v.(string)
		switch {
		case !ok:
			out[k] = v
		case isSecretKey(k) && str != "":
			out[k] = placeholder
		default:
			out[k] = Phone(str)
		}
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, word := range []string{"password", "token", "secret", "key", "credential", "auth"} {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

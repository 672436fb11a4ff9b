// Package policy gates intents on the caller's capability flags.
package policy

import (
	"strings"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
)

// Capabilities are the permission flags carried by an authenticated caller.
type Capabilities struct {
	CanViewAnalytics        bool `json:"can_view_analytics"`
	CanConfigure            bool `json:"can_configure"`
	CanReceiveNotifications bool `json:"can_receive_notifications"`
}

// Decision explains an Evaluate outcome for logs and the audit trail.
type Decision struct {
	Allowed bool
	Rule    string
	Reason  string
}

const (
	ruleAnalytics = "analytics_requires_view"
	ruleConfig    = "config_requires_configure"
	ruleOpen      = "open"
)

// DenialMessage is the fixed response returned when a gate fails.
const DenialMessage = "No tienes permiso para realizar esta acción. Pide a un administrador que habilite el acceso."

// IsAllowed reports whether caps permit in.
func IsAllowed(in intent.Intent, caps Capabilities) bool {
	return Evaluate(in, caps).Allowed
}

// Evaluate applies the prefix rules: analytics_* requires CanViewAnalytics,
// config_* requires CanConfigure, everything else is open.
func Evaluate(in intent.Intent, caps Capabilities) Decision {
	s := string(in)
	switch {
	case strings.HasPrefix(s, "analytics_"):
		if !caps.CanViewAnalytics {
			return Decision{Rule: ruleAnalytics, Reason: "caller lacks analytics access"}
		}
		return Decision{Allowed: true, Rule: ruleAnalytics}
	case strings.HasPrefix(s, "config_"):
		if !caps.CanConfigure {
			return Decision{Rule: ruleConfig, Reason: "caller lacks configuration access"}
		}
		return Decision{Allowed: true, Rule: ruleConfig}
	default:
		return Decision{Allowed: true, Rule: ruleOpen}
	}
}

package policy

import (
	"testing"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/intent"
)

func TestIsAllowed(t *testing.T) {
	none := Capabilities{}
	full := Capabilities{CanViewAnalytics: true, CanConfigure: true, CanReceiveNotifications: true}

	for _, in := range intent.All() {
		if !IsAllowed(in, full) {
			t.Errorf("%q denied with full capabilities", in)
		}
		want := in.Family() != "analytics" && in.Family() != "config"
		if got := IsAllowed(in, none); got != want {
			t.Errorf("IsAllowed(%q, none) = %v, want %v", in, got, want)
		}
	}
}

func TestEvaluate_SeparateFlags(t *testing.T) {
	analyticsOnly := Capabilities{CanViewAnalytics: true}
	if !IsAllowed(intent.AnalyticsSales, analyticsOnly) {
		t.Error("analytics should be allowed with CanViewAnalytics")
	}
	d := Evaluate(intent.ConfigPrices, analyticsOnly)
	if d.Allowed || d.Rule != ruleConfig || d.Reason == "" {
		t.Errorf("unexpected decision %+v", d)
	}
	if d := Evaluate(intent.NotificationPause, Capabilities{}); !d.Allowed || d.Rule != ruleOpen {
		t.Errorf("notification intents must be open, got %+v", d)
	}
}

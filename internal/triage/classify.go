package triage

import (
	"strings"

	"github.com/linnemanlabs/ghtriage/internal/alert"
)

// Action is what the pipeline does with a classified alert.
type Action string

const (
	// ActionIgnore leaves the alert alone
	ActionIgnore Action = "ignore"

	// ActionDisplay prints the alert to the output
	ActionDisplay Action = "display"

	// ActionDismiss dismisses the alert with alert.PolicyDismissal
	ActionDismiss Action = "dismiss"
)

// Classify buckets an alert by its raw severity. Matching is case-insensitive;
// missing, empty or unrecognised values are SeverityUnknown.
func Classify(a alert.Alert) alert.Severity {
	switch s := alert.Severity(strings.ToLower(strings.TrimSpace(a.Severity))); s {
	case alert.SeverityLow, alert.SeverityMedium, alert.SeverityHigh, alert.SeverityCritical:
		return s
	default:
		return alert.SeverityUnknown
	}
}

// Policy maps severity buckets to actions. Buckets without a rule are ignored.
type Policy struct {
	Kind  alert.Kind
	Label string // human name of the alerts the policy acts on
	Rules map[alert.Severity]Action

	// ListAll prints a one-line summary of every fetched alert before acting.
	ListAll bool
}

// ActionFor returns the action for a bucket.
func (p Policy) ActionFor(s alert.Severity) Action {
	if a, ok := p.Rules[s]; ok {
		return a
	}
	return ActionIgnore
}

// CodeScanningPolicy displays medium severity code-scanning alerts.
var CodeScanningPolicy = Policy{
	Kind:  alert.KindCodeScanning,
	Label: "medium severity code scanning alerts",
	Rules: map[alert.Severity]Action{
		alert.SeverityMedium: ActionDisplay,
	},
}

// DependabotPolicy dismisses low severity dependency alerts as tolerable risk.
var DependabotPolicy = Policy{
	Kind:  alert.KindDependabot,
	Label: "low severity Dependabot alerts",
	Rules: map[alert.Severity]Action{
		alert.SeverityLow: ActionDismiss,
	},
	ListAll: true,
}

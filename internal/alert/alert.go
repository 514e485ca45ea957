// Package alert defines the typed security alert records triage operates on.
// Remote payloads are resolved into these types once, at parse time.
package alert

import "fmt"

// Kind identifies which alert listing an alert came from.
type Kind string

const (
	// KindCodeScanning is a static analysis alert (CodeQL and friends)
	KindCodeScanning Kind = "code-scanning"

	// KindDependabot is a dependency vulnerability alert
	KindDependabot Kind = "dependabot"
)

// Path returns the REST path for the kind's alert listing in the given repository.
func (k Kind) Path(owner, repo string) string {
	return fmt.Sprintf("repos/%s/%s/%s/alerts", owner, repo, k)
}

// Severity is a normalized severity bucket.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
	SeverityUnknown  Severity = "unknown"
)

// State is the remote lifecycle state of an alert. Values are owned by the
// remote system; the constants below are the ones triage cares about.
type State string

const (
	StateOpen      State = "open"
	StateDismissed State = "dismissed"
	StateFixed     State = "fixed"
)

// Location is a source position attached to code-scanning alerts.
type Location struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
}

// String renders the location as path:line, or just path when no line is known.
func (l Location) String() string {
	if l.StartLine <= 0 {
		return l.Path
	}
	return fmt.Sprintf("%s:%d", l.Path, l.StartLine)
}

// Alert is a single security alert as seen by the triage pipeline.
type Alert struct {
	Number int   `json:"number"`
	Kind   Kind  `json:"kind"`
	State  State `json:"state"`

	// Severity is the raw severity string from the payload. It is empty when
	// the field was absent or not a string.
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	HTMLURL  string `json:"html_url,omitempty"`

	// code-scanning only
	RuleID   string    `json:"rule_id,omitempty"`
	RuleName string    `json:"rule_name,omitempty"`
	Tool     string    `json:"tool,omitempty"`
	Location *Location `json:"location,omitempty"`

	// dependabot only
	Package      string `json:"package,omitempty"`
	Ecosystem    string `json:"ecosystem,omitempty"`
	ManifestPath string `json:"manifest_path,omitempty"`
	GHSAID       string `json:"ghsa_id,omitempty"`
}

// Dismissal is the reason and comment attached when an alert is dismissed.
type Dismissal struct {
	Reason  string
	Comment string
}

// PolicyDismissal is the fixed payload used when low severity dependency
// alerts are accepted by policy.
var PolicyDismissal = Dismissal{
	Reason:  "tolerable_risk",
	Comment: "Auto-triaged: accepted by policy",
}

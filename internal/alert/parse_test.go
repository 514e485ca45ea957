package alert

import (
	"errors"
	"strings"
	"testing"
)

const codeScanningBody = `[
  {
    "number": 42,
    "state": "open",
    "html_url": "https://github.com/acme/web/security/code-scanning/42",
    "rule": {
      "id": "js/xss",
      "name": "Cross-site scripting",
      "description": "Reflected XSS",
      "security_severity_level": "Medium"
    },
    "tool": {"name": "CodeQL"},
    "most_recent_instance": {
      "location": {"path": "src/app.js", "start_line": 17}
    }
  },
  {
    "number": 43,
    "state": "open",
    "rule": {"id": "go/sqli", "security_severity_level": 7},
    "tool": "CodeQL"
  }
]`

const dependabotBody = `[
  {
    "number": 7,
    "state": "open",
    "dependency": {
      "package": {"ecosystem": "pip", "name": "requests"},
      "manifest_path": "requirements.txt"
    },
    "security_advisory": {
      "ghsa_id": "GHSA-xxxx-yyyy-zzzz",
      "summary": "Session fixation",
      "severity": "low"
    }
  },
  {
    "number": 8,
    "state": "open",
    "security_advisory": null
  }
]`

func TestParseList_CodeScanning(t *testing.T) {
	t.Parallel()

	alerts, err := ParseList(KindCodeScanning, []byte(codeScanningBody))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("len = %d, want 2", len(alerts))
	}

	a := alerts[0]
	if a.Number != 42 {
		t.Errorf("Number = %d, want 42", a.Number)
	}
	if a.Kind != KindCodeScanning {
		t.Errorf("Kind = %q, want %q", a.Kind, KindCodeScanning)
	}
	if a.Severity != "Medium" {
		t.Errorf("Severity = %q, want raw %q", a.Severity, "Medium")
	}
	if a.RuleID != "js/xss" || a.RuleName != "Cross-site scripting" {
		t.Errorf("rule = %q/%q", a.RuleID, a.RuleName)
	}
	if a.Summary != "Reflected XSS" {
		t.Errorf("Summary = %q", a.Summary)
	}
	if a.Tool != "CodeQL" {
		t.Errorf("Tool = %q, want CodeQL", a.Tool)
	}
	if a.State != StateOpen {
		t.Errorf("State = %q, want open", a.State)
	}
	if a.Location == nil {
		t.Fatal("expected location")
	}
	if got := a.Location.String(); got != "src/app.js:17" {
		t.Errorf("Location = %q, want %q", got, "src/app.js:17")
	}

	// non-string severity and non-object tool resolve to zero values
	b := alerts[1]
	if b.Severity != "" {
		t.Errorf("Severity = %q, want empty for numeric severity", b.Severity)
	}
	if b.Tool != "" {
		t.Errorf("Tool = %q, want empty", b.Tool)
	}
	if b.Location != nil {
		t.Errorf("Location = %+v, want nil", b.Location)
	}
}

func TestParseList_Dependabot(t *testing.T) {
	t.Parallel()

	alerts, err := ParseList(KindDependabot, []byte(dependabotBody))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("len = %d, want 2", len(alerts))
	}

	a := alerts[0]
	if a.Number != 7 || a.Severity != "low" {
		t.Errorf("alert = %d/%q, want 7/low", a.Number, a.Severity)
	}
	if a.Package != "requests" || a.Ecosystem != "pip" || a.ManifestPath != "requirements.txt" {
		t.Errorf("dependency = %q %q %q", a.Package, a.Ecosystem, a.ManifestPath)
	}
	if a.GHSAID != "GHSA-xxxx-yyyy-zzzz" || a.Summary != "Session fixation" {
		t.Errorf("advisory = %q %q", a.GHSAID, a.Summary)
	}
	if a.Location != nil {
		t.Error("dependabot alerts carry no location")
	}

	if alerts[1].Severity != "" {
		t.Errorf("Severity = %q, want empty for null advisory", alerts[1].Severity)
	}
}

func TestParseList_UnexpectedShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantGot string
		wantMsg string
	}{
		{"error object", `{"message":"Bad credentials","documentation_url":"https://docs.github.com"}`, "object", "Bad credentials"},
		{"object without message", `{"alerts":[]}`, "object", ""},
		{"string", `"nope"`, "string", ""},
		{"number", `12`, "number", ""},
		{"null", `null`, "null", ""},
		{"invalid", `[{`, "invalid json", ""},
		{"empty body", ``, "invalid json", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			alerts, err := ParseList(KindDependabot, []byte(tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if alerts != nil {
				t.Errorf("alerts = %v, want nil", alerts)
			}
			if !errors.Is(err, ErrUnexpectedShape) {
				t.Errorf("errors.Is(err, ErrUnexpectedShape) = false for %v", err)
			}
			var se *ShapeError
			if !errors.As(err, &se) {
				t.Fatalf("expected *ShapeError, got %T", err)
			}
			if se.Got != tt.wantGot {
				t.Errorf("Got = %q, want %q", se.Got, tt.wantGot)
			}
			if se.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", se.Message, tt.wantMsg)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParseList_Empty(t *testing.T) {
	t.Parallel()

	alerts, err := ParseList(KindCodeScanning, []byte(`[]`))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if alerts == nil || len(alerts) != 0 {
		t.Errorf("alerts = %v, want empty non-nil slice", alerts)
	}
}

func TestParse_NonObjectElements(t *testing.T) {
	t.Parallel()

	alerts, err := ParseList(KindCodeScanning, []byte(`[1, "x", null, {"number": 3, "rule": "flat"}]`))
	if err != nil {
		t.Fatalf("ParseList: %v", err)
	}
	if len(alerts) != 4 {
		t.Fatalf("len = %d, want 4", len(alerts))
	}
	for i, a := range alerts[:3] {
		if a.Number != 0 || a.Severity != "" || a.Kind != KindCodeScanning {
			t.Errorf("alerts[%d] = %+v, want zero alert of kind code-scanning", i, a)
		}
	}
	if alerts[3].Number != 3 || alerts[3].RuleID != "" {
		t.Errorf("alerts[3] = %+v", alerts[3])
	}
}

func TestLocation_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		loc  Location
		want string
	}{
		{Location{Path: "a.go", StartLine: 3}, "a.go:3"},
		{Location{Path: "a.go"}, "a.go"},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestKind_Path(t *testing.T) {
	t.Parallel()

	if got := KindDependabot.Path("acme", "web"); got != "repos/acme/web/dependabot/alerts" {
		t.Errorf("Path = %q", got)
	}
	if got := KindCodeScanning.Path("acme", "web"); got != "repos/acme/web/code-scanning/alerts" {
		t.Errorf("Path = %q", got)
	}
}

func FuzzParseList(f *testing.F) {
	f.Add(codeScanningBody)
	f.Add(dependabotBody)
	f.Add(`{"message":"Not Found"}`)
	f.Add(`[{"rule":{"security_severity_level":{"nested":true}}}]`)
	f.Add(`[[[]]]`)
	f.Add(string([]byte{0x00, 0xff, 0xfe}))

	f.Fuzz(func(t *testing.T, body string) {
		for _, kind := range []Kind{KindCodeScanning, KindDependabot} {
			// Must not panic
			alerts, err := ParseList(kind, []byte(body))
			if err != nil && alerts != nil {
				t.Fatalf("got both alerts and error for %q", body)
			}
			for _, a := range alerts {
				if a.Kind != kind {
					t.Fatalf("Kind = %q, want %q", a.Kind, kind)
				}
			}
		}
	})
}

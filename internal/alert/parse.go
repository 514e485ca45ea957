package alert

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrUnexpectedShape is returned when an alert listing is not a JSON array.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// ShapeError describes a listing body that was not a JSON array.
type ShapeError struct {
	Kind    Kind
	Got     string // object, string, number, ...
	Message string // "message" field of an error object, if any
}

func (e *ShapeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s alerts: %s: got %s: %s", e.Kind, ErrUnexpectedShape, e.Got, e.Message)
	}
	return fmt.Sprintf("%s alerts: %s: got %s", e.Kind, ErrUnexpectedShape, e.Got)
}

func (e *ShapeError) Unwrap() error { return ErrUnexpectedShape }

// ParseList decodes an alert listing. The body must be a JSON array; any other
// shape returns a *ShapeError. Individual elements never fail, see Parse.
func ParseList(kind Kind, body []byte) ([]Alert, error) {
	if !gjson.ValidBytes(body) {
		return nil, &ShapeError{Kind: kind, Got: "invalid json"}
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, &ShapeError{
			Kind:    kind,
			Got:     shapeName(doc),
			Message: str(doc.Get("message")),
		}
	}

	alerts := make([]Alert, 0, len(doc.Array()))
	doc.ForEach(func(_, v gjson.Result) bool {
		alerts = append(alerts, fromResult(kind, v))
		return true
	})
	return alerts, nil
}

// Parse resolves a single alert payload into an Alert. Missing or mistyped
// nested fields resolve to zero values; it never fails.
func Parse(kind Kind, raw []byte) Alert {
	if !gjson.ValidBytes(raw) {
		return Alert{Kind: kind}
	}
	return fromResult(kind, gjson.ParseBytes(raw))
}

func fromResult(kind Kind, v gjson.Result) Alert {
	a := Alert{Kind: kind}
	if !v.IsObject() {
		return a
	}

	if n := v.Get("number"); n.Type == gjson.Number {
		a.Number = int(n.Int())
	}
	a.State = State(str(v.Get("state")))
	a.HTMLURL = str(v.Get("html_url"))

	switch kind {
	case KindCodeScanning:
		a.Severity = str(v.Get("rule.security_severity_level"))
		a.Summary = str(v.Get("rule.description"))
		a.RuleID = str(v.Get("rule.id"))
		a.RuleName = str(v.Get("rule.name"))
		a.Tool = str(v.Get("tool.name"))

		loc := v.Get("most_recent_instance.location")
		if path := str(loc.Get("path")); path != "" {
			a.Location = &Location{Path: path}
			if line := loc.Get("start_line"); line.Type == gjson.Number {
				a.Location.StartLine = int(line.Int())
			}
		}
	case KindDependabot:
		a.Severity = str(v.Get("security_advisory.severity"))
		a.Summary = str(v.Get("security_advisory.summary"))
		a.GHSAID = str(v.Get("security_advisory.ghsa_id"))
		a.Package = str(v.Get("dependency.package.name"))
		a.Ecosystem = str(v.Get("dependency.package.ecosystem"))
		a.ManifestPath = str(v.Get("dependency.manifest_path"))
	}

	return a
}

// str returns the value only if it is a JSON string.
func str(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

func shapeName(r gjson.Result) string {
	switch {
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	}
	switch r.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	case gjson.Null:
		return "null"
	default:
		return "unknown"
	}
}

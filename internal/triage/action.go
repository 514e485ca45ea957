package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/ghtriage/internal/alert"
)

// Dismisser transitions one alert to dismissed.
type Dismisser interface {
	DismissAlert(ctx context.Context, owner, repo string, number int, d alert.Dismissal) error
}

// Fallbacks printed for fields an alert does not carry.
const (
	notAvailable = "N/A"
	unknown      = "Unknown"
	noName       = "No name"
	noSummary    = "No summary"
)

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func orNA(s string) string { return or(s, notAvailable) }

// Display writes one block describing a code-scanning alert. Field values are
// echoed as received; missing ones print as Unknown (or No name for the rule
// name) and the location line is omitted when the alert has none.
func Display(w io.Writer, a alert.Alert) error {
	lines := []struct{ k, v string }{
		{"Rule ID", or(a.RuleID, unknown)},
		{"Rule Name", or(a.RuleName, noName)},
		{"Severity", or(a.Severity, unknown)},
		{"State", or(string(a.State), unknown)},
		{"Tool", or(a.Tool, unknown)},
	}
	if a.Location != nil {
		lines = append(lines, struct{ k, v string }{"Location", a.Location.String()})
	}

	if _, err := fmt.Fprintf(w, "Alert #%d\n", a.Number); err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "  %-10s %s\n", l.k+":", l.v); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Summarize writes the one-line listing of a dependency alert:
// "Alert #N: <summary> - Severity: <severity>".
func Summarize(w io.Writer, a alert.Alert) error {
	num := notAvailable
	if a.Number > 0 {
		num = strconv.Itoa(a.Number)
	}
	_, err := fmt.Fprintf(w, "Alert #%s: %s - Severity: %s\n", num, or(a.Summary, noSummary), or(a.Severity, unknown))
	return err
}

// ErrMissingNumber is the outcome of a dismissal skipped because the alert
// carried no usable number to address it by.
var ErrMissingNumber = errors.New("alert has no number")

// DismissOutcome records what happened to one alert the policy asked to dismiss.
type DismissOutcome struct {
	Number int    `json:"number"`
	DryRun bool   `json:"dry_run,omitempty"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the dismissal went through (or would have, in a dry run).
func (o DismissOutcome) OK() bool { return o.Err == nil }

// dismiss issues the dismissal for a single alert. It never returns an error,
// the outcome carries it so the caller can move on to the next alert.
func (r *Runner) dismiss(ctx context.Context, a alert.Alert) DismissOutcome {
	ctx, span := tracer.Start(ctx, "triage.dismiss", trace.WithAttributes(
		attribute.Int("triage.alert.number", a.Number),
		attribute.Bool("triage.dry_run", r.dryRun),
	))
	defer span.End()

	out := DismissOutcome{Number: a.Number, DryRun: r.dryRun}
	if a.Number <= 0 {
		span.SetStatus(codes.Error, ErrMissingNumber.Error())
		out.Err = ErrMissingNumber
		out.Error = ErrMissingNumber.Error()
		_, _ = fmt.Fprintf(r.out, "Skipping alert without a number: %s\n", orNA(a.Summary))
		return out
	}
	if r.dryRun {
		_, _ = fmt.Fprintf(r.out, "Would dismiss alert #%d (%s): %s\n", a.Number, orNA(a.Package), orNA(a.Summary))
		return out
	}

	err := r.dismisser.DismissAlert(ctx, r.repo.Owner, r.repo.Name, a.Number, alert.PolicyDismissal)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.Err = err
		out.Error = err.Error()
		_, _ = fmt.Fprintf(r.out, "Failed to dismiss alert #%d: %v\n", a.Number, err)
		return out
	}

	_, _ = fmt.Fprintf(r.out, "Dismissed alert #%d (%s): %s\n", a.Number, orNA(a.Package), orNA(a.Summary))
	return out
}

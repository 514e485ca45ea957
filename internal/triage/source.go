package triage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ghtriage/internal/alert"
	"github.com/linnemanlabs/ghtriage/internal/github"
)

// Lister fetches the first page of a repository's alerts of one kind.
type Lister interface {
	ListAlerts(ctx context.Context, owner, repo string, kind alert.Kind) ([]alert.Alert, error)
}

// Repository identifies the repository alerts are fetched from.
type Repository struct {
	Owner string
	Name  string
}

func (r Repository) String() string { return r.Owner + "/" + r.Name }

// FetchResult is the outcome of one fetch. Alerts is never nil; on failure it
// is empty and Err says why, so callers can tell "no alerts" from "fetch failed".
type FetchResult struct {
	Kind   alert.Kind
	Alerts []alert.Alert
	Err    error
}

// OK reports whether the fetch succeeded.
func (f FetchResult) OK() bool { return f.Err == nil }

// Fetch failure reasons, used for logs and metrics.
const (
	ReasonForbidden = "forbidden"
	ReasonStatus    = "status"
	ReasonShape     = "shape"
	ReasonTransport = "transport"
)

// FailureReason classifies a fetch error. It returns "" for nil.
func FailureReason(err error) string {
	var se *github.StatusError
	switch {
	case err == nil:
		return ""
	case github.IsForbidden(err):
		return ReasonForbidden
	case errors.As(err, &se):
		return ReasonStatus
	case errors.Is(err, alert.ErrUnexpectedShape):
		return ReasonShape
	default:
		return ReasonTransport
	}
}

// Source fetches alerts and degrades every failure to an empty list plus a
// diagnostic on out.
type Source struct {
	lister Lister
	repo   Repository
	out    io.Writer
	logger log.Logger
}

// NewSource creates a Source for one repository.
func NewSource(lister Lister, repo Repository, out io.Writer, logger log.Logger) *Source {
	if logger == nil {
		logger = log.Nop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Source{lister: lister, repo: repo, out: out, logger: logger}
}

// Fetch issues one list request for kind.
func (s *Source) Fetch(ctx context.Context, kind alert.Kind) FetchResult {
	ctx, span := tracer.Start(ctx, "triage.fetch", trace.WithAttributes(
		attribute.String("triage.kind", string(kind)),
		attribute.String("triage.repository", s.repo.String()),
	))
	defer span.End()

	alerts, err := s.lister.ListAlerts(ctx, s.repo.Owner, s.repo.Name, kind)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn(ctx, "alert fetch failed",
			"kind", kind,
			"repository", s.repo.String(),
			"reason", FailureReason(err),
			"error", err,
		)
		_, _ = fmt.Fprintln(s.out, Diagnostic(kind, s.repo, err))
		return FetchResult{Kind: kind, Alerts: []alert.Alert{}, Err: err}
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}

	span.SetAttributes(attribute.Int("triage.alerts", len(alerts)))
	return FetchResult{Kind: kind, Alerts: alerts}
}

// Diagnostic renders a human readable explanation of a fetch error.
func Diagnostic(kind alert.Kind, repo Repository, err error) string {
	var se *github.StatusError
	switch {
	case github.IsForbidden(err):
		return fmt.Sprintf(`Error: access to %s alerts for %s was denied (HTTP 403).
This usually means one of:
  1. %s is not enabled for this repository
  2. the token does not have the required scope (repo or security_events)
  3. the token is missing the "security-events" permission (read, or write to dismiss)`,
			kind, repo, featureName(kind))
	case errors.As(err, &se):
		return fmt.Sprintf("Error: failed to fetch %s alerts for %s: HTTP %d: %s", kind, repo, se.StatusCode, se.Message)
	case errors.Is(err, alert.ErrUnexpectedShape):
		return fmt.Sprintf("Unexpected response format for %s alerts: %v", kind, err)
	default:
		return fmt.Sprintf("Error: failed to fetch %s alerts for %s: %v", kind, repo, err)
	}
}

func featureName(kind alert.Kind) string {
	switch kind {
	case alert.KindCodeScanning:
		return "code scanning"
	case alert.KindDependabot:
		return "Dependabot alerts"
	default:
		return string(kind)
	}
}

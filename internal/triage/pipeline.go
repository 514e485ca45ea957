package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/ghtriage/internal/alert"
)

var tracer = otel.Tracer("github.com/linnemanlabs/ghtriage/internal/triage")

// Pipeline names.
const (
	PipelineCodeScanning = "codescan"
	PipelineDependabot   = "dependabot"
)

// API is the remote surface the pipelines need.
type API interface {
	Lister
	Dismisser
}

// Notifier is told about every finished run.
type Notifier interface {
	Send(ctx context.Context, r *Report) error
}

// Hooks are optional callbacks fired as the runner works. Nil funcs are skipped.
type Hooks struct {
	OnFetch    func(kind alert.Kind, count int, failureReason string)
	OnClassify func(kind alert.Kind, severity alert.Severity)
	OnAction   func(action Action, outcome string)
	OnComplete func(r *Report)
}

// Options tune a Runner.
type Options struct {
	DryRun   bool
	Hooks    Hooks
	Notifier Notifier
}

// Runner executes the triage pipelines for one repository.
type Runner struct {
	source    *Source
	dismisser Dismisser
	repo      Repository
	out       io.Writer
	logger    log.Logger
	dryRun    bool
	hooks     Hooks
	notifier  Notifier
}

// NewRunner wires a Runner. Human-facing output goes to out, structured logs
// to logger.
func NewRunner(api API, repo Repository, out io.Writer, logger log.Logger, opts Options) *Runner {
	if api == nil {
		panic(xerrors.New("triage api is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		source:    NewSource(api, repo, out, logger),
		dismisser: api,
		repo:      repo,
		out:       out,
		logger:    logger,
		dryRun:    opts.DryRun,
		hooks:     opts.Hooks,
		notifier:  opts.Notifier,
	}
}

// CodeScanning prints every medium severity code-scanning alert.
func (r *Runner) CodeScanning(ctx context.Context) *Report {
	return r.run(ctx, PipelineCodeScanning, CodeScanningPolicy)
}

// Dependabot dismisses every low severity dependency alert.
func (r *Runner) Dependabot(ctx context.Context) *Report {
	return r.run(ctx, PipelineDependabot, DependabotPolicy)
}

func (r *Runner) run(ctx context.Context, pipeline string, p Policy) *Report {
	rep := &Report{
		RunID:      ulid.Make().String(),
		Pipeline:   pipeline,
		Repository: r.repo.String(),
		Kind:       p.Kind,
		Buckets:    make(map[alert.Severity]int),
		StartedAt:  time.Now(),
	}

	ctx, span := tracer.Start(ctx, "triage.run", trace.WithAttributes(
		attribute.String("triage.run_id", rep.RunID),
		attribute.String("triage.pipeline", pipeline),
		attribute.String("triage.repository", rep.Repository),
	))
	defer span.End()

	L := r.logger.With("run_id", rep.RunID, "pipeline", pipeline, "repository", rep.Repository)
	ctx = log.WithContext(ctx, L)

	res := r.source.Fetch(ctx, p.Kind)
	rep.Fetched = len(res.Alerts)
	if !res.OK() {
		rep.FetchError = res.Err.Error()
	}
	if r.hooks.OnFetch != nil {
		r.hooks.OnFetch(p.Kind, rep.Fetched, FailureReason(res.Err))
	}

	if res.OK() {
		_, _ = fmt.Fprintf(r.out, "Total alerts found: %d\n", len(res.Alerts))
	}

	// classify everything first so the header can carry the count
	var selected []alert.Alert
	var actions []Action
	for _, a := range res.Alerts {
		if p.ListAll {
			if err := Summarize(r.out, a); err != nil {
				L.Error(ctx, err, "summary failed", "number", a.Number)
			}
		}
		sev := Classify(a)
		rep.Buckets[sev]++
		if r.hooks.OnClassify != nil {
			r.hooks.OnClassify(p.Kind, sev)
		}
		if act := p.ActionFor(sev); act != ActionIgnore {
			selected = append(selected, a)
			actions = append(actions, act)
		}
	}

	if len(selected) == 0 {
		_, _ = fmt.Fprintf(r.out, "No %s found.\n", p.Label)
	} else {
		_, _ = fmt.Fprintf(r.out, "Found %d %s:\n\n", len(selected), p.Label)
	}

	for i, a := range selected {
		switch actions[i] {
		case ActionDisplay:
			outcome := "ok"
			if err := Display(r.out, a); err != nil {
				L.Error(ctx, err, "display failed", "number", a.Number)
				outcome = "error"
			} else {
				rep.Displayed = append(rep.Displayed, a.Number)
			}
			r.actionHook(ActionDisplay, outcome)
		case ActionDismiss:
			o := r.dismiss(ctx, a)
			rep.Dismissals = append(rep.Dismissals, o)
			switch {
			case errors.Is(o.Err, ErrMissingNumber):
				L.Warn(ctx, "dismiss skipped, alert has no number", "summary", a.Summary, "severity", a.Severity)
				r.actionHook(ActionDismiss, "skipped")
			case o.Err != nil:
				L.Error(ctx, o.Err, "dismiss failed", "number", a.Number)
				r.actionHook(ActionDismiss, "error")
			case o.DryRun:
				r.actionHook(ActionDismiss, "dry_run")
			default:
				L.Info(ctx, "alert dismissed", "number", a.Number, "reason", alert.PolicyDismissal.Reason)
				r.actionHook(ActionDismiss, "ok")
			}
		}
	}

	rep.CompletedAt = time.Now()
	rep.Duration = rep.CompletedAt.Sub(rep.StartedAt).Seconds()

	span.SetAttributes(
		attribute.Int("triage.fetched", rep.Fetched),
		attribute.Int("triage.selected", len(selected)),
		attribute.Bool("triage.fetch_failed", rep.FetchFailed()),
	)

	L.Info(ctx, "triage complete",
		"fetched", rep.Fetched,
		"fetch_failed", rep.FetchFailed(),
		"selected", len(selected),
		"displayed", len(rep.Displayed),
		"dismissed", rep.Dismissed(),
		"dismiss_failures", rep.DismissFailures(),
		"dry_run", r.dryRun,
		"duration", rep.Duration,
	)

	if r.hooks.OnComplete != nil {
		r.hooks.OnComplete(rep)
	}

	if r.notifier != nil {
		if err := r.notifier.Send(ctx, rep); err != nil {
			L.Warn(ctx, "run notification failed", "error", err)
		}
	}

	return rep
}

func (r *Runner) actionHook(a Action, outcome string) {
	if r.hooks.OnAction != nil {
		r.hooks.OnAction(a, outcome)
	}
}

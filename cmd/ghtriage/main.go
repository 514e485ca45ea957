// Ghtriage triages a repository's GitHub security alerts from CI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	gc "github.com/linnemanlabs/ghtriage/internal/cfg"
	"github.com/linnemanlabs/ghtriage/internal/dirreport"
	"github.com/linnemanlabs/ghtriage/internal/github"
	"github.com/linnemanlabs/ghtriage/internal/notify/slack"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

const appName = "ghtriage"

const envPrefix = "GH_"

// errUsage marks invocations that never got as far as doing work.
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Set app name; the component is the subcommand once we know it
	v.AppName = appName

	var (
		logCfg   log.Config
		traceCfg otelx.Config
	)

	global := flag.NewFlagSet(appName, flag.ContinueOnError)
	global.SetOutput(stderr)
	logCfg.RegisterFlags(global)
	traceCfg.RegisterFlags(global)
	var showVersion bool
	global.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	global.Usage = func() { usage(global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	if showVersion {
		vi := v.Get()
		_, _ = fmt.Fprintf(stdout,
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	if global.NArg() == 0 {
		usage(global)
		return fmt.Errorf("%w: missing subcommand", errUsage)
	}
	sub, subArgs := global.Arg(0), global.Args()[1:]

	warnf := func(format string, args ...any) {
		_, _ = fmt.Fprintf(stderr, format+"\n", args...)
	}

	switch sub {
	case triage.PipelineCodeScanning, triage.PipelineDependabot:
		var appCfg gc.Config
		fs := flag.NewFlagSet(sub, flag.ContinueOnError)
		fs.SetOutput(stderr)
		appCfg.RegisterFlags(fs)
		if err := fs.Parse(subArgs); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return fmt.Errorf("%w: %w", errUsage, err)
		}

		// the env file location itself can only come from the flag or the process env
		if appCfg.EnvFile == "" {
			appCfg.EnvFile = os.Getenv(envPrefix + "ENV_FILE")
		}
		// dotenv first so its values are visible to the env fill, which never overrides cmdline flags
		if err := gc.LoadEnvFile(appCfg.EnvFile); err != nil {
			return err
		}
		cfg.FillFromEnv(global, envPrefix, warnf)
		cfg.FillFromEnv(fs, envPrefix, warnf)

		if err := errors.Join(
			appCfg.Validate(),
			logCfg.Validate(),
			traceCfg.Validate(),
		); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		return withRuntime(ctx, sub, logCfg, traceCfg, func(ctx context.Context, L log.Logger) error {
			return runTriage(ctx, sub, appCfg, stdout, L)
		})

	case "dirreport":
		var repCfg gc.ReportConfig
		fs := flag.NewFlagSet(sub, flag.ContinueOnError)
		fs.SetOutput(stderr)
		repCfg.RegisterFlags(fs)
		if err := fs.Parse(subArgs); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return fmt.Errorf("%w: %w", errUsage, err)
		}

		cfg.FillFromEnv(global, envPrefix, warnf)
		cfg.FillFromEnv(fs, envPrefix, warnf)

		if err := errors.Join(
			repCfg.Validate(),
			logCfg.Validate(),
			traceCfg.Validate(),
		); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		return withRuntime(ctx, sub, logCfg, traceCfg, func(ctx context.Context, _ log.Logger) error {
			_, err := dirreport.WriteFile(ctx, repCfg.Root, repCfg.Output, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("directory report: %w", err)
			}
			_, _ = fmt.Fprintf(stdout, "Directory report written to %s\n", repCfg.Output)
			return nil
		})

	default:
		usage(global)
		return fmt.Errorf("%w: unknown subcommand %q", errUsage, sub)
	}
}

// withRuntime initializes logging and tracing for one subcommand, runs fn,
// and flushes both on the way out.
func withRuntime(ctx context.Context, component string, logCfg log.Config, traceCfg otelx.Config, fn func(context.Context, log.Logger) error) error {
	v.Component = component
	vi := v.Get()

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "starting",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"enable_tracing", traceCfg.EnableTracing,
		"otlp_endpoint", traceCfg.OTLPEndpoint,
	)

	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = component
	traceOpts.Version = v.Version

	// spans from a short run only leave the process if the exporter is flushed before exit
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOtelx(sctx); err != nil {
				L.Error(context.Background(), err, "otel shutdown")
			}
		}()
	}

	return fn(ctx, L)
}

// runTriage executes one alert pipeline. Fetch and dismiss failures are
// reported on stdout and never fail the run.
func runTriage(ctx context.Context, pipeline string, appCfg gc.Config, stdout io.Writer, L log.Logger) error {
	client, err := github.New(appCfg.APIURL, appCfg.Token, time.Duration(appCfg.HTTPTimeoutSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("github client: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := triage.NewMetrics(reg)

	var notifier triage.Notifier
	if appCfg.SlackWebhookURL != "" {
		notifier = slack.New(appCfg.SlackWebhookURL, L)
		L.Info(ctx, "notifier enabled", "type", "slack")
	}

	repo := triage.Repository{Owner: appCfg.Owner, Name: appCfg.Repo}
	runner := triage.NewRunner(client, repo, stdout, L, triage.Options{
		DryRun:   appCfg.DryRun,
		Hooks:    metrics.Hooks(),
		Notifier: notifier,
	})

	var rep *triage.Report
	switch pipeline {
	case triage.PipelineCodeScanning:
		rep = runner.CodeScanning(ctx)
	default:
		rep = runner.Dependabot(ctx)
	}

	if appCfg.PushgatewayURL != "" {
		if err := pushMetrics(ctx, appCfg.PushgatewayURL, reg, rep); err != nil {
			// metrics are best effort, the triage itself already happened
			L.Warn(ctx, "pushgateway push failed", "url", appCfg.PushgatewayURL, "error", err)
		} else {
			L.Info(ctx, "metrics pushed", "url", appCfg.PushgatewayURL)
		}
	}

	return nil
}

// pushMetrics replaces this pipeline's metric group on the Pushgateway.
// Grouping labels must not collide with metric labels, so the pipeline
// groups as "command".
func pushMetrics(ctx context.Context, url string, g prometheus.Gatherer, rep *triage.Report) error {
	return push.New(url, appName).
		Gatherer(g).
		Grouping("command", rep.Pipeline).
		Grouping("repository", rep.Repository).
		PushContext(ctx)
}

func usage(fs *flag.FlagSet) {
	w := fs.Output()
	_, _ = fmt.Fprintf(w, "Usage: %s [global flags] <command> [flags]\n\n", appName)
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  codescan     print medium severity code scanning alerts")
	_, _ = fmt.Fprintln(w, "  dependabot   dismiss low severity Dependabot alerts")
	_, _ = fmt.Fprintln(w, "  dirreport    write a directory contents report")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Global flags:")
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(w, "\nEvery flag can also be set from the environment as %s<FLAG_NAME>, e.g. GH_OWNER.\n", envPrefix)
}

package triage

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/ghtriage/internal/alert"
)

// Metrics holds Prometheus metrics for the triage pipelines.
type Metrics struct {
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastRunTimestamp *prometheus.GaugeVec
	FetchesTotal     *prometheus.CounterVec
	AlertsFetched    *prometheus.CounterVec
	AlertsClassified *prometheus.CounterVec
	ActionsTotal     *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_runs_total",
			Help: "Total pipeline runs by pipeline and fetch outcome.",
		}, []string{"pipeline", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ghtriage_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"pipeline"}),
		LastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ghtriage_last_run_timestamp_seconds",
			Help: "Unix time the pipeline last completed.",
		}, []string{"pipeline"}),
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_fetches_total",
			Help: "Alert list requests by kind and result.",
		}, []string{"kind", "result"}),
		AlertsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_alerts_fetched_total",
			Help: "Alerts returned by the source, by kind.",
		}, []string{"kind"}),
		AlertsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_alerts_classified_total",
			Help: "Alerts by kind and severity bucket.",
		}, []string{"kind", "severity"}),
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghtriage_actions_total",
			Help: "Policy actions applied by action and outcome.",
		}, []string{"action", "outcome"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastRunTimestamp,
		m.FetchesTotal,
		m.AlertsFetched,
		m.AlertsClassified,
		m.ActionsTotal,
	)

	return m
}

// Hooks returns runner Hooks that update the corresponding metrics.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnFetch: func(kind alert.Kind, count int, failureReason string) {
			result := "ok"
			if failureReason != "" {
				result = failureReason
			}
			m.FetchesTotal.WithLabelValues(string(kind), result).Inc()
			m.AlertsFetched.WithLabelValues(string(kind)).Add(float64(count))
		},
		OnClassify: func(kind alert.Kind, severity alert.Severity) {
			m.AlertsClassified.WithLabelValues(string(kind), string(severity)).Inc()
		},
		OnAction: func(action Action, outcome string) {
			m.ActionsTotal.WithLabelValues(string(action), outcome).Inc()
		},
		OnComplete: func(r *Report) {
			outcome := "ok"
			if r.FetchFailed() {
				outcome = "fetch_failed"
			}
			m.RunsTotal.WithLabelValues(r.Pipeline, outcome).Inc()
			m.RunDuration.WithLabelValues(r.Pipeline).Observe(r.Duration)
			m.LastRunTimestamp.WithLabelValues(r.Pipeline).Set(float64(r.CompletedAt.Unix()))
		},
	}
}

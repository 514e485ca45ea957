// Package slack sends triage run summaries to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ghtriage/internal/alert"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

const (
	maxDetailsLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends triage reports to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// Send posts a run report to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, r *triage.Report) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(r)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "run_id", r.RunID, "pipeline", r.Pipeline)
	return nil
}

func buildMessage(r *triage.Report) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			detailsBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

func headerBlock(r *triage.Report) map[string]any {
	title := "Triage Complete"
	if r.FetchFailed() {
		title = "Triage Fetch Failed"
	}
	text := fmt.Sprintf("%s %s: %s %s", statusEmoji(r), title, r.Pipeline, r.Repository)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.Report) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Fetched:* %d", r.Fetched),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severities:* %s", bucketSummary(r.Buckets)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", r.Duration),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Displayed:* %d", len(r.Displayed)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Dismissed:* %d", r.Dismissed()),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Dismiss failures:* %d", r.DismissFailures()),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func detailsBlock(r *triage.Report) map[string]any {
	var b strings.Builder
	if r.FetchFailed() {
		fmt.Fprintf(&b, "Fetch failed: %s\n", r.FetchError)
	}
	for _, n := range r.Displayed {
		fmt.Fprintf(&b, "• #%d displayed\n", n)
	}
	for _, d := range r.Dismissals {
		switch {
		case !d.OK():
			fmt.Fprintf(&b, "• #%d dismiss failed: %s\n", d.Number, d.Error)
		case d.DryRun:
			fmt.Fprintf(&b, "• #%d would be dismissed\n", d.Number)
		default:
			fmt.Fprintf(&b, "• #%d dismissed\n", d.Number)
		}
	}

	text := truncate(strings.TrimSuffix(b.String(), "\n"), maxDetailsLen)
	if text == "" {
		text = "_No alerts matched the policy._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Details*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.Report) map[string]any {
	ts := r.CompletedAt
	if ts.IsZero() {
		ts = r.StartedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("ghtriage • run %s • %s", r.RunID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func statusEmoji(r *triage.Report) string {
	switch {
	case r.FetchFailed():
		return "\U0001f534" // red circle
	case r.DismissFailures() > 0:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// bucketSummary renders severity counts in a stable order, e.g. "low=3 medium=1".
func bucketSummary(b map[alert.Severity]int) string {
	if len(b) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, b[alert.Severity(k)]))
	}
	return strings.Join(parts, " ")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

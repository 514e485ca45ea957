package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/ghtriage/internal/alert"
	"github.com/linnemanlabs/ghtriage/internal/triage"
)

func TestSend_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	report := &triage.Report{
		RunID:      "01JN123",
		Pipeline:   triage.PipelineDependabot,
		Repository: "acme/web",
		Fetched:    4,
		Buckets:    map[alert.Severity]int{alert.SeverityLow: 3, alert.SeverityHigh: 1},
		Dismissals: []triage.DismissOutcome{
			{Number: 1},
			{Number: 2, Err: errors.New("boom"), Error: "boom"},
			{Number: 3},
		},
		Duration:    1.4,
		CompletedAt: time.Date(2026, 2, 26, 14, 23, 0, 0, time.UTC),
	}

	if err := n.Send(context.Background(), report); err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, details, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "acme/web") {
		t.Errorf("header text = %q, want to contain acme/web", headerText)
	}
	if !strings.Contains(headerText, "\U0001f7e1") {
		t.Errorf("header should contain yellow circle when a dismissal failed")
	}

	details := blocks[4].(map[string]any)["text"].(map[string]any)["text"].(string)
	for _, want := range []string{"#1 dismissed", "#2 dismiss failed: boom", "#3 dismissed"} {
		if !strings.Contains(details, want) {
			t.Errorf("details = %q, want to contain %q", details, want)
		}
	}
}

func TestSend_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", log.Nop())
	if err := n.Send(context.Background(), &triage.Report{}); err != nil {
		t.Fatalf("Send with empty URL should be no-op, got: %v", err)
	}
}

func TestSend_TruncatesLongDetails(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	displayed := make([]int, 1000)
	for i := range displayed {
		displayed[i] = i + 1
	}
	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(), &triage.Report{
		RunID:     "01JN456",
		Pipeline:  triage.PipelineCodeScanning,
		Displayed: displayed,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	blocks := got["blocks"].([]any)
	section := blocks[4].(map[string]any)
	text := section["text"].(map[string]any)["text"].(string)

	if len(text) > maxDetailsLen+len("*Details*\n\n") {
		t.Errorf("details text length = %d, expected <= %d", len(text), maxDetailsLen+len("*Details*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated details to end with ...")
	}
}

func TestStatusEmoji(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		report *triage.Report
		want   string
	}{
		{"fetch failed", &triage.Report{FetchError: "status 403"}, "\U0001f534"},
		{"dismiss failure", &triage.Report{Dismissals: []triage.DismissOutcome{{Number: 1, Err: errors.New("x")}}}, "\U0001f7e1"},
		{"clean", &triage.Report{Dismissals: []triage.DismissOutcome{{Number: 1}}}, "\U0001f7e2"},
		{"empty", &triage.Report{}, "\U0001f7e2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := statusEmoji(tt.report); got != tt.want {
				t.Errorf("statusEmoji() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBucketSummary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   map[alert.Severity]int
		want string
	}{
		{"nil", nil, "none"},
		{"sorted", map[alert.Severity]int{alert.SeverityMedium: 1, alert.SeverityLow: 3, alert.SeverityUnknown: 2}, "low=3 medium=1 unknown=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := bucketSummary(tt.in); got != tt.want {
				t.Errorf("bucketSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("dependabot", "acme/web", "status 403", "boom")
	f.Add("", "", "", "")
	f.Add("<@U123> mention", "a/b", "*bold* _italic_ ~strike~", "x")
	f.Add("p\x00\x01\x02", "r\nline", "err\ttab", "e\x00rr")
	f.Add(strings.Repeat("A", 5000), "x/y", strings.Repeat("x", 10000), "")

	f.Fuzz(func(t *testing.T, pipeline, repo, fetchErr, dismissErr string) {
		report := &triage.Report{
			RunID:       "fuzz-id",
			Pipeline:    pipeline,
			Repository:  repo,
			FetchError:  fetchErr,
			Buckets:     map[alert.Severity]int{alert.SeverityLow: 1},
			Dismissals:  []triage.DismissOutcome{{Number: 1, Error: dismissErr}},
			CompletedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		}

		// Must not panic
		msg := buildMessage(report)

		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}

func TestSend_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, log.Nop())
	err := n.Send(context.Background(), &triage.Report{RunID: "01JN789"})
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

package triage

import (
	"time"

	"github.com/linnemanlabs/ghtriage/internal/alert"
)

// Report is the outcome of one pipeline run.
type Report struct {
	RunID       string                 `json:"run_id"`
	Pipeline    string                 `json:"pipeline"`
	Repository  string                 `json:"repository"`
	Kind        alert.Kind             `json:"kind"`
	FetchError  string                 `json:"fetch_error,omitempty"`
	Fetched     int                    `json:"fetched"`
	Buckets     map[alert.Severity]int `json:"buckets"`
	Displayed   []int                  `json:"displayed,omitempty"`
	Dismissals  []DismissOutcome       `json:"dismissals,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
	Duration    float64                `json:"duration_seconds"`
}

// FetchFailed reports whether the alert list could not be retrieved.
func (r *Report) FetchFailed() bool { return r.FetchError != "" }

// Dismissed counts dismissals that succeeded, excluding dry runs.
func (r *Report) Dismissed() int {
	n := 0
	for _, d := range r.Dismissals {
		if d.OK() && !d.DryRun {
			n++
		}
	}
	return n
}

// DismissFailures counts dismissals that returned an error.
func (r *Report) DismissFailures() int {
	n := 0
	for _, d := range r.Dismissals {
		if !d.OK() {
			n++
		}
	}
	return n
}

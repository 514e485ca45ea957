// Package triage implements the alert-triage pipeline: a Source fetches one
// page of alerts, Classify buckets each alert by severity, and a Policy picks
// the action (display or dismiss) the Runner applies to it.
//
// Runs are sequential and keep no state between invocations.
package triage

// Package metrics records build metrics. Components hold a Recorder and
// default to NoopRecorder; the CLI swaps in the Prometheus recorder and
// exports the registry to a node-exporter textfile after each build.
package metrics

import "time"

// Outcome labels the final status of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeWarning  Outcome = "warning"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder receives build observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(outcome Outcome)
	AddPosts(n int)
	AddIssues(severity string, n int)
	AddPagesWritten(n int)
	AddPagesReused(n int)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

var _ Recorder = NoopRecorder{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)         {}
func (NoopRecorder) IncBuildOutcome(Outcome)                    {}
func (NoopRecorder) AddPosts(int)                               {}
func (NoopRecorder) AddIssues(string, int)                      {}
func (NoopRecorder) AddPagesWritten(int)                        {}
func (NoopRecorder) AddPagesReused(int)                         {}

package types

import (
	"time"
)

// Status is the result of executing a single operation.
type Status string

const (
	// StatusApplied means the operation changed the pack.
	StatusApplied Status = "APPLIED"
	// StatusSkipped means the pack already reflected the operation.
	StatusSkipped Status = "SKIPPED_ALREADY_APPLIED"
	// StatusFailed means the operation could not be applied.
	StatusFailed Status = "FAILED"
)

// RunStatus is the overall result of a patch run.
type RunStatus string

const (
	// RunSuccess means every operation was applied or already applied.
	RunSuccess RunStatus = "SUCCESS"
	// RunPartialFailure means the run completed with at least one failure.
	RunPartialFailure RunStatus = "PARTIAL_FAILURE"
	// RunAborted means a fatal condition stopped the run early.
	RunAborted RunStatus = "ABORTED"
)

// Exit codes mapped from run status by the command-line entry point.
const (
	ExitSuccess        = 0
	ExitError          = 1
	ExitPartialFailure = 2
	ExitAborted        = 3
)

// Outcome is the result of applying one operation.
type Outcome struct {
	// Operation points back at the manifest operation. Not owned.
	Operation *Operation `json:"operation"`

	// Status is the operation result.
	Status Status `json:"status"`

	// Detail explains a skip or failure in human-readable form.
	Detail string `json:"detail,omitempty"`

	// Err is the typed cause for FAILED outcomes. It is not serialized.
	Err error `json:"-"`

	// Bytes is the number of bytes written by the operation.
	Bytes int64 `json:"bytes,omitempty"`

	// Duration is how long the operation took.
	Duration time.Duration `json:"duration"`
}

// Counts tallies outcomes by status.
type Counts struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total returns the number of outcomes counted.
func (c Counts) Total() int {
	return c.Applied + c.Skipped + c.Failed
}

// Report is the externally visible result of a patch run.
type Report struct {
	// Root is the pack root the run targeted.
	Root string `json:"root"`

	// Manifest is the name of the patch set that was applied.
	Manifest string `json:"manifest"`

	// Status is the overall run status.
	Status RunStatus `json:"status"`

	// Outcomes are the per-operation results in manifest order.
	Outcomes []Outcome `json:"outcomes"`

	// Err is the cause of an aborted run. It is not serialized.
	Err error `json:"-"`

	// DryRun is true when no changes were written to disk.
	DryRun bool `json:"dry_run"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Elapsed is the total run time.
	Elapsed time.Duration `json:"elapsed"`
}

// Counts tallies the report outcomes by status.
func (r *Report) Counts() Counts {
	var c Counts
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusApplied:
			c.Applied++
		case StatusSkipped:
			c.Skipped++
		case StatusFailed:
			c.Failed++
		}
	}
	return c
}

// Failed returns the failed outcomes in manifest order.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// BytesWritten returns the sum of bytes written by all outcomes.
func (r *Report) BytesWritten() int64 {
	var total int64
	for _, o := range r.Outcomes {
		total += o.Bytes
	}
	return total
}

// Finalize derives the run status from the collected outcomes.
// An aborted report keeps its status.
func (r *Report) Finalize() {
	if r.Status == RunAborted {
		return
	}
	r.Status = RunSuccess
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			r.Status = RunPartialFailure
			return
		}
	}
}

// ExitCode maps the run status to a process exit code.
func (r *Report) ExitCode() int {
	switch r.Status {
	case RunSuccess:
		return ExitSuccess
	case RunPartialFailure:
		return ExitPartialFailure
	default:
		return ExitAborted
	}
}

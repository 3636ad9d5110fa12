package output

import (
	"time"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// document is the structure shared by the json and yaml formatters.
type document struct {
	Status    types.RunStatus `json:"status" yaml:"status"`
	ExitCode  int             `json:"exit_code" yaml:"exit_code"`
	Root      string          `json:"root" yaml:"root"`
	Source    string          `json:"source,omitempty" yaml:"source,omitempty"`
	Manifest  string          `json:"manifest" yaml:"manifest"`
	Profile   string          `json:"profile,omitempty" yaml:"profile,omitempty"`
	DryRun    bool            `json:"dry_run" yaml:"dry_run"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Elapsed   string          `json:"elapsed" yaml:"elapsed"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
	Summary   docSummary      `json:"summary" yaml:"summary"`
	Outcomes  []docOutcome    `json:"outcomes" yaml:"outcomes"`
	Diffs     []FileDiff      `json:"diffs,omitempty" yaml:"diffs,omitempty"`
}

type docSummary struct {
	Applied      int    `json:"applied" yaml:"applied"`
	Skipped      int    `json:"skipped" yaml:"skipped"`
	Failed       int    `json:"failed" yaml:"failed"`
	BytesWritten int64  `json:"bytes_written" yaml:"bytes_written"`
	BytesHuman   string `json:"bytes_written_human" yaml:"bytes_written_human"`
}

type docOutcome struct {
	Index    int          `json:"index" yaml:"index"`
	Kind     string       `json:"kind" yaml:"kind"`
	Path     string       `json:"path" yaml:"path"`
	To       string       `json:"to,omitempty" yaml:"to,omitempty"`
	Status   types.Status `json:"status" yaml:"status"`
	Detail   string       `json:"detail,omitempty" yaml:"detail,omitempty"`
	Bytes    int64        `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	Duration string       `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// buildDocument converts a Result to the serialized structure.
func buildDocument(r *Result) document {
	rep := r.Report
	counts := rep.Counts()

	doc := document{
		Status:    rep.Status,
		ExitCode:  rep.ExitCode(),
		Root:      rep.Root,
		Source:    r.Source,
		Manifest:  rep.Manifest,
		Profile:   r.Profile,
		DryRun:    rep.DryRun,
		StartedAt: rep.StartedAt,
		Elapsed:   formatDurationString(rep.Elapsed),
		Summary: docSummary{
			Applied:      counts.Applied,
			Skipped:      counts.Skipped,
			Failed:       counts.Failed,
			BytesWritten: rep.BytesWritten(),
			BytesHuman:   humanBytes(rep.BytesWritten()),
		},
		Outcomes: make([]docOutcome, 0, len(rep.Outcomes)),
		Diffs:    r.Diffs,
	}
	if rep.Err != nil {
		doc.Error = rep.Err.Error()
	}

	for _, o := range rep.Outcomes {
		out := docOutcome{
			Status:   o.Status,
			Detail:   o.Detail,
			Bytes:    o.Bytes,
			Duration: formatDurationString(o.Duration),
		}
		if op := o.Operation; op != nil {
			out.Index = op.Index
			out.Kind = op.Kind.String()
			out.Path = op.Path
			out.To = op.To
		}
		doc.Outcomes = append(doc.Outcomes, out)
	}
	return doc
}

// formatDurationString formats a duration for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

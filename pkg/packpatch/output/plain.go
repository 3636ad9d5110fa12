package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter formats the report as a tab-aligned table followed by a
// summary line. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	rep := r.Report
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprintln(tw, "STATUS\tKIND\tPATH\tDETAIL"); err != nil {
		return err
	}
	for _, o := range rep.Outcomes {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Status, o.Operation.Kind, target(o.Operation), o.Detail); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := rep.Counts()
	fmt.Fprintf(w, "%s applied=%d skipped=%d failed=%d bytes=%d", rep.Status, counts.Applied, counts.Skipped, counts.Failed, rep.BytesWritten())
	if rep.DryRun {
		w.WriteString(" dry-run")
	}
	w.WriteByte('\n')
	if rep.Err != nil {
		fmt.Fprintf(w, "error: %v\n", rep.Err)
	}

	for _, d := range r.Diffs {
		if d.To != "" {
			fmt.Fprintf(w, "--- %s (%s to %s)\n", d.Path, d.Change, d.To)
		} else {
			fmt.Fprintf(w, "--- %s (%s)\n", d.Path, d.Change)
		}
		w.WriteString(d.Text)
		if d.Text != "" && d.Text[len(d.Text)-1] != '\n' {
			w.WriteByte('\n')
		}
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)

package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
// It produces a visually appealing output suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatTable(r.Report))

	if len(r.Diffs) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatDiffs(r.Diffs))
	}

	w.WriteString(f.formatFooter(r.Report))
	w.WriteString("\n")
	return nil
}

// formatHeader builds the header box with pack and patch set metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	rep := r.Report
	var lines []string

	lines = append(lines, field("Pack:", PathStyle.Render(rep.Root)))
	if r.Source != "" {
		lines = append(lines, field("Copied from:", PathStyle.Render(r.Source)))
	}

	set := rep.Manifest
	if r.Profile != "" {
		set = fmt.Sprintf("%s (%s)", rep.Manifest, r.Profile)
	}
	info := []string{field("Patch set:", ValueStyle.Render(set))}
	if rep.DryRun {
		info = append(info, WarningStyle.Bold(true).Render("dry run, nothing written"))
	}
	lines = append(lines, strings.Join(info, "  "))

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatTable lists every outcome in manifest order.
func (f *PrettyFormatter) formatTable(rep *types.Report) string {
	if len(rep.Outcomes) == 0 {
		return MutedStyle.Render("  No operations were run") + "\n"
	}

	kindWidth, pathWidth := len("KIND"), len("PATH")
	for _, o := range rep.Outcomes {
		kindWidth = max(kindWidth, len(o.Operation.Kind.String()))
		pathWidth = max(pathWidth, lipgloss.Width(target(o.Operation)))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("    %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("KIND", kindWidth)),
		TableHeaderStyle.Render(padRight("PATH", pathWidth)),
		TableHeaderStyle.Render("DETAIL")))

	for _, o := range rep.Outcomes {
		style, marker := statusStyle(o.Status)
		sb.WriteString(fmt.Sprintf("  %s %s  %s  %s\n",
			style.Render(marker),
			KindStyle.Render(padRight(o.Operation.Kind.String(), kindWidth)),
			PathStyle.Render(padRight(target(o.Operation), pathWidth)),
			style.Render(o.Detail)))
	}
	return sb.String()
}

// formatDiffs renders dry-run diffs with added and removed lines colored.
func (f *PrettyFormatter) formatDiffs(diffs []FileDiff) string {
	var sb strings.Builder
	for _, d := range diffs {
		title := fmt.Sprintf("%s %s", d.Change, d.Path)
		if d.To != "" {
			title += " -> " + d.To
		}
		sb.WriteString(KindStyle.Bold(true).Render(title))
		sb.WriteString("\n")

		for _, line := range splitLines(d.Text) {
			switch {
			case strings.HasPrefix(line, "+"):
				sb.WriteString(SuccessStyle.Render(line))
			case strings.HasPrefix(line, "-"):
				sb.WriteString(ErrorStyle.Render(line))
			default:
				sb.WriteString(MutedStyle.Render(line))
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// formatFooter builds the footer box with the run summary.
func (f *PrettyFormatter) formatFooter(rep *types.Report) string {
	counts := rep.Counts()

	parts := []string{
		runStatusStyle(rep.Status).Render(string(rep.Status)),
		field("Applied:", SuccessStyle.Render(fmt.Sprintf("%d", counts.Applied))),
		field("Skipped:", MutedStyle.Render(fmt.Sprintf("%d", counts.Skipped))),
		field("Failed:", failedCount(counts.Failed)),
		field("Written:", ValueStyle.Render(humanBytes(rep.BytesWritten()))),
		field("Took:", ValueStyle.Render(formatDuration(rep.Elapsed))),
	}

	content := strings.Join(parts, "  ")
	if rep.Err != nil {
		content += "\n" + ErrorStyle.Render(rep.Err.Error())
	}
	return FooterBox.Render(content)
}

func failedCount(n int) string {
	if n == 0 {
		return MutedStyle.Render("0")
	}
	return ErrorStyle.Bold(true).Render(fmt.Sprintf("%d", n))
}

func field(label, value string) string {
	return LabelStyle.Render(label) + " " + value
}

// target returns the path column for an operation.
func target(op *types.Operation) string {
	if op.Kind == types.KindRenameFile {
		return op.Path + " -> " + op.To
	}
	return op.Path
}

// padRight pads s with spaces on the right to the given display width.
func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func humanBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)

package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jamesainslie/packpatch/pkg/packpatch/types"
)

// Color constants using ANSI 256-color palette.
const (
	// ColorPrimary is used for headers (bright blue).
	ColorPrimary = lipgloss.Color("39")

	// ColorSuccess marks applied operations and successful runs (green).
	ColorSuccess = lipgloss.Color("42")

	// ColorWarning marks partial failures (orange/yellow).
	ColorWarning = lipgloss.Color("214")

	// ColorDanger marks failures and aborted runs (red).
	ColorDanger = lipgloss.Color("196")

	// ColorMuted is used for skipped operations and secondary text (gray).
	ColorMuted = lipgloss.Color("245")
)

// Box styles for containing grouped content.
var (
	// HeaderBox holds the pack and patch set information.
	HeaderBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 1).
			MarginBottom(1)

	// FooterBox holds the run summary.
	FooterBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1).
			MarginTop(1)
)

// Text styles for various content types.
var (
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorDanger)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	PathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	KindStyle    = lipgloss.NewStyle().Foreground(ColorPrimary)

	// TableHeaderStyle is used for table column headers.
	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorMuted)
)

// statusStyle returns the style and marker for an operation status.
func statusStyle(s types.Status) (lipgloss.Style, string) {
	switch s {
	case types.StatusApplied:
		return SuccessStyle, "✓"
	case types.StatusSkipped:
		return MutedStyle, "·"
	default:
		return ErrorStyle, "✗"
	}
}

// runStatusStyle returns the style for a run status.
func runStatusStyle(s types.RunStatus) lipgloss.Style {
	switch s {
	case types.RunSuccess:
		return SuccessStyle.Bold(true)
	case types.RunPartialFailure:
		return WarningStyle.Bold(true)
	default:
		return ErrorStyle.Bold(true)
	}
}

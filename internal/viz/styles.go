package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	Title        lipgloss.Style
	Subtle       lipgloss.Style
	MetricLabel  lipgloss.Style
	MetricValue  lipgloss.Style
	HeaderStyle  lipgloss.Style
	CellStyle    lipgloss.Style
	BorderStyle  lipgloss.Style
	StatusOK     lipgloss.Style
	StatusFailed lipgloss.Style
	StatusBusy   lipgloss.Style

	SparkHigh lipgloss.Style
	SparkMid  lipgloss.Style
	SparkLow  lipgloss.Style
)

func init() { applyTheme(CurrentTheme) }

func applyTheme(t Theme) {
	Title = lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)
	Subtle = lipgloss.NewStyle().Foreground(t.Muted)
	MetricLabel = lipgloss.NewStyle().Foreground(t.Muted)
	MetricValue = lipgloss.NewStyle().Bold(true).Foreground(t.Secondary)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1)
	CellStyle = lipgloss.NewStyle().Foreground(t.Text).Padding(0, 1)
	BorderStyle = lipgloss.NewStyle().Foreground(t.Muted)
	StatusOK = lipgloss.NewStyle().Bold(true).Foreground(t.Success)
	StatusFailed = lipgloss.NewStyle().Bold(true).Foreground(t.Error)
	StatusBusy = lipgloss.NewStyle().Bold(true).Foreground(t.Warning)

	SparkHigh = lipgloss.NewStyle().Foreground(t.Success)
	SparkMid = lipgloss.NewStyle().Foreground(t.Warning)
	SparkLow = lipgloss.NewStyle().Foreground(t.Error)
}

// AnimatedSpinner returns frame of animated spinner
func AnimatedSpinner(frame int) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return spinners[frame%len(spinners)]
}

// ProgressBar renders percent (0 to 100) as a bar of width cells
func ProgressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	if percent >= 80 {
		return SparkHigh.Render(bar)
	} else if percent >= 40 {
		return SparkMid.Render(bar)
	}
	return SparkLow.Render(bar)
}

// StatusLine is the one-line summary of a request: label, elapsed whole seconds and
// progress.
func StatusLine(label string, elapsed time.Duration, percent float64) string {
	return fmt.Sprintf("%s %s %s",
		MetricLabel.Render(label),
		MetricValue.Render(fmt.Sprintf("%ds", int(elapsed/time.Second))),
		Subtle.Render(fmt.Sprintf("%3.0f%%", percent)))
}

// Separator is a horizontal rule of width cells
func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return Subtle.Render(left + " ◆ " + right)
}

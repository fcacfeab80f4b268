package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/lumipallolabs/diskprobe/internal/engine"
)

// Colors - cyberpunk/neon palette
var (
	ColorPrimary    = lipgloss.Color("#C084FC") // soft violet
	ColorSuccess    = lipgloss.Color("#39FF14") // neon green
	ColorDanger     = lipgloss.Color("#FF5555") // red
	ColorWarning    = lipgloss.Color("#FBBF24") // amber
	ColorMuted      = lipgloss.Color("#4A5568") // darker muted
	ColorBorder     = lipgloss.Color("#4A5568") // border
	ColorBackground = lipgloss.Color("#1F1F23") // dark background
	ColorCyan       = lipgloss.Color("#00FFFF") // neon cyan
	ColorText       = lipgloss.Color("#E4E4E7") // default text
	ColorDim        = lipgloss.Color("#9CA3AF") // labels

	// Reclaimed space indicator
	ColorReclaimed = lipgloss.Color("#5EEAD4") // teal
)

// Fragment cell colors, indexed by engine.Color
var cellColors = map[engine.Color]lipgloss.Color{
	engine.ColorPending: lipgloss.Color("#3F3F46"),
	engine.ColorWarning: ColorWarning,
	engine.ColorSuccess: lipgloss.Color("#60A5FA"), // written, waiting for verify
	engine.ColorAlert:   ColorDanger,
	engine.ColorConfirm: ColorSuccess,
}

// Styles
var (
	StatsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	GridPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	// Help bar - dimmer with bright key highlights
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3D4555")). // very dim
			Padding(0, 1)

	HelpKey = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Background(lipgloss.Color("#1E3A4C")). // subtle dark cyan bg
		Padding(0, 1)

	// Inline key hint (for use in text)
	KeyHint = lipgloss.NewStyle().
		Foreground(ColorCyan).
		Background(lipgloss.Color("#1E3A4C")).
		Padding(0, 1)

	// Help overlay key style (no background for cleaner look)
	HelpOverlayKey = lipgloss.NewStyle().
			Foreground(ColorCyan).
			Padding(0, 1)

	ReclaimedStyle = lipgloss.NewStyle().
			Foreground(ColorReclaimed)
)

// FormatSize formats bytes to human readable string
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.IBytes(uint64(-bytes))
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatDuration rounds d for display
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

// FormatTime formats a time for display, using a relative form for recent times
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if time.Since(t) < 7*24*time.Hour {
		return humanize.Time(t)
	}
	if t.Year() == time.Now().Year() {
		return t.Format("Jan 2 15:04")
	}
	return t.Format("Jan 2, 2006 15:04")
}

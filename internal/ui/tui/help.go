package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/diskprobe/internal/engine"
)

const helpKeyColumnWidth = 14 // Width for key column in help text (includes padding)

// HelpOverlay displays keyboard shortcuts and the cell legend in a centered overlay
type HelpOverlay struct {
	visible bool
	width   int
	height  int
	version string
}

// NewHelpOverlay creates a new help overlay component
func NewHelpOverlay(version string) HelpOverlay {
	return HelpOverlay{version: version}
}

// Toggle toggles the visibility of the help overlay
func (h *HelpOverlay) Toggle() {
	h.visible = !h.visible
}

// SetVisible sets the visibility of the help overlay
func (h *HelpOverlay) SetVisible(visible bool) {
	h.visible = visible
}

// IsVisible returns whether the help overlay is visible
func (h HelpOverlay) IsVisible() bool {
	return h.visible
}

// SetSize sets the dimensions of the help overlay
func (ho *HelpOverlay) SetSize(w, h int) {
	ho.width = w
	ho.height = h
}

// View renders the help overlay
func (h HelpOverlay) View() string {
	if !h.visible {
		return ""
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 3)

	sectionStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	keyStyle := HelpOverlayKey
	descStyle := lipgloss.NewStyle().Foreground(ColorText)
	dimStyle := lipgloss.NewStyle().Foreground(ColorMuted)

	var content strings.Builder

	content.WriteString(lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Render("DiskProbe"))
	if h.version != "" {
		content.WriteString(dimStyle.Render(" " + h.version))
	}
	content.WriteString("\n")

	content.WriteString(sectionStyle.Render("Scan"))
	content.WriteString("\n")
	content.WriteString(formatHelpLine(keyStyle, descStyle, "s / r", "Start scan"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "x / Esc", "Cancel scan"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "e", "Select volume"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "F5", "Refresh volumes"))
	content.WriteString(formatHelpLine(keyStyle, descStyle, "q", "Quit"))

	content.WriteString(sectionStyle.Render("Cells"))
	content.WriteString("\n")
	content.WriteString(legendLine(engine.ColorPending, "Allocated, not yet written"))
	content.WriteString(legendLine(engine.ColorSuccess, "Written"))
	content.WriteString(legendLine(engine.ColorConfirm, "Verified"))
	content.WriteString(legendLine(engine.ColorWarning, "Write failed"))
	content.WriteString(legendLine(engine.ColorAlert, "Verify failed"))

	content.WriteString("\n")
	content.WriteString(dimStyle.Render("Press any key to close"))

	box := boxStyle.Render(content.String())
	return lipgloss.Place(h.width, h.height, lipgloss.Center, lipgloss.Center, box)
}

// formatHelpLine formats a single help line with key and description
func formatHelpLine(keyStyle, descStyle lipgloss.Style, key, desc string) string {
	return keyStyle.Width(helpKeyColumnWidth).Render(key) + descStyle.Render(desc) + "\n"
}

func legendLine(c engine.Color, desc string) string {
	return lipgloss.NewStyle().Width(helpKeyColumnWidth).Padding(0, 1).Render(cellStyle(c).Render(cellGlyph+cellGlyph)) +
		lipgloss.NewStyle().Foreground(ColorText).Render(desc) + "\n"
}

// HelpBar renders a bottom help bar with key hints
func HelpBar(width int, scanning bool) string {
	descStyle := lipgloss.NewStyle().Foreground(ColorDim)

	type hint struct {
		key  string
		desc string
	}

	var fullHints []hint
	if scanning {
		fullHints = []hint{{"x", "cancel"}, {"?", "help"}, {"q", "quit"}}
	} else {
		fullHints = []hint{{"s", "scan"}, {"e", "volumes"}, {"F5", "refresh"}, {"?", "help"}, {"q", "quit"}}
	}

	// Minimal hints for very narrow terminals
	minimalHints := []hint{
		{"?", "help"},
		{"q", "quit"},
	}

	hints := fullHints
	if width < 50 {
		hints = minimalHints
	}

	var parts []string
	for _, h := range hints {
		parts = append(parts, HelpKey.Render(h.key)+" "+descStyle.Render(h.desc))
	}

	separator := "   "
	if width < 80 {
		separator = "  "
	}

	return HelpStyle.Width(width).MaxHeight(1).Render(strings.Join(parts, separator))
}

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/diskprobe/internal/model"
)

const headerUsageBarWidth = 20 // Width of volume usage bar

// Header displays volume info and reclaimed space (2 lines)
type Header struct {
	volume         *model.Volume
	customPath     string
	width          int
	status         string
	reclaimSession int64
	reclaimTotal   int64
	version        string
}

// NewHeader creates a new header component
func NewHeader(version string) Header {
	return Header{version: version}
}

// SetVolume sets the volume being probed. customPath wins when set.
func (h *Header) SetVolume(v *model.Volume, customPath string) {
	h.volume = v
	h.customPath = customPath
}

// SetStatus sets the right-hand status text of line 2
func (h *Header) SetStatus(status string) {
	h.status = status
}

// SetReclaimed sets the reclaimed space statistics
func (h *Header) SetReclaimed(session, total int64) {
	h.reclaimSession = session
	h.reclaimTotal = total
}

// SetWidth sets the header width
func (h *Header) SetWidth(w int) {
	h.width = w
}

// View renders the header
// Line 1: DiskProbe 0.1.0                     Free: X / Y [bar]
// Line 2: Volume: /path [e change]      Reclaimed: X session | Y total
func (h Header) View() string {
	nameStyle := lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	barFilledStyle := lipgloss.NewStyle().Foreground(ColorPrimary)
	barEmptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	appName := nameStyle.Render("DiskProbe") + LabelStyle.Render(" "+h.version)

	var freeStats string
	if v := h.volume; v != nil && v.TotalBytes > 0 {
		freeStats = LabelStyle.Render("Free: ") +
			StatsStyle.Render(fmt.Sprintf("%s / %s", FormatSize(int64(v.FreeBytes)), FormatSize(int64(v.TotalBytes))))

		if h.width >= lipgloss.Width(appName)+lipgloss.Width(freeStats)+headerUsageBarWidth+6 {
			filled := int(v.UsedPercent() / 100 * headerUsageBarWidth)
			filled = min(max(filled, 0), headerUsageBarWidth)
			bar := barFilledStyle.Render(strings.Repeat("▓", filled)) +
				barEmptyStyle.Render(strings.Repeat("░", headerUsageBarWidth-filled))
			freeStats += "  " + bar
		}
	}
	line1 := spread(h.width, appName, freeStats)

	var target string
	switch {
	case h.customPath != "":
		target = LabelStyle.Render("Path: ") + StatsStyle.Bold(true).Render(h.customPath)
	case h.volume != nil:
		target = LabelStyle.Render("Volume: ") + StatsStyle.Bold(true).Render(h.volume.Path)
		hint := "  " + KeyHint.Render("e") + LabelStyle.Render(" change")
		if h.width-lipgloss.Width(target)-lipgloss.Width(h.status)-4 >= lipgloss.Width(hint) {
			target += hint
		}
	default:
		target = LabelStyle.Render("No volume selected")
	}

	right := h.status
	if h.reclaimSession > 0 || h.reclaimTotal > 0 {
		right = LabelStyle.Render("Reclaimed: ") +
			ReclaimedStyle.Render(FormatSize(h.reclaimSession)+" session") +
			LabelStyle.Render(" | "+FormatSize(h.reclaimTotal)+" total")
	}
	line2 := spread(h.width, target, right)

	return lipgloss.JoinVertical(lipgloss.Left, line1, line2)
}

// spread places left and right on one line separated by at least two spaces
func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 2 {
		gap = 2
	}
	return left + strings.Repeat(" ", gap) + right
}

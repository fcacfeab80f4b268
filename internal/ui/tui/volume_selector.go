package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/diskprobe/internal/model"
)

// VolumeSelector displays mounted volumes for selection
type VolumeSelector struct {
	volumes  []model.Volume
	selected int
	visible  bool
	width    int
	height   int
}

// NewVolumeSelector creates a new volume selector component
func NewVolumeSelector(volumes []model.Volume) VolumeSelector {
	return VolumeSelector{volumes: volumes}
}

// SetVolumes updates the available volumes
func (d *VolumeSelector) SetVolumes(volumes []model.Volume) {
	d.volumes = volumes
	if d.selected >= len(volumes) {
		d.selected = 0
	}
}

// SetSelected sets the currently highlighted volume
func (d *VolumeSelector) SetSelected(idx int) {
	if idx >= 0 && idx < len(d.volumes) {
		d.selected = idx
	}
}

// Selected returns the index of the currently highlighted volume
func (d VolumeSelector) Selected() int {
	return d.selected
}

// SetVisible sets visibility of the selector
func (d *VolumeSelector) SetVisible(visible bool) {
	d.visible = visible
}

// IsVisible returns whether the selector is visible
func (d VolumeSelector) IsVisible() bool {
	return d.visible
}

// SetSize sets the dimensions for centering
func (d *VolumeSelector) SetSize(w, h int) {
	d.width = w
	d.height = h
}

// MoveUp moves selection up
func (d *VolumeSelector) MoveUp() {
	if d.selected > 0 {
		d.selected--
	}
}

// MoveDown moves selection down
func (d *VolumeSelector) MoveDown() {
	if d.selected < len(d.volumes)-1 {
		d.selected++
	}
}

// View renders the volume selector overlay
func (d VolumeSelector) View() string {
	if !d.visible || len(d.volumes) == 0 {
		return ""
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 2).
		Background(ColorBackground)

	titleStyle := lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		MarginBottom(1)

	normalStyle := lipgloss.NewStyle().
		Foreground(ColorText).
		PaddingLeft(1).
		PaddingRight(1)

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(ColorPrimary).
		Bold(true).
		PaddingLeft(1).
		PaddingRight(1)

	hintStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	var content strings.Builder

	content.WriteString(titleStyle.Render("Select Volume"))
	content.WriteString("\n")

	for i, v := range d.volumes {
		line := fmt.Sprintf("%-20s %-6s %s free / %s (%.0f%% used)",
			v.Path, v.Fstype,
			FormatSize(int64(v.FreeBytes)), FormatSize(int64(v.TotalBytes)), v.UsedPercent())
		if v.ReadOnly {
			line += " ro"
		}

		if i == d.selected {
			content.WriteString(selectedStyle.Render(line))
		} else {
			content.WriteString(normalStyle.Render(line))
		}
		content.WriteString("\n")
	}

	content.WriteString(hintStyle.Render("↑/↓ select  Enter confirm  Esc cancel"))

	box := boxStyle.Render(strings.TrimSuffix(content.String(), "\n"))
	return lipgloss.Place(d.width, d.height, lipgloss.Center, lipgloss.Center, box)
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lumipallolabs/diskprobe/internal/core"
	"github.com/lumipallolabs/diskprobe/internal/engine"
	"github.com/lumipallolabs/diskprobe/internal/history"
	"github.com/lumipallolabs/diskprobe/internal/logging"
)

// Message types for Bubble Tea
type (
	scanStartMsg         struct{}
	scanEventMsg         struct{ event core.Event }
	reclaimedMsg         struct{ event core.ReclaimedEvent }
	tickMsg              struct{}
	scanCompleteDelayMsg struct{}
)

// Timing constants
const (
	tickInterval     = 250 * time.Millisecond
	completeDelay    = 500 * time.Millisecond
	statsPanelHeight = 5
	barLabelWidth    = 9
	barCountWidth    = 16
	headerHeight     = 2
	helpBarHeight    = 1
	minGridHeight    = 3
)

// App is the main TUI application model
type App struct {
	// Core controller (business logic)
	ctrl *core.Controller

	// UI Components
	header   Header
	grid     FragmentGrid
	help     HelpOverlay
	selector VolumeSelector
	keys     KeyMap
	version  string

	writeBar    progress.Model
	verifyBar   progress.Model
	combinedBar progress.Model

	// UI state (TUI-specific)
	err        error
	diagnostic string
	comparison *history.Comparison
	cancel     context.CancelFunc

	// Event channels (for continuing to listen after each event)
	scanEventCh    <-chan core.Event
	watcherEventCh <-chan core.Event

	// Dimensions
	width  int
	height int
}

// NewApp creates a new application instance around ctrl
func NewApp(ctrl *core.Controller, version string) App {
	volumes := ctrl.Volumes()

	app := App{
		ctrl:        ctrl,
		header:      NewHeader(version),
		grid:        NewFragmentGrid(),
		help:        NewHelpOverlay(version),
		selector:    NewVolumeSelector(volumes),
		keys:        DefaultKeyMap(),
		version:     version,
		writeBar:    progress.New(progress.WithGradient("#5EEAD4", "#60A5FA")),
		verifyBar:   progress.New(progress.WithGradient("#60A5FA", "#39FF14")),
		combinedBar: progress.New(progress.WithDefaultGradient()),
	}

	app.header.SetVolume(ctrl.SelectedVolume(), ctrl.CustomPath())
	app.selector.SetSelected(ctrl.SelectedVolumeIndex())
	if ctrl.CustomPath() == "" && !ctrl.HasSavedDefaultVolume() && len(volumes) > 0 {
		app.selector.SetVisible(true)
	}

	reclaimed := ctrl.ReclaimedState()
	app.header.SetReclaimed(reclaimed.Session, reclaimed.Lifetime)

	return app
}

// Init implements tea.Model
func (a App) Init() tea.Cmd {
	if a.selector.IsVisible() || a.ctrl.Target() == "" {
		return nil
	}
	return func() tea.Msg {
		return scanStartMsg{}
	}
}

// Update implements tea.Model
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateLayout()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case scanStartMsg:
		return a.startScan()

	case scanEventMsg:
		return a.handleScanEvent(msg.event)

	case scanCompleteDelayMsg:
		return a.finalizeScan()

	case reclaimedMsg:
		a.header.SetReclaimed(msg.event.SessionReclaimed, msg.event.TotalReclaimed)
		return a, a.listenForWatcherEvents()

	case tickMsg:
		if a.ctrl.ScanState().Running() {
			return a, tick()
		}
		return a, nil
	}

	return a, nil
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// handleScanEvent processes scan events and continues listening
func (a App) handleScanEvent(event core.Event) (tea.Model, tea.Cmd) {
	switch e := event.(type) {
	case core.ScanStartedEvent:
		a.grid.Clear()
		a.err = nil
		a.diagnostic = ""
		a.comparison = nil
		logging.Debug.Debugf("[TUI] scan started: %s", e.Dir)

	case core.PlanReadyEvent:
		a.grid.Reset(e.Plan.Count)

	case core.FragmentEvent:
		a.grid.Apply(e.Update)

	case core.DiagnosticEvent:
		a.diagnostic = fmt.Sprintf("%s %s: %v", e.Diagnostic.Op, e.Diagnostic.Path, e.Diagnostic.Err)

	case core.ErrorEvent:
		a.err = e.Err

	case core.ScanCompletedEvent:
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		if e.Report == nil {
			a.err = e.Err
			a.header.SetStatus("")
			return a, a.listenForScanEvents()
		}
		if e.Err != nil && !engine.IsCancelled(e.Err) {
			a.err = e.Err
		}
		a.comparison = e.Comparison
		a.header.SetStatus(a.completedStatus(e.Report))
		// Show "Complete" briefly before watching for deletions
		return a, tea.Batch(
			a.listenForScanEvents(),
			tea.Tick(completeDelay, func(time.Time) tea.Msg {
				return scanCompleteDelayMsg{}
			}),
		)
	}

	return a, a.listenForScanEvents()
}

func (a App) completedStatus(r *engine.Report) string {
	if r.Cancelled {
		return lipgloss.NewStyle().Foreground(ColorWarning).Render("Cancelled")
	}
	return lipgloss.NewStyle().Foreground(ColorSuccess).Render("Complete")
}

// startScan begins the scanning process
func (a App) startScan() (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	eventCh, err := a.ctrl.StartScan(ctx)
	if err != nil {
		cancel()
		a.err = err
		return a, nil
	}

	a.cancel = cancel
	a.scanEventCh = eventCh
	a.watcherEventCh = nil
	a.header.SetStatus(lipgloss.NewStyle().Foreground(ColorCyan).Render("Scanning"))

	return a, tea.Batch(a.listenForScanEvents(), tick())
}

// listenForScanEvents creates a command that listens for scan events
func (a App) listenForScanEvents() tea.Cmd {
	if a.scanEventCh == nil {
		return nil
	}
	eventCh := a.scanEventCh
	return func() tea.Msg {
		event, ok := <-eventCh
		if !ok {
			return nil // Channel closed
		}
		return scanEventMsg{event: event}
	}
}

// finalizeScan completes the scan and starts watching the fragment directory
func (a App) finalizeScan() (tea.Model, tea.Cmd) {
	a.ctrl.FinalizeScan()
	reclaimed := a.ctrl.ReclaimedState()
	a.header.SetReclaimed(reclaimed.Session, reclaimed.Lifetime)
	return a, a.startWatcher()
}

// startWatcher starts watching for deleted verified fragments
func (a *App) startWatcher() tea.Cmd {
	eventCh, err := a.ctrl.StartWatching()
	if err != nil || eventCh == nil {
		if err != nil {
			logging.Debug.Debugf("[TUI] watcher not started: %v", err)
		}
		return nil
	}
	a.watcherEventCh = eventCh
	return a.listenForWatcherEvents()
}

// listenForWatcherEvents creates a command that listens for watcher events
func (a App) listenForWatcherEvents() tea.Cmd {
	if a.watcherEventCh == nil {
		return nil
	}
	eventCh := a.watcherEventCh
	return func() tea.Msg {
		event, ok := <-eventCh
		if !ok {
			return nil // Channel closed
		}
		if e, ok := event.(core.ReclaimedEvent); ok {
			return reclaimedMsg{event: e}
		}
		return nil
	}
}

// handleKey handles keyboard input
func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Help overlay - any key closes it
	if a.help.IsVisible() {
		a.help.SetVisible(false)
		return a, nil
	}

	// Volume selector overlay
	if a.selector.IsVisible() {
		switch {
		case key.Matches(msg, a.keys.Back):
			a.selector.SetVisible(false)
		case key.Matches(msg, a.keys.Up):
			a.selector.MoveUp()
		case key.Matches(msg, a.keys.Down):
			a.selector.MoveDown()
		case key.Matches(msg, a.keys.Enter):
			a.selector.SetVisible(false)
			return a.selectVolume(a.selector.Selected())
		case key.Matches(msg, a.keys.Quit):
			a.ctrl.Stop()
			return a, tea.Quit
		}
		return a, nil
	}

	running := a.ctrl.ScanState().Running()

	switch {
	case key.Matches(msg, a.keys.Quit):
		if a.cancel != nil {
			a.cancel()
		}
		a.ctrl.Stop()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.help.Toggle()
		return a, nil

	case key.Matches(msg, a.keys.Cancel):
		if running && a.cancel != nil {
			a.cancel()
			a.header.SetStatus(lipgloss.NewStyle().Foreground(ColorWarning).Render("Cancelling"))
		}
		return a, nil

	case key.Matches(msg, a.keys.Scan):
		if !running {
			return a.startScan()
		}
		return a, nil

	case key.Matches(msg, a.keys.SelectVolume):
		if !running && len(a.ctrl.Volumes()) > 0 {
			a.selector.SetSelected(a.ctrl.SelectedVolumeIndex())
			a.selector.SetVisible(true)
		}
		return a, nil

	case key.Matches(msg, a.keys.Refresh):
		if running {
			return a, nil
		}
		if err := a.ctrl.RefreshVolumes(context.Background()); err != nil {
			a.err = err
			return a, nil
		}
		a.selector.SetVolumes(a.ctrl.Volumes())
		a.header.SetVolume(a.ctrl.SelectedVolume(), a.ctrl.CustomPath())
		return a, nil
	}

	return a, nil
}

// selectVolume selects a volume and starts scanning
func (a App) selectVolume(idx int) (tea.Model, tea.Cmd) {
	if err := a.ctrl.SelectVolume(idx); err != nil {
		a.err = err
		return a, nil
	}

	reclaimed := a.ctrl.ReclaimedState()
	a.header.SetReclaimed(reclaimed.Session, reclaimed.Lifetime)
	a.header.SetVolume(a.ctrl.SelectedVolume(), a.ctrl.CustomPath())
	a.grid.Clear()

	return a.startScan()
}

// updateLayout calculates component sizes
func (a *App) updateLayout() {
	errHeight := 0
	if a.err != nil {
		errHeight = 1
	}
	gridHeight := a.height - headerHeight - helpBarHeight - statsPanelHeight - errHeight
	if gridHeight < minGridHeight {
		gridHeight = minGridHeight
	}

	barWidth := a.width - barLabelWidth - barCountWidth - 2
	if barWidth < 10 {
		barWidth = 10
	}

	a.header.SetWidth(a.width)
	a.grid.SetSize(a.width, gridHeight)
	a.writeBar.Width = barWidth
	a.verifyBar.Width = barWidth
	a.combinedBar.Width = barWidth
	a.help.SetSize(a.width, a.height)
	a.selector.SetSize(a.width, a.height)
}

// View implements tea.Model
func (a App) View() string {
	if a.width == 0 || a.height == 0 {
		return "Loading..."
	}
	// Error line changes the grid height
	a.updateLayout()

	state := a.ctrl.ScanState()

	sections := []string{a.header.View()}
	if a.err != nil && !errors.Is(a.err, context.Canceled) {
		errStyle := lipgloss.NewStyle().
			Foreground(ColorDanger).
			Padding(0, 1)
		sections = append(sections, errStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	}

	if a.grid.Count() > 0 {
		sections = append(sections, a.grid.View())
	} else {
		sections = append(sections, a.renderIdlePanel(state))
	}
	sections = append(sections, a.renderStatsPanel(state))
	sections = append(sections, HelpBar(a.width, state.Running()))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	// Overlays
	if a.help.IsVisible() {
		return a.renderOverlay(a.help.View())
	}
	if a.selector.IsVisible() {
		return a.renderOverlay(a.selector.View())
	}

	return content
}

// renderOverlay renders an overlay centered on screen
func (a App) renderOverlay(overlay string) string {
	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Center,
		overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(ColorBackground),
	)
}

// renderIdlePanel fills the grid area before the first plan is known
func (a App) renderIdlePanel(state core.ScanState) string {
	var text string
	switch {
	case state.Phase == core.PhasePlanning:
		text = fmt.Sprintf("%s... %d", state.Phase, state.Allocated)
	case a.ctrl.Target() == "":
		text = "Press " + KeyHint.Render("e") + " to select a volume"
	default:
		text = "Press " + KeyHint.Render("s") + " to probe " + a.ctrl.Target()
	}
	return GridPanelStyle.
		Width(max(a.grid.width-2, 0)).
		Height(max(a.grid.height-2, 0)).
		Align(lipgloss.Center, lipgloss.Center).
		Render(LabelStyle.Render(text))
}

// renderStatsPanel renders the three progress bars and the tally
func (a App) renderStatsPanel(state core.ScanState) string {
	label := LabelStyle.Width(barLabelWidth)
	count := LabelStyle.Width(barCountWidth).Align(lipgloss.Right)

	planned := state.Plan.Count
	lines := []string{
		label.Render("Write") + a.writeBar.ViewAs(state.WriteFraction()) +
			count.Render(fmt.Sprintf("%d/%d", state.Written, planned)),
		label.Render("Verify") + a.verifyBar.ViewAs(state.VerifyFraction()) +
			count.Render(fmt.Sprintf("%d/%d", state.Verified, state.VerifyMax)),
		label.Render("Total") + a.combinedBar.ViewAs(state.CombinedFraction()) +
			count.Render(fmt.Sprintf("%d/%d", state.Combined, state.CombinedMax)),
	}

	good := lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	bad := lipgloss.NewStyle().Foreground(ColorDanger).Bold(true)
	slow := lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	tally := []string{
		LabelStyle.Render("GOOD ") + good.Render(fmt.Sprint(state.Tally.Good)),
		LabelStyle.Render("BAD ") + bad.Render(fmt.Sprint(state.Tally.Bad)),
		LabelStyle.Render("SLOW ") + slow.Render(fmt.Sprint(state.Tally.Slow)),
	}
	if state.Plan.FragmentSize > 0 {
		tally = append(tally, LabelStyle.Render("SIZE ")+StatsStyle.Render(FormatSize(state.Plan.FragmentSize)))
	}
	if state.Average > 0 {
		tally = append(tally, LabelStyle.Render("TIMEOUT ")+StatsStyle.Render(FormatDuration(state.Average)))
	}
	if state.Running() {
		tally = append(tally, LabelStyle.Render("TIME ")+StatsStyle.Render(state.Elapsed().String()))
	}
	lines = append(lines, " "+strings.Join(tally, "   "))
	lines = append(lines, " "+a.footnote(state))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// footnote shows the latest diagnostic while scanning, the comparison afterwards
func (a App) footnote(state core.ScanState) string {
	if state.Running() || a.comparison == nil {
		if a.diagnostic != "" {
			return lipgloss.NewStyle().Foreground(ColorWarning).Render(
				fmt.Sprintf("%d diagnostics, last: %s", state.Diagnostics, a.diagnostic))
		}
		return ""
	}

	c := a.comparison
	if c.Previous == nil {
		return LabelStyle.Render("First scan of this volume")
	}
	text := fmt.Sprintf("Since %s: good %+d  bad %+d  slow %+d  free %s",
		FormatTime(c.Previous.FinishedAt), c.GoodDelta, c.BadDelta, c.SlowDelta, signedSize(c.FreeDelta))
	if c.Degraded() {
		return lipgloss.NewStyle().Foreground(ColorDanger).Render(text + "  degraded")
	}
	return LabelStyle.Render(text)
}

func signedSize(n int64) string {
	if n >= 0 {
		return "+" + FormatSize(n)
	}
	return FormatSize(n)
}

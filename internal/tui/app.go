// Package tui provides the live progress display for hydra runs.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hydra/internal/orchestrator"
)

// Status icons for slot states.
const (
	iconQueued   = "[○]"
	iconRunning  = "[●]"
	iconDone     = "[✓]"
	iconFailed   = "[✗]"
	iconTimedOut = "[◌]"
)

// Display labels for slot states.
const (
	slotStatusQueued   = "QUEUED"
	slotStatusRunning  = "PROCESSING"
	slotStatusDone     = "COMPLETED"
	slotStatusFailed   = "FAILED"
	slotStatusTimedOut = "TIMED OUT"
)

// slotView is the display state of one subtask slot.
type slotView struct {
	agentID  string
	question string
	status   string
	started  time.Time
	duration time.Duration
}

// eventMsg wraps an orchestrator event for bubbletea.
type eventMsg orchestrator.Event

// eventsClosedMsg signals the orchestrator closed its event channel.
type eventsClosedMsg struct{}

// tickMsg drives the elapsed clock.
type tickMsg time.Time

// App is the bubbletea model for a single run's progress.
type App struct {
	task    string
	runID   string
	phase   string
	slots   []slotView
	events  <-chan orchestrator.Event
	spinner spinner.Model
	width   int
	started time.Time
	done    bool
	failed  bool

	headerStyle lipgloss.Style
	phaseStyle  lipgloss.Style
	rowStyle    lipgloss.Style
	footerStyle lipgloss.Style
	okStyle     lipgloss.Style
	runStyle    lipgloss.Style
	failStyle   lipgloss.Style
	waitStyle   lipgloss.Style
}

// NewApp creates the progress model for a run of n slots.
func NewApp(task string, n int, events <-chan orchestrator.Event) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	slots := make([]slotView, n)
	for i := range slots {
		slots[i] = slotView{
			agentID: fmt.Sprintf("agent_%d", i+1),
			status:  slotStatusQueued,
		}
	}

	return &App{
		task:    task,
		phase:   "planning",
		slots:   slots,
		events:  events,
		spinner: sp,
		width:   80,
		started: time.Now(),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("7")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240")),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),

		rowStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		footerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		okStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("28")),
		runStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		failStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		waitStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Init starts the spinner, the clock, and the event pump.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.tick(), a.waitForEvent())
}

// waitForEvent blocks on the orchestrator's event channel.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(event)
	}
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case tickMsg:
		if a.done {
			return a, nil
		}
		return a, a.tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case eventMsg:
		a.apply(orchestrator.Event(msg))
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.done = true
		return a, tea.Quit
	}

	return a, nil
}

// apply folds one orchestrator event into the display state.
func (a *App) apply(event orchestrator.Event) {
	switch event.Type {
	case orchestrator.EventRunStarted:
		a.runID = event.RunID
		a.phase = "planning"
	case orchestrator.EventPlanReady:
		a.phase = "executing"
	case orchestrator.EventSlotStarted:
		if s := a.slot(event.Slot); s != nil {
			s.status = slotStatusRunning
			s.question = event.Question
			s.started = event.Timestamp
		}
	case orchestrator.EventSlotCompleted:
		if s := a.slot(event.Slot); s != nil {
			s.status = slotStatusDone
			s.duration = event.Duration
		}
	case orchestrator.EventSlotFailed:
		if s := a.slot(event.Slot); s != nil {
			s.status = slotStatusFailed
			s.duration = event.Duration
		}
	case orchestrator.EventSlotTimedOut:
		if s := a.slot(event.Slot); s != nil {
			s.status = slotStatusTimedOut
			s.duration = event.Duration
		}
	case orchestrator.EventSynthesisStarted:
		a.phase = "synthesizing"
	case orchestrator.EventRunDone:
		a.phase = "done"
		a.done = true
	case orchestrator.EventRunFailed:
		a.phase = "failed"
		a.done = true
		a.failed = true
	}
}

func (a *App) slot(i int) *slotView {
	if i < 0 || i >= len(a.slots) {
		return nil
	}
	return &a.slots[i]
}

// View renders the run header, one row per slot, and the key hints.
func (a *App) View() string {
	var b strings.Builder

	title := fmt.Sprintf("HYDRA %s", a.runID)
	b.WriteString(a.headerStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(a.rowStyle.Render(truncate(a.task, a.width-2)))
	b.WriteString("\n\n")

	phase := a.phaseStyle.Render(strings.ToUpper(a.phase))
	if !a.done {
		phase = a.spinner.View() + " " + phase
	}
	b.WriteString(fmt.Sprintf("%s  %s\n\n", phase, formatDuration(time.Since(a.started))))

	colIcon, colID, colStatus := 4, 10, 12
	colQuestion := a.width - colIcon - colID - colStatus - 16
	if colQuestion < 10 {
		colQuestion = 10
	}

	for i := range a.slots {
		s := &a.slots[i]
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
			colIcon, a.statusIcon(s.status),
			colID, s.agentID,
			colStatus, s.status,
			10, a.slotClock(s),
			truncate(s.question, colQuestion),
		)
		b.WriteString(a.rowStyle.Render(row))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.footerStyle.Render("[q] quit"))
	return b.String()
}

// slotClock shows elapsed time for a running slot and the final
// duration for a finished one.
func (a *App) slotClock(s *slotView) string {
	switch s.status {
	case slotStatusQueued:
		return "-"
	case slotStatusRunning:
		return formatDuration(time.Since(s.started))
	default:
		return formatDuration(s.duration)
	}
}

// statusIcon returns the styled icon for a slot status.
func (a *App) statusIcon(status string) string {
	switch status {
	case slotStatusRunning:
		return a.runStyle.Render(iconRunning)
	case slotStatusDone:
		return a.okStyle.Render(iconDone)
	case slotStatusFailed:
		return a.failStyle.Render(iconFailed)
	case slotStatusTimedOut:
		return a.failStyle.Render(iconTimedOut)
	default:
		return a.waitStyle.Render(iconQueued)
	}
}

// truncate shortens a string to fit in a column.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

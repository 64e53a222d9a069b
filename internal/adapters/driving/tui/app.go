// Package tui implements the interactive job monitor.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
)

// refreshInterval is how often the job list is re-fetched.
const refreshInterval = 500 * time.Millisecond

// KeyMap defines the monitor keybindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Cancel key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel job"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Messages produced by the refresh loop.
type (
	jobsMsg    []domain.Job
	refreshMsg time.Time
	errMsg     struct{ err error }
)

// App is the job monitor model following the Elm architecture.
type App struct {
	pipeline driving.PipelineService
	ctx      context.Context

	styles *Styles
	keys   KeyMap
	spin   spinner.Model

	jobs     []domain.Job
	selected int
	err      error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a monitor over the pipeline service.
func NewApp(pipeline driving.PipelineService) *App {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return &App{
		pipeline: pipeline,
		ctx:      context.Background(),
		styles:   DefaultStyles(),
		keys:     DefaultKeyMap(),
		spin:     s,
	}
}

// WithContext sets the context for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	if ctx != nil {
		a.ctx = ctx
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("talksync monitor"),
		a.spin.Tick,
		a.fetchJobs,
		a.scheduleRefresh(),
	)
}

// fetchJobs loads the job list.
func (a *App) fetchJobs() tea.Msg {
	jobs, err := a.pipeline.List(a.ctx)
	if err != nil {
		return errMsg{err}
	}
	return jobsMsg(jobs)
}

// scheduleRefresh emits a refresh message after the poll interval.
func (a *App) scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case jobsMsg:
		a.jobs = msg
		a.err = nil
		if a.selected >= len(a.jobs) {
			a.selected = max(0, len(a.jobs)-1)
		}
		return a, nil

	case refreshMsg:
		return a, tea.Batch(a.fetchJobs, a.scheduleRefresh())

	case errMsg:
		a.err = msg.err
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	return a, nil
}

// handleKey processes keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit

	case key.Matches(msg, a.keys.Up):
		if a.selected > 0 {
			a.selected--
		}

	case key.Matches(msg, a.keys.Down):
		if a.selected < len(a.jobs)-1 {
			a.selected++
		}

	case key.Matches(msg, a.keys.Cancel):
		if a.selected < len(a.jobs) {
			jobID := a.jobs[a.selected].ID
			return a, func() tea.Msg {
				if err := a.pipeline.Cancel(a.ctx, jobID); err != nil {
					return errMsg{err}
				}
				return nil
			}
		}
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Talksync Jobs"))
	b.WriteString(" ")
	b.WriteString(a.spin.View())
	b.WriteString("\n\n")

	if a.err != nil {
		b.WriteString(a.styles.Error.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("\n\n")
	}

	if len(a.jobs) == 0 {
		b.WriteString(a.styles.Muted.Render("No jobs yet."))
		b.WriteString("\n")
	}

	for i := range a.jobs {
		b.WriteString(a.renderRow(i))
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Help.Render("↑/k up · ↓/j down · c cancel · q quit"))

	return b.String()
}

// renderRow formats one job line.
func (a *App) renderRow(i int) string {
	job := &a.jobs[i]

	line := fmt.Sprintf("%-36s  %-9s  %-7s  %6d frames",
		job.ID, job.State, job.Mode, job.FramesEmitted)
	if job.SegmentErrors > 0 {
		line += fmt.Sprintf("  %d errs", job.SegmentErrors)
	}
	if job.State == domain.JobStateFailed {
		line += "  " + job.ErrorKind
	}

	if i == a.selected {
		return a.styles.Selected.Render("> " + line)
	}
	return "  " + a.styles.StateStyle(job.State).Render(line)
}

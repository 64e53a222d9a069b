package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// Styles contains the pre-configured lipgloss styles for the monitor.
type Styles struct {
	// Title style for the header line.
	Title lipgloss.Style

	// Normal style for regular rows.
	Normal lipgloss.Style

	// Muted style for less important text.
	Muted lipgloss.Style

	// Selected style for the highlighted row.
	Selected lipgloss.Style

	// Running style for active job states.
	Running lipgloss.Style

	// Success style for completed jobs.
	Success lipgloss.Style

	// Error style for failed jobs.
	Error lipgloss.Style

	// Help style for the footer.
	Help lipgloss.Style
}

// DefaultStyles returns the default monitor styles.
func DefaultStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")),

		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086")),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#7C3AED")),

		Running: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4")),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6E3A1")),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086")).
			MarginTop(1),
	}
}

// StateStyle returns the style for a job state.
func (s *Styles) StateStyle(state domain.JobState) lipgloss.Style {
	switch state {
	case domain.JobStateCompleted:
		return s.Success
	case domain.JobStateFailed:
		return s.Error
	case domain.JobStateCancelled:
		return s.Muted
	default:
		return s.Running
	}
}

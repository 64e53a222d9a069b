package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/viseme-labs/talksync/internal/adapters/driving/tui"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the interactive job monitor",
	Long: `Launch the terminal job monitor. It shows all jobs with their live
frame counters, refreshing continuously.

Controls:
  ↑/k, ↓/j - Navigate jobs
  c         - Cancel selected job
  q         - Quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	if pipelineService == nil {
		return errors.New("pipeline service not configured")
	}

	// Surface panics with a stack trace instead of a garbled screen.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in monitor: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app := tui.NewApp(pipelineService)
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}

	return nil
}

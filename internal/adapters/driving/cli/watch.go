package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the spool directory for audio drops",
	Long: `Runs the spool watcher until interrupted. Every audio file dropped
into the configured spool directory is rendered offline against the
configured portrait once it has finished uploading.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if watchService == nil {
		return errors.New("watch service not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- watchService.Start(ctx)
	}()

	cmd.Println("Watching spool directory. Press Ctrl-C to stop.")

	select {
	case <-sigCh:
		cmd.Println("Stopping...")
		if err := watchService.Stop(); err != nil {
			return fmt.Errorf("failed to stop watcher: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("watcher stopped: %w", err)
		}
		return nil
	}
}

// Package cli implements the command line interface for Talksync.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/core/ports/driving"
	"github.com/viseme-labs/talksync/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired in by main before Execute.
var (
	pipelineService driving.PipelineService
	watchService    driving.WatchService
	configStore     driven.ConfigStore
	storePath       string
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "talksync",
	Short: "Audio-driven talking-head rendering",
	Long: `Talksync renders lip-synchronised talking-head video from an audio
track and a portrait image, driving a GPU inference engine in batched,
ordered segments.

Offline jobs favour throughput and write a buffered output file;
online jobs favour latency and stream frames as they render.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// SetServices wires the services the commands depend on.
func SetServices(pipeline driving.PipelineService, watch driving.WatchService, config driven.ConfigStore) {
	pipelineService = pipeline
	watchService = watch
	configStore = config
}

// SetStorePath records the job database location shown by status.
func SetStorePath(path string) {
	storePath = path
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/viseme-labs/talksync/internal/adapters/driven/config/file"
	"github.com/viseme-labs/talksync/internal/adapters/driven/engine/httprt"
	"github.com/viseme-labs/talksync/internal/adapters/driven/engine/loopback"
	"github.com/viseme-labs/talksync/internal/adapters/driven/media/wavsource"
	"github.com/viseme-labs/talksync/internal/adapters/driven/sink"
	"github.com/viseme-labs/talksync/internal/adapters/driven/storage/sqlite"
	"github.com/viseme-labs/talksync/internal/adapters/driving/cli"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/core/services"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; environment variables may be set directly.
	//nolint:errcheck // a missing .env file is fine
	godotenv.Load()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("failed to initialise config store: %w", err)
	}

	settings := services.NewSettingsService(configStore)

	store, err := sqlite.NewStore(settings.DataDir())
	if err != nil {
		return fmt.Errorf("failed to open job store: %w", err)
	}
	defer store.Close()

	engine := buildEngine(settings)
	defer engine.Close()

	media := &wavsource.Opener{FrameRate: settings.FrameRate()}
	controller := services.NewPipelineController(
		store.JobStore(),
		engine,
		media,
		sink.NewFactory(),
		settings.OutputDir(),
	)

	watcher := services.NewWatcher(
		controller,
		settings.SpoolDir(),
		settings.WatchPortrait(),
		settings.WatchSettle(),
	)

	cli.SetServices(controller, watcher, configStore)
	cli.SetStorePath(store.Path())
	cli.SetVersion(version)

	return cli.Execute()
}

// buildEngine selects the inference engine from configuration.
// Environment variables override stored values so deployments can point
// at a worker without touching the config file.
func buildEngine(settings *services.SettingsService) driven.InferenceEngine {
	kind := settings.EngineKind()
	if v := os.Getenv("TALKSYNC_ENGINE"); v != "" {
		kind = v
	}

	if kind == services.EngineKindLoopback {
		return loopback.New(loopback.Config{MaxBatch: settings.EngineMaxBatch()})
	}

	cfg := httprt.Config{
		BaseURL:  settings.EngineURL(),
		APIKey:   settings.EngineAPIKey(),
		MaxBatch: settings.EngineMaxBatch(),
	}
	if v := os.Getenv("TALKSYNC_ENGINE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("TALKSYNC_ENGINE_KEY"); v != "" {
		cfg.APIKey = v
	}
	return httprt.New(cfg)
}

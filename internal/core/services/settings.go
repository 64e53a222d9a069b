package services

import (
	"os"
	"path/filepath"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Config keys for settings storage.
const (
	keySegmentDurationMS = "pipeline.segment_duration_ms"
	keySegmentOverlapMS  = "pipeline.segment_overlap_ms"
	keyMaxBatchSize      = "pipeline.max_batch_size"
	keyMaxWaitMS         = "pipeline.max_wait_ms"
	keyMaxInFlight       = "pipeline.max_in_flight"
	keyEngineConcurrency = "pipeline.engine_concurrency"
	keyMaxRetries        = "pipeline.max_retries"
	keyRetryBackoffMS    = "pipeline.retry_backoff_ms"
	keySubmitRate        = "pipeline.submit_rate"
	keyQueueDepth        = "pipeline.queue_depth"
	keyStallTimeoutMS    = "pipeline.stall_timeout_ms"
	keyFailureWindow     = "pipeline.failure_window"
	keyFailureRateLimit  = "pipeline.failure_rate_limit"
	keyGapPolicy         = "pipeline.gap_policy"

	keyEngineKind   = "engine.kind"
	keyEngineURL    = "engine.url"
	keyEngineAPIKey = "engine.api_key"
	keyEngineBatch  = "engine.max_batch"

	keyFrameRate = "media.frame_rate"

	keyOutputDir     = "paths.output_dir"
	keyDataDir       = "paths.data_dir"
	keySpoolDir      = "watch.spool_dir"
	keySpoolPortrait = "watch.portrait"
	keySpoolSettle   = "watch.settle_ms"
)

// Engine kinds selectable via configuration.
const (
	EngineKindHTTP     = "http"
	EngineKindLoopback = "loopback"
)

// SettingsService maps stored configuration onto pipeline and adapter
// defaults. Missing keys fall back to the mode defaults.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// PipelineConfig builds the pipeline configuration for a mode, applying
// stored overrides on top of the defaults.
func (s *SettingsService) PipelineConfig(mode domain.Mode) domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig(mode)

	cfg.SegmentDuration = s.getDurationMS(keySegmentDurationMS, cfg.SegmentDuration)
	cfg.SegmentOverlap = s.getDurationMS(keySegmentOverlapMS, cfg.SegmentOverlap)
	cfg.MaxBatchSize = s.getInt(keyMaxBatchSize, cfg.MaxBatchSize)
	cfg.MaxWait = s.getDurationMS(keyMaxWaitMS, cfg.MaxWait)
	cfg.MaxInFlight = s.getInt(keyMaxInFlight, cfg.MaxInFlight)
	cfg.EngineConcurrency = s.getInt(keyEngineConcurrency, cfg.EngineConcurrency)
	cfg.MaxRetries = s.getInt(keyMaxRetries, cfg.MaxRetries)
	cfg.RetryBackoff = s.getDurationMS(keyRetryBackoffMS, cfg.RetryBackoff)
	cfg.SubmitRate = s.getFloat(keySubmitRate, cfg.SubmitRate)
	cfg.QueueDepth = s.getInt(keyQueueDepth, cfg.QueueDepth)
	cfg.StallTimeout = s.getDurationMS(keyStallTimeoutMS, cfg.StallTimeout)
	cfg.FailureWindow = s.getInt(keyFailureWindow, cfg.FailureWindow)
	cfg.FailureRateLimit = s.getFloat(keyFailureRateLimit, cfg.FailureRateLimit)
	if v := s.configStore.GetString(keyGapPolicy); v != "" {
		cfg.GapPolicy = domain.GapPolicy(v)
	}

	return cfg
}

// EngineKind returns the configured engine implementation.
func (s *SettingsService) EngineKind() string {
	if v := s.configStore.GetString(keyEngineKind); v != "" {
		return v
	}
	return EngineKindLoopback
}

// EngineURL returns the HTTP engine base URL, empty for the default.
func (s *SettingsService) EngineURL() string {
	return s.configStore.GetString(keyEngineURL)
}

// EngineAPIKey returns the HTTP engine API key, empty for none.
func (s *SettingsService) EngineAPIKey() string {
	return s.configStore.GetString(keyEngineAPIKey)
}

// EngineMaxBatch returns the engine batch cap, zero for the default.
func (s *SettingsService) EngineMaxBatch() int {
	return s.configStore.GetInt(keyEngineBatch)
}

// FrameRate returns the output video frame rate, zero for the default.
func (s *SettingsService) FrameRate() float64 {
	return s.configStore.GetFloat64(keyFrameRate)
}

// OutputDir returns where generated output files land.
func (s *SettingsService) OutputDir() string {
	return s.getDir(keyOutputDir, "out")
}

// DataDir returns where the job database lives.
func (s *SettingsService) DataDir() string {
	return s.getDir(keyDataDir, "data")
}

// SpoolDir returns the watched intake directory.
func (s *SettingsService) SpoolDir() string {
	return s.getDir(keySpoolDir, "spool")
}

// WatchPortrait returns the portrait paired with spooled audio files.
func (s *SettingsService) WatchPortrait() string {
	return s.configStore.GetString(keySpoolPortrait)
}

// WatchSettle returns how long a spooled file must sit unchanged before
// it is submitted.
func (s *SettingsService) WatchSettle() time.Duration {
	return s.getDurationMS(keySpoolSettle, 2*time.Second)
}

// getDir resolves a directory key, defaulting under ~/.talksync.
func (s *SettingsService) getDir(key, fallback string) string {
	if v := s.configStore.GetString(key); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, ".talksync", fallback)
}

// getDurationMS reads a millisecond-valued key.
func (s *SettingsService) getDurationMS(key string, fallback time.Duration) time.Duration {
	if v := s.configStore.GetInt(key); v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return fallback
}

// getInt reads an integer key.
func (s *SettingsService) getInt(key string, fallback int) int {
	if v := s.configStore.GetInt(key); v > 0 {
		return v
	}
	return fallback
}

// getFloat reads a float key.
func (s *SettingsService) getFloat(key string, fallback float64) float64 {
	if v, ok := s.configStore.Get(key); ok {
		switch f := v.(type) {
		case float64:
			return f
		case int64:
			return float64(f)
		case int:
			return float64(f)
		}
	}
	return fallback
}

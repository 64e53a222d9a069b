package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viseme-labs/talksync/internal/adapters/driven/storage/memory"
	"github.com/viseme-labs/talksync/internal/core/domain"
)

func TestSettingsService_PipelineConfig_Defaults(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore())

	assert.Equal(t, domain.DefaultPipelineConfig(domain.ModeOffline), svc.PipelineConfig(domain.ModeOffline))
	assert.Equal(t, domain.DefaultPipelineConfig(domain.ModeOnline), svc.PipelineConfig(domain.ModeOnline))
}

func TestSettingsService_PipelineConfig_Overrides(t *testing.T) {
	store := memory.NewConfigStore()
	require.NoError(t, store.Set("pipeline.segment_duration_ms", 320))
	require.NoError(t, store.Set("pipeline.segment_overlap_ms", 80))
	require.NoError(t, store.Set("pipeline.max_batch_size", 16))
	require.NoError(t, store.Set("pipeline.max_in_flight", 4))
	require.NoError(t, store.Set("pipeline.submit_rate", 12.5))
	require.NoError(t, store.Set("pipeline.stall_timeout_ms", 5000))
	require.NoError(t, store.Set("pipeline.gap_policy", "substitute"))

	svc := NewSettingsService(store)
	cfg := svc.PipelineConfig(domain.ModeOffline)

	assert.Equal(t, 320*time.Millisecond, cfg.SegmentDuration)
	assert.Equal(t, 80*time.Millisecond, cfg.SegmentOverlap)
	assert.Equal(t, 16, cfg.MaxBatchSize)
	assert.Equal(t, 4, cfg.MaxInFlight)
	assert.Equal(t, 12.5, cfg.SubmitRate)
	assert.Equal(t, 5*time.Second, cfg.StallTimeout)
	assert.Equal(t, domain.GapPolicySubstitute, cfg.GapPolicy)

	// Untouched knobs keep the mode defaults.
	defaults := domain.DefaultPipelineConfig(domain.ModeOffline)
	assert.Equal(t, defaults.MaxRetries, cfg.MaxRetries)
	assert.Equal(t, defaults.QueueDepth, cfg.QueueDepth)
	assert.Equal(t, defaults.FailureRateLimit, cfg.FailureRateLimit)
}

func TestSettingsService_PipelineConfig_IntegerRate(t *testing.T) {
	// TOML round-trips whole floats as integers; the rate still reads.
	store := memory.NewConfigStore()
	require.NoError(t, store.Set("pipeline.submit_rate", 10))

	svc := NewSettingsService(store)
	assert.Equal(t, 10.0, svc.PipelineConfig(domain.ModeOnline).SubmitRate)
}

func TestSettingsService_Engine(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	// Defaults.
	assert.Equal(t, EngineKindLoopback, svc.EngineKind())
	assert.Empty(t, svc.EngineURL())
	assert.Empty(t, svc.EngineAPIKey())
	assert.Zero(t, svc.EngineMaxBatch())

	require.NoError(t, store.Set("engine.kind", EngineKindHTTP))
	require.NoError(t, store.Set("engine.url", "http://gpu-1:9090"))
	require.NoError(t, store.Set("engine.api_key", "secret"))
	require.NoError(t, store.Set("engine.max_batch", 16))

	assert.Equal(t, EngineKindHTTP, svc.EngineKind())
	assert.Equal(t, "http://gpu-1:9090", svc.EngineURL())
	assert.Equal(t, "secret", svc.EngineAPIKey())
	assert.Equal(t, 16, svc.EngineMaxBatch())
}

func TestSettingsService_Paths(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	// Defaults land under the home directory.
	assert.Contains(t, svc.OutputDir(), ".talksync")
	assert.Equal(t, "out", filepath.Base(svc.OutputDir()))
	assert.Equal(t, "data", filepath.Base(svc.DataDir()))
	assert.Equal(t, "spool", filepath.Base(svc.SpoolDir()))

	require.NoError(t, store.Set("paths.output_dir", "/srv/render/out"))
	require.NoError(t, store.Set("watch.spool_dir", "/srv/render/in"))

	assert.Equal(t, "/srv/render/out", svc.OutputDir())
	assert.Equal(t, "/srv/render/in", svc.SpoolDir())
}

func TestSettingsService_Watch(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store)

	assert.Empty(t, svc.WatchPortrait())
	assert.Equal(t, 2*time.Second, svc.WatchSettle())

	require.NoError(t, store.Set("watch.portrait", "/assets/avatar.png"))
	require.NoError(t, store.Set("watch.settle_ms", 500))

	assert.Equal(t, "/assets/avatar.png", svc.WatchPortrait())
	assert.Equal(t, 500*time.Millisecond, svc.WatchSettle())
}

// Package loopback provides a synthetic in-process inference engine.
// It renders deterministic frames derived from the input tensors, so
// development runs and tests work without a GPU worker. It mirrors the
// HTTP engine the way the memory stores mirror the SQLite one.
package loopback

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.InferenceEngine = (*Engine)(nil)

// Default configuration values.
const (
	DefaultMaxBatch = 8
	DefaultWidth    = 256
	DefaultHeight   = 256
)

// Config holds configuration for the loopback engine.
type Config struct {
	// MaxBatch is the largest batch Infer accepts (default: 8).
	MaxBatch int

	// Latency is the simulated per-call engine latency.
	Latency time.Duration

	// Jitter adds up to this much extra random latency per call.
	Jitter time.Duration

	// Seed drives the jitter and failure randomness. A fixed seed
	// makes the engine fully deterministic.
	Seed int64

	// FailFirst makes the first N calls fail transiently, for
	// exercising the scheduler's retry path.
	FailFirst int
}

// Engine is a deterministic synthetic inference engine.
type Engine struct {
	maxBatch int
	latency  time.Duration
	jitter   time.Duration

	mu        sync.Mutex
	rng       *rand.Rand
	failFirst int
	calls     int
	closed    bool
}

// New creates a loopback engine.
func New(cfg Config) *Engine {
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	return &Engine{
		maxBatch:  cfg.MaxBatch,
		latency:   cfg.Latency,
		jitter:    cfg.Jitter,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		failFirst: cfg.FailFirst,
	}
}

// Name returns the engine implementation identifier.
func (e *Engine) Name() string {
	return "loopback"
}

// MaxBatchSize returns the largest batch Infer accepts.
func (e *Engine) MaxBatchSize() int {
	return e.maxBatch
}

// Infer renders one batch synthetically. The payload for each segment is
// a fixed-size block derived from the segment index and a checksum of
// its tensor, so identical inputs always render identical frames.
func (e *Engine) Infer(ctx context.Context, batch domain.FeatureBatch) (map[int64]domain.OutputFrame, error) {
	if batch.Size() > e.maxBatch {
		return nil, &domain.EngineError{
			Op:  "infer",
			Err: fmt.Errorf("batch size %d exceeds maximum %d", batch.Size(), e.maxBatch),
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, &domain.EngineError{Op: "infer", Err: fmt.Errorf("engine closed")}
	}
	e.calls++
	fail := e.calls <= e.failFirst
	delay := e.latency
	if e.jitter > 0 {
		delay += time.Duration(e.rng.Int63n(int64(e.jitter)))
	}
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if fail {
		return nil, &domain.EngineError{
			Op:        "infer",
			Transient: true,
			Err:       fmt.Errorf("simulated transient failure"),
		}
	}

	results := make(map[int64]domain.OutputFrame, batch.Size())
	for _, item := range batch.Items {
		results[item.Index] = renderFrame(item)
	}
	return results, nil
}

// renderFrame produces the deterministic payload for one segment.
func renderFrame(item domain.BatchItem) domain.OutputFrame {
	width, height := item.Visual.Width, item.Visual.Height
	if width == 0 || height == 0 {
		width, height = DefaultWidth, DefaultHeight
	}

	var sum float64
	for _, v := range item.Tensor.Data {
		sum += math.Abs(float64(v))
	}

	payload := make([]byte, 0, 24)
	payload = binary.LittleEndian.AppendUint64(payload, uint64(item.Index))
	payload = binary.LittleEndian.AppendUint64(payload, math.Float64bits(sum))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(item.Tensor.Data)))
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(item.Visual.Payload)))

	return domain.OutputFrame{
		Payload: payload,
		Width:   width,
		Height:  height,
	}
}

// Ping checks that the engine is usable.
func (e *Engine) Ping(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return domain.ErrEngineUnavailable
	}
	return nil
}

// Close releases resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

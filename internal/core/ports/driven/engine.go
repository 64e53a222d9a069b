package driven

import (
	"context"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// InferenceEngine renders feature batches into output frames.
// Implementations wrap a GPU worker (HTTP) or an in-process stand-in.
type InferenceEngine interface {
	// Name returns the engine implementation identifier.
	Name() string

	// MaxBatchSize returns the largest batch Infer accepts.
	MaxBatchSize() int

	// Infer renders one batch. The result maps every submitted segment
	// index to its rendered frame; a missing index means the engine
	// silently dropped it and the caller must treat it as failed.
	// Failures are reported as *domain.EngineError so the scheduler can
	// distinguish transient from permanent ones.
	Infer(ctx context.Context, batch domain.FeatureBatch) (map[int64]domain.OutputFrame, error)

	// Ping checks that the engine is reachable and ready.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Reorder restores strict index order over out-of-order completions.
// A single consumer goroutine owns the buffered frames and the
// watermark, so no locking is needed.
type Reorder struct {
	stallTimeout time.Duration
	stats        *Stats

	// draining reports that the pipeline is shutting down on purpose,
	// in which case a quiet watermark is expected, not a stall.
	draining func() bool
}

// NewReorder creates a reorder buffer.
func NewReorder(cfg domain.PipelineConfig, stats *Stats, draining func() bool) *Reorder {
	if draining == nil {
		draining = func() bool { return false }
	}
	return &Reorder{
		stallTimeout: cfg.StallTimeout,
		stats:        stats,
		draining:     draining,
	}
}

// Run consumes completions until the input closes, emitting frames in
// strictly increasing index order with no gaps. Frames still buffered
// behind a missing index when the input closes are discarded; that only
// happens when the job was cancelled or aborted.
func (r *Reorder) Run(ctx context.Context, in <-chan domain.Frame, out chan<- domain.Frame) error {
	var next int64
	buffered := make(map[int64]domain.Frame)

	timer := time.NewTimer(r.stallTimeout)
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.stallTimeout)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-in:
			if !ok {
				if len(buffered) > 0 {
					logger.Debug("Reorder: discarding %d frames buffered past watermark %d", len(buffered), next)
				}
				return nil
			}

			if f.Index < next {
				logger.Warn("Reorder: dropping duplicate frame %d (watermark %d)", f.Index, next)
				continue
			}
			if _, dup := buffered[f.Index]; dup {
				logger.Warn("Reorder: dropping duplicate frame %d", f.Index)
				continue
			}
			buffered[f.Index] = f

			advanced := false
			for {
				g, ok := buffered[next]
				if !ok {
					break
				}
				delete(buffered, next)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case out <- g:
				}
				next++
				advanced = true
			}
			if advanced {
				r.stats.setWatermark(next)
				resetTimer()
			}

		case <-timer.C:
			outstanding := len(buffered) > 0 || r.stats.InFlightNow() > 0
			if !outstanding || r.draining() {
				timer.Reset(r.stallTimeout)
				continue
			}
			return fmt.Errorf("%w: watermark %d held for %s with %d frames buffered",
				domain.ErrStallDetected, next, r.stallTimeout, len(buffered))
		}
	}
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Assembler muxes ordered frames into the sink and resolves error
// markers according to the gap policy. It also tracks the per-segment
// failure rate and aborts the job when it crosses the configured limit.
type Assembler struct {
	sink   driven.FrameSink
	header domain.StreamHeader
	mode   domain.Mode
	policy domain.GapPolicy
	stats  *Stats

	windowSize int
	limit      float64

	// outcomes is a ring of recent results, true meaning failed.
	outcomes []bool
	outPos   int
	outFails int

	lastGood *domain.OutputFrame
}

// NewAssembler creates an assembler for one job.
func NewAssembler(sink driven.FrameSink, header domain.StreamHeader, mode domain.Mode, cfg domain.PipelineConfig, stats *Stats) *Assembler {
	return &Assembler{
		sink:       sink,
		header:     header,
		mode:       mode,
		policy:     cfg.EffectiveGapPolicy(mode),
		stats:      stats,
		windowSize: cfg.FailureWindow,
		limit:      cfg.FailureRateLimit,
		outcomes:   make([]bool, cfg.FailureWindow),
	}
}

// Run writes the stream header, then consumes ordered frames until the
// input closes. Sink write failures and a tripped failure-rate limit
// are fatal.
func (a *Assembler) Run(ctx context.Context, in <-chan domain.Frame) error {
	if err := a.sink.WriteHeader(ctx, a.header); err != nil {
		return fmt.Errorf("%w: header: %v", domain.ErrOutput, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case f, ok := <-in:
			if !ok {
				if err := a.sink.Flush(); err != nil {
					return fmt.Errorf("%w: flush: %v", domain.ErrOutput, err)
				}
				return nil
			}
			if err := a.writeFrame(ctx, f); err != nil {
				return err
			}
		}
	}
}

// writeFrame muxes one frame, resolving markers per the gap policy.
func (a *Assembler) writeFrame(ctx context.Context, f domain.Frame) error {
	failed := f.IsMarker()

	if failed {
		a.stats.addSegmentError()
		logger.Debug("Assembler: segment %d failed: %v", f.Index, f.Err)

		if a.policy == domain.GapPolicySubstitute && a.lastGood != nil {
			sub := f
			sub.Err = nil
			sub.Visual = *a.lastGood
			sub.Substituted = true
			f = sub
			a.stats.addSubstituted()
		}
	} else {
		visual := f.Visual
		a.lastGood = &visual
	}

	if err := a.sink.WriteFrame(ctx, f); err != nil {
		return fmt.Errorf("%w: frame %d: %v", domain.ErrOutput, f.Index, err)
	}
	a.stats.addFrame()

	// Online consumers read as we write, so push every frame through.
	if a.mode == domain.ModeOnline {
		if err := a.sink.Flush(); err != nil {
			return fmt.Errorf("%w: flush: %v", domain.ErrOutput, err)
		}
	}

	if a.recordOutcome(failed) {
		return fmt.Errorf("%w: %d of last %d segments failed",
			domain.ErrFailureRate, a.outFails, a.windowSize)
	}
	return nil
}

// recordOutcome updates the sliding failure window and reports whether
// the failure-rate limit tripped. The limit is measured against the
// full window size, so short streams cannot trip it spuriously.
func (a *Assembler) recordOutcome(failed bool) bool {
	if a.outcomes[a.outPos] {
		a.outFails--
	}
	a.outcomes[a.outPos] = failed
	if failed {
		a.outFails++
	}
	a.outPos = (a.outPos + 1) % a.windowSize

	return float64(a.outFails) > a.limit*float64(a.windowSize)
}

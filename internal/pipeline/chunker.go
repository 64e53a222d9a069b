package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Chunker slices the audio feed into aligned segments. Each segment owns
// a fixed span of the stream and carries the previous segment's tail as
// extractor context, so indices stay gap-free while windows overlap.
type Chunker struct {
	source driven.MediaSource
	stats  *Stats

	segDur  time.Duration
	overlap time.Duration

	spanSamples    int
	contextSamples int
	framesPerSpan  int
	sampleRate     int
}

// NewChunker validates segment alignment against the source properties
// and returns a chunker ready to run.
func NewChunker(source driven.MediaSource, cfg domain.PipelineConfig, stats *Stats) (*Chunker, error) {
	props := source.Properties()
	if props.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", domain.ErrInvalidInput, props.SampleRate)
	}
	if props.FrameRate <= 0 {
		return nil, fmt.Errorf("%w: frame rate %g", domain.ErrInvalidInput, props.FrameRate)
	}

	spanSamples, frames, err := alignSpan(props, cfg.SegmentDuration)
	if err != nil {
		return nil, err
	}
	contextSamples := int(math.Round(cfg.SegmentOverlap.Seconds() * float64(props.SampleRate)))

	return &Chunker{
		source:         source,
		stats:          stats,
		segDur:         cfg.SegmentDuration,
		overlap:        cfg.SegmentOverlap,
		spanSamples:    spanSamples,
		contextSamples: contextSamples,
		framesPerSpan:  frames,
		sampleRate:     props.SampleRate,
	}, nil
}

// alignSpan computes the samples and output frames covered by one segment
// span. The span must cover a whole number of frames within one audio
// sample, otherwise audio and video drift apart over the stream.
func alignSpan(props domain.MediaProperties, span time.Duration) (samples, frames int, err error) {
	exactSamples := span.Seconds() * float64(props.SampleRate)
	samples = int(math.Round(exactSamples))
	if samples < 1 {
		return 0, 0, fmt.Errorf("%w: segment duration %s too short for %d Hz", domain.ErrInvalidInput, span, props.SampleRate)
	}
	if math.Abs(exactSamples-float64(samples)) > 0.5 {
		return 0, 0, fmt.Errorf("%w: segment duration %s does not align with sample rate %d", domain.ErrInvalidInput, span, props.SampleRate)
	}

	exactFrames := span.Seconds() * props.FrameRate
	frames = int(math.Round(exactFrames))
	if frames < 1 {
		return 0, 0, fmt.Errorf("%w: segment duration %s shorter than one frame at %g fps", domain.ErrInvalidInput, span, props.FrameRate)
	}

	// One-sample tolerance between the frame span and the audio window.
	frameSpanSamples := float64(frames) / props.FrameRate * float64(props.SampleRate)
	if math.Abs(frameSpanSamples-float64(samples)) > 1 {
		return 0, 0, fmt.Errorf("%w: segment duration %s covers %.2f frames at %g fps", domain.ErrInvalidInput, span, exactFrames, props.FrameRate)
	}

	return samples, frames, nil
}

// Run reads the source until exhaustion, sending segments downstream.
// A clean end of input returns nil; a mid-stream read failure returns a
// source error, which aborts the job.
func (c *Chunker) Run(ctx context.Context, out chan<- domain.Segment) error {
	var (
		index int64
		held  *domain.Segment
		carry []float32
	)

	for {
		fresh, eof, err := c.readSpan(ctx)
		if err != nil {
			return err
		}

		if len(fresh) > 0 {
			seg, err := c.buildSegment(ctx, index, carry, fresh)
			if err != nil {
				return err
			}
			index++

			// Hold one segment back so the final one can be marked Last.
			if held != nil {
				if err := c.send(ctx, out, *held); err != nil {
					return err
				}
			}
			held = &seg

			carry = tail(fresh, c.contextSamples)
		}

		if eof {
			if held != nil {
				held.Last = true
				if err := c.send(ctx, out, *held); err != nil {
					return err
				}
			}
			logger.Debug("Chunker: input exhausted after %d segments", index)
			return nil
		}
	}
}

// readSpan reads up to one span of fresh samples from the source.
func (c *Chunker) readSpan(ctx context.Context) (fresh []float32, eof bool, err error) {
	buf := make([]float32, c.spanSamples)
	filled := 0

	for filled < len(buf) {
		n, err := c.source.ReadAudio(ctx, buf[filled:])
		filled += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				return buf[:filled], true, nil
			}
			if ctx.Err() != nil {
				return nil, false, ctx.Err()
			}
			return nil, false, fmt.Errorf("%w: %v", domain.ErrSource, err)
		}
		if n == 0 {
			return nil, false, fmt.Errorf("%w: source returned no samples", domain.ErrSource)
		}
	}
	return buf, false, nil
}

// buildSegment assembles one segment from carried context and fresh samples.
func (c *Chunker) buildSegment(ctx context.Context, index int64, carry, fresh []float32) (domain.Segment, error) {
	samples := make([]float32, 0, len(carry)+len(fresh))
	samples = append(samples, carry...)
	samples = append(samples, fresh...)

	dur := c.segDur
	frames := c.framesPerSpan
	if len(fresh) < c.spanSamples {
		// Final partial span: cover the remaining audio, rounding the
		// frame count up so no samples are left without a frame.
		dur = time.Duration(float64(len(fresh)) / float64(c.sampleRate) * float64(time.Second))
		frames = int(math.Ceil(float64(len(fresh)) / float64(c.spanSamples) * float64(c.framesPerSpan)))
		if frames < 1 {
			frames = 1
		}
	}

	visual, err := c.source.ReferenceFrame(ctx, index*int64(c.framesPerSpan))
	if err != nil {
		if ctx.Err() != nil {
			return domain.Segment{}, ctx.Err()
		}
		return domain.Segment{}, fmt.Errorf("%w: reference frame %d: %v", domain.ErrSource, index, err)
	}

	seg := domain.Segment{
		Index:      index,
		Samples:    samples,
		Context:    len(carry),
		Start:      time.Duration(index) * c.segDur,
		Duration:   dur,
		FrameCount: frames,
	}
	if visual != nil {
		seg.Visual = *visual
	}

	c.stats.addSegment()
	return seg, nil
}

// tail returns the last n samples of buf, or a copy of buf when shorter.
func tail(buf []float32, n int) []float32 {
	if n <= 0 {
		return nil
	}
	if len(buf) <= n {
		out := make([]float32, len(buf))
		copy(out, buf)
		return out
	}
	out := make([]float32, n)
	copy(out, buf[len(buf)-n:])
	return out
}

// send delivers a segment downstream, honouring cancellation.
func (c *Chunker) send(ctx context.Context, out chan<- domain.Segment, seg domain.Segment) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- seg:
		return nil
	}
}

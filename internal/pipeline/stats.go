package pipeline

import (
	"sync/atomic"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// Stats tracks live pipeline counters. All methods are safe for
// concurrent use; Snapshot returns a consistent-enough view for
// status reporting.
type Stats struct {
	segmentsIn  atomic.Int64
	batches     atomic.Int64
	retries     atomic.Int64
	inFlight    atomic.Int64
	watermark   atomic.Int64
	frames      atomic.Int64
	segErrors   atomic.Int64
	substituted atomic.Int64
}

// NewStats creates a zeroed counter set.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) addSegment() { s.segmentsIn.Add(1) }

func (s *Stats) addBatch() { s.batches.Add(1) }

func (s *Stats) addRetry() { s.retries.Add(1) }

func (s *Stats) enterFlight() { s.inFlight.Add(1) }

func (s *Stats) leaveFlight() { s.inFlight.Add(-1) }

func (s *Stats) setWatermark(w int64) { s.watermark.Store(w) }

func (s *Stats) addFrame() { s.frames.Add(1) }

func (s *Stats) addSegmentError() { s.segErrors.Add(1) }

func (s *Stats) addSubstituted() { s.substituted.Add(1) }

// InFlightNow returns the current number of unresolved batches.
func (s *Stats) InFlightNow() int {
	return int(s.inFlight.Load())
}

// FramesEmitted returns frames written so far, markers included.
func (s *Stats) FramesEmitted() int64 {
	return s.frames.Load()
}

// SegmentErrors returns error markers emitted so far.
func (s *Stats) SegmentErrors() int64 {
	return s.segErrors.Load()
}

// Snapshot returns a point-in-time copy of all counters.
func (s *Stats) Snapshot() domain.PipelineStats {
	return domain.PipelineStats{
		SegmentsIn:        s.segmentsIn.Load(),
		BatchesDispatched: s.batches.Load(),
		Retries:           s.retries.Load(),
		InFlight:          int(s.inFlight.Load()),
		Watermark:         s.watermark.Load(),
		FramesEmitted:     s.frames.Load(),
		SegmentErrors:     s.segErrors.Load(),
		Substituted:       s.substituted.Load(),
	}
}

package domain

// PipelineStats is a point-in-time snapshot of a running pipeline's
// counters. All counts are cumulative for the job unless noted.
type PipelineStats struct {
	// SegmentsIn counts segments produced by the chunker.
	SegmentsIn int64

	// BatchesDispatched counts engine calls started, retries excluded.
	BatchesDispatched int64

	// Retries counts engine call retry attempts.
	Retries int64

	// InFlight is the current number of unresolved dispatched batches.
	InFlight int

	// Watermark is the next segment index the reorder buffer expects.
	Watermark int64

	// FramesEmitted counts frames written to the sink, markers included.
	FramesEmitted int64

	// SegmentErrors counts per-segment error markers emitted.
	SegmentErrors int64

	// Substituted counts frames filled via the substitution policy.
	Substituted int64
}

// Package pipeline implements the segment processing pipeline: chunking,
// feature extraction, batched inference scheduling, reordering and
// output assembly.
//
// Stages run as goroutines connected by bounded channels:
//
//	Chunker -> Extractor -> Scheduler -> Reorder -> Assembler -> FrameSink
//
// The scheduler dispatches batches concurrently, so completions arrive
// out of order; the reorder buffer restores strict index order before
// assembly. Every segment produced by the chunker surfaces exactly once
// downstream, either as a rendered frame or as an error marker.
//
// Two cancellation scopes cover the mode split: producing stages stop
// on the first cancel, while dispatched engine work is abandoned in
// online mode and drained in offline mode.
package pipeline

package domain

// BatchItem pairs a segment index with its extracted tensor.
type BatchItem struct {
	// Index is the segment the tensor was extracted from.
	Index int64

	// Tensor is the extracted feature representation.
	Tensor FeatureTensor

	// Visual is the conditioning reference forwarded to the engine.
	Visual VisualRef
}

// FeatureBatch groups extracted segments for a single engine call.
// Items are ordered by ascending index; indices within a batch are
// unique but need not be contiguous.
type FeatureBatch struct {
	// JobID identifies the owning job.
	JobID string

	// Items are the batched segments, at most the engine's max batch size.
	Items []BatchItem
}

// Size returns the number of segments in the batch.
func (b FeatureBatch) Size() int {
	return len(b.Items)
}

// Indices returns the segment indices in batch order.
func (b FeatureBatch) Indices() []int64 {
	out := make([]int64, len(b.Items))
	for i, item := range b.Items {
		out[i] = item.Index
	}
	return out
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFeatureTensor_Len tests shape element counting
func TestFeatureTensor_Len(t *testing.T) {
	assert.Equal(t, 0, FeatureTensor{}.Len())
	assert.Equal(t, 12, FeatureTensor{Shape: []int{3, 4}}.Len())
	assert.Equal(t, 5, FeatureTensor{Shape: []int{5}}.Len())
}

// TestFeatureBatch_Indices tests index listing in batch order
func TestFeatureBatch_Indices(t *testing.T) {
	batch := FeatureBatch{
		JobID: "job-1",
		Items: []BatchItem{
			{Index: 3},
			{Index: 4},
			{Index: 6},
		},
	}

	assert.Equal(t, 3, batch.Size())
	assert.Equal(t, []int64{3, 4, 6}, batch.Indices())
}

// TestFrame_IsMarker tests marker detection
func TestFrame_IsMarker(t *testing.T) {
	ok := Frame{Index: 1, Visual: OutputFrame{Payload: []byte{1}}}
	marker := Frame{Index: 2, Err: ErrExtraction}

	assert.False(t, ok.IsMarker())
	assert.True(t, marker.IsMarker())
}

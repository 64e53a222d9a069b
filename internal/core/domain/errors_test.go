package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEngineError_Transient tests retry classification
func TestEngineError_Transient(t *testing.T) {
	transient := &EngineError{Op: "infer", Transient: true, Err: errors.New("timeout")}
	permanent := &EngineError{Op: "infer", Transient: false, Err: errors.New("bad shape")}

	assert.True(t, IsTransientEngineError(transient))
	assert.False(t, IsTransientEngineError(permanent))
	assert.False(t, IsTransientEngineError(errors.New("plain")))
	assert.False(t, IsTransientEngineError(nil))
}

// TestEngineError_Wrapped tests classification through wrapping
func TestEngineError_Wrapped(t *testing.T) {
	inner := &EngineError{Op: "infer", Transient: true, Err: errors.New("overloaded")}
	wrapped := fmt.Errorf("dispatch batch: %w", inner)

	assert.True(t, IsTransientEngineError(wrapped))

	var ee *EngineError
	assert.True(t, errors.As(wrapped, &ee))
	assert.Equal(t, "infer", ee.Op)
}

// TestSegmentError_Unwrap tests sentinel matching through segment errors
func TestSegmentError_Unwrap(t *testing.T) {
	se := &SegmentError{Index: 7, Stage: "extract", Err: fmt.Errorf("%w: nan in window", ErrExtraction)}

	assert.ErrorIs(t, se, ErrExtraction)
	assert.Contains(t, se.Error(), "segment 7")
	assert.Contains(t, se.Error(), "extract")
}

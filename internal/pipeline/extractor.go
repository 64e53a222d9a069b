package pipeline

import (
	"context"
	"fmt"
	"math"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Extractor turns a segment's audio window into the tensor the engine
// consumes. Implementations must be pure: no retained state between
// calls, so segments can be extracted in any order.
type Extractor interface {
	// Name returns the extractor identifier.
	Name() string

	// Extract computes the feature tensor for one segment.
	Extract(ctx context.Context, seg domain.Segment) (domain.FeatureTensor, error)
}

// Ensure SpectralExtractor implements the interface.
var _ Extractor = (*SpectralExtractor)(nil)

// FeatureBins is the per-frame feature dimension produced by the
// spectral extractor: RMS energy, zero crossings and 14 band magnitudes.
const FeatureBins = 16

// bandFrequencies are the analysis band centres in Hz, spaced roughly
// logarithmically over the speech range.
var bandFrequencies = [14]float64{
	80, 120, 180, 260, 380, 540, 760, 1060, 1480, 2060, 2840, 3900, 5300, 7200,
}

// SpectralExtractor computes per-frame energy and band magnitude
// features from the raw audio window.
type SpectralExtractor struct {
	sampleRate int
}

// NewSpectralExtractor creates an extractor for the given sample rate.
func NewSpectralExtractor(sampleRate int) *SpectralExtractor {
	return &SpectralExtractor{sampleRate: sampleRate}
}

// Name returns the extractor identifier.
func (e *SpectralExtractor) Name() string {
	return "spectral"
}

// Extract computes a [FrameCount x FeatureBins] tensor over the owned
// span, using the carried context to stabilise the first frame windows.
func (e *SpectralExtractor) Extract(_ context.Context, seg domain.Segment) (domain.FeatureTensor, error) {
	if len(seg.Samples) == 0 {
		return domain.FeatureTensor{}, fmt.Errorf("%w: empty window", domain.ErrExtraction)
	}
	if seg.FrameCount < 1 {
		return domain.FeatureTensor{}, fmt.Errorf("%w: segment %d has no frames", domain.ErrExtraction, seg.Index)
	}
	for i, s := range seg.Samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return domain.FeatureTensor{}, fmt.Errorf("%w: non-finite sample at offset %d", domain.ErrExtraction, i)
		}
	}

	owned := seg.OwnedAudio()
	if len(owned) == 0 {
		return domain.FeatureTensor{}, fmt.Errorf("%w: segment %d owns no samples", domain.ErrExtraction, seg.Index)
	}

	data := make([]float32, 0, seg.FrameCount*FeatureBins)
	window := len(owned) / seg.FrameCount
	if window < 1 {
		window = 1
	}

	for f := 0; f < seg.FrameCount; f++ {
		lo := f * window
		hi := lo + window
		if f == seg.FrameCount-1 {
			hi = len(owned)
		}
		if lo >= len(owned) {
			lo = len(owned) - 1
			hi = len(owned)
		}
		data = append(data, frameFeatures(owned[lo:hi], e.sampleRate)...)
	}

	return domain.FeatureTensor{
		Shape: []int{seg.FrameCount, FeatureBins},
		Data:  data,
	}, nil
}

// frameFeatures computes the feature vector for one frame window.
func frameFeatures(w []float32, sampleRate int) []float32 {
	out := make([]float32, FeatureBins)
	if len(w) == 0 {
		return out
	}

	var sumSq float64
	crossings := 0
	for i, s := range w {
		sumSq += float64(s) * float64(s)
		if i > 0 && (s >= 0) != (w[i-1] >= 0) {
			crossings++
		}
	}
	out[0] = float32(math.Sqrt(sumSq / float64(len(w))))
	out[1] = float32(crossings) / float32(len(w))

	for b, freq := range bandFrequencies {
		out[2+b] = float32(goertzel(w, freq, sampleRate))
	}
	return out
}

// goertzel computes the normalised magnitude of one frequency component.
func goertzel(w []float32, freq float64, sampleRate int) float64 {
	if sampleRate <= 0 || freq >= float64(sampleRate)/2 {
		return 0
	}
	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, x := range w {
		s0 = float64(x) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power) / float64(len(w))
}

// extracted pairs a segment with its tensor, or with the extraction
// failure that will become the segment's error marker.
type extracted struct {
	seg    domain.Segment
	tensor domain.FeatureTensor
	err    error
}

// runExtractor pulls segments, extracts features and pushes the results
// downstream. Extraction failures are forwarded, not fatal.
func runExtractor(ctx context.Context, ex Extractor, in <-chan domain.Segment, out chan<- extracted) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case seg, ok := <-in:
			if !ok {
				return nil
			}

			tensor, err := ex.Extract(ctx, seg)
			if err != nil {
				logger.Debug("Extractor %s failed on segment %d: %v", ex.Name(), seg.Index, err)
			}

			item := extracted{seg: seg, tensor: tensor, err: err}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- item:
			}
		}
	}
}

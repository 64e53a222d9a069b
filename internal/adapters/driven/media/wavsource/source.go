// Package wavsource provides a MediaSource reading 16-bit PCM WAV audio
// paired with a still portrait image as the visual reference.
package wavsource

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg" // portrait dimension probing
	_ "image/png"  // portrait dimension probing
	"io"
	"os"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
)

// Ensure Source implements the interface.
var _ driven.MediaSource = (*Source)(nil)

// DefaultFrameRate is the output video frame rate when none is configured.
const DefaultFrameRate = 25.0

// pcmFormat is the WAVE format tag for uncompressed PCM.
const pcmFormat = 1

// Source reads mono float32 samples from a PCM WAV file and serves the
// same portrait for every reference frame.
type Source struct {
	f        *os.File
	props    domain.MediaProperties
	channels int
	remain   int64 // sample frames left in the data chunk
	portrait domain.VisualRef
	scratch  []byte
}

// Option configures a Source.
type Option func(*Source)

// WithFrameRate sets the output video frame rate.
func WithFrameRate(fps float64) Option {
	return func(s *Source) {
		if fps > 0 {
			s.props.FrameRate = fps
		}
	}
}

// Open opens the audio file and the portrait image.
func Open(audioPath, imagePath string, opts ...Option) (*Source, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSource, err)
	}

	sampleRate, channels, frames, err := readWAVHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	portrait, err := loadPortrait(imagePath)
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &Source{
		f: f,
		props: domain.MediaProperties{
			SampleRate: sampleRate,
			FrameRate:  DefaultFrameRate,
			Channels:   channels,
			Duration:   time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second)),
		},
		channels: channels,
		remain:   frames,
		portrait: *portrait,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// readWAVHeader parses the RIFF container up to the data chunk and
// leaves the file positioned at the first sample frame.
func readWAVHeader(f *os.File) (sampleRate, channels int, frames int64, err error) {
	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return 0, 0, 0, fmt.Errorf("%w: short RIFF header", domain.ErrUnsupportedMedia)
	}
	if !bytes.Equal(riff[0:4], []byte("RIFF")) || !bytes.Equal(riff[8:12], []byte("WAVE")) {
		return 0, 0, 0, fmt.Errorf("%w: not a WAVE file", domain.ErrUnsupportedMedia)
	}

	var (
		bitsPerSample int
		haveFmt       bool
	)

	// Walk chunks until the data chunk.
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(f, hdr[:]); err != nil {
			return 0, 0, 0, fmt.Errorf("%w: no data chunk", domain.ErrUnsupportedMedia)
		}
		chunkID := string(hdr[0:4])
		chunkLen := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch chunkID {
		case "fmt ":
			var fmtChunk [16]byte
			if chunkLen < 16 {
				return 0, 0, 0, fmt.Errorf("%w: short fmt chunk", domain.ErrUnsupportedMedia)
			}
			if _, err := io.ReadFull(f, fmtChunk[:]); err != nil {
				return 0, 0, 0, fmt.Errorf("%w: %v", domain.ErrUnsupportedMedia, err)
			}
			format := int(binary.LittleEndian.Uint16(fmtChunk[0:2]))
			channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))

			if format != pcmFormat || bitsPerSample != 16 {
				return 0, 0, 0, fmt.Errorf("%w: only 16-bit PCM WAV is supported", domain.ErrUnsupportedMedia)
			}
			if channels < 1 || sampleRate < 1 {
				return 0, 0, 0, fmt.Errorf("%w: malformed fmt chunk", domain.ErrUnsupportedMedia)
			}
			haveFmt = true

			// Skip any fmt extension bytes.
			if chunkLen > 16 {
				if _, err := f.Seek(chunkLen-16, io.SeekCurrent); err != nil {
					return 0, 0, 0, fmt.Errorf("%w: %v", domain.ErrSource, err)
				}
			}

		case "data":
			if !haveFmt {
				return 0, 0, 0, fmt.Errorf("%w: data chunk before fmt", domain.ErrUnsupportedMedia)
			}
			bytesPerFrame := int64(channels) * 2
			return sampleRate, channels, chunkLen / bytesPerFrame, nil

		default:
			// Chunks are word aligned.
			if chunkLen%2 == 1 {
				chunkLen++
			}
			if _, err := f.Seek(chunkLen, io.SeekCurrent); err != nil {
				return 0, 0, 0, fmt.Errorf("%w: %v", domain.ErrSource, err)
			}
		}
	}
}

// loadPortrait reads the portrait image and probes its dimensions.
// Formats the standard decoders do not cover keep zero dimensions; the
// engine works them out from the payload.
func loadPortrait(path string) (*domain.VisualRef, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSource, err)
	}

	ref := &domain.VisualRef{Payload: payload}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(payload)); err == nil {
		ref.Width = cfg.Width
		ref.Height = cfg.Height
	}
	return ref, nil
}

// Properties returns the sampling characteristics of the feed.
func (s *Source) Properties() domain.MediaProperties {
	return s.props
}

// ReadAudio reads up to len(buf) mono samples, downmixing multi-channel
// feeds by averaging. Returns io.EOF at a clean end of input.
func (s *Source) ReadAudio(ctx context.Context, buf []float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.remain <= 0 {
		return 0, io.EOF
	}

	want := int64(len(buf))
	if want > s.remain {
		want = s.remain
	}

	bytesPerFrame := s.channels * 2
	need := int(want) * bytesPerFrame
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	raw := s.scratch[:need]

	n, err := io.ReadFull(s.f, raw)
	frames := n / bytesPerFrame
	if frames == 0 {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			s.remain = 0
			return 0, io.EOF
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrSource, err)
	}

	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < s.channels; c++ {
			off := (i*s.channels + c) * 2
			sum += int32(int16(binary.LittleEndian.Uint16(raw[off : off+2])))
		}
		buf[i] = float32(sum/int32(s.channels)) / 32768
	}

	s.remain -= int64(frames)
	return frames, nil
}

// ReferenceFrame returns the still portrait for every frame index.
func (s *Source) ReferenceFrame(ctx context.Context, index int64) (*domain.VisualRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := s.portrait
	ref.FrameIndex = index
	return &ref, nil
}

// Close releases the audio file handle.
func (s *Source) Close() error {
	return s.f.Close()
}

// Ensure Opener implements the interface.
var _ driven.MediaOpener = (*Opener)(nil)

// Opener opens WAV sources for the controller.
type Opener struct {
	// FrameRate is the output video frame rate; zero selects the default.
	FrameRate float64
}

// OpenSource opens the driving audio and the visual reference.
func (o *Opener) OpenSource(_ context.Context, audioPath, imagePath string) (driven.MediaSource, error) {
	return Open(audioPath, imagePath, WithFrameRate(o.FrameRate))
}

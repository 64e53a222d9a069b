package wavsource

import (
	"bytes"
	"context"
	"encoding/binary"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// writeWAV writes a 16-bit PCM WAV file with the given interleaved samples.
func writeWAV(t *testing.T, path string, sampleRate, channels int, samples []int16) {
	t.Helper()

	dataLen := len(samples) * 2
	var buf bytes.Buffer
	le := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}

	buf.WriteString("RIFF")
	le(uint32(36 + dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1))
	le(uint16(channels))
	le(uint32(sampleRate))
	le(uint32(sampleRate * channels * 2))
	le(uint16(channels * 2))
	le(uint16(16))

	buf.WriteString("data")
	le(uint32(dataLen))
	for _, s := range samples {
		le(s)
	}

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
}

// writePNG writes a small portrait image.
func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func testFiles(t *testing.T, sampleRate, channels int, samples []int16) (string, string) {
	t.Helper()
	dir := t.TempDir()
	wav := filepath.Join(dir, "in.wav")
	img := filepath.Join(dir, "face.png")
	writeWAV(t, wav, sampleRate, channels, samples)
	writePNG(t, img, 32, 24)
	return wav, img
}

func TestOpen_Properties(t *testing.T) {
	wav, img := testFiles(t, 16000, 1, make([]int16, 16000))

	src, err := Open(wav, img, WithFrameRate(30))
	require.NoError(t, err)
	defer src.Close()

	props := src.Properties()
	assert.Equal(t, 16000, props.SampleRate)
	assert.Equal(t, 30.0, props.FrameRate)
	assert.Equal(t, 1, props.Channels)
	assert.Equal(t, "1s", props.Duration.String())
}

func TestSource_ReadAudio_Mono(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767}
	wav, img := testFiles(t, 8000, 1, samples)

	src, err := Open(wav, img)
	require.NoError(t, err)
	defer src.Close()

	buf := make([]float32, 8)
	n, err := src.ReadAudio(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	assert.InDelta(t, 0.0, buf[0], 1e-4)
	assert.InDelta(t, 0.5, buf[1], 1e-4)
	assert.InDelta(t, -0.5, buf[2], 1e-4)
	assert.InDelta(t, 1.0, buf[3], 1e-3)

	_, err = src.ReadAudio(context.Background(), buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSource_ReadAudio_StereoDownmix(t *testing.T) {
	// Two frames: (16384, 0) and (-16384, -16384).
	samples := []int16{16384, 0, -16384, -16384}
	wav, img := testFiles(t, 8000, 2, samples)

	src, err := Open(wav, img)
	require.NoError(t, err)
	defer src.Close()

	buf := make([]float32, 4)
	n, err := src.ReadAudio(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	assert.InDelta(t, 0.25, buf[0], 1e-4)
	assert.InDelta(t, -0.5, buf[1], 1e-4)
}

func TestSource_ReferenceFrame(t *testing.T) {
	wav, img := testFiles(t, 8000, 1, make([]int16, 16))

	src, err := Open(wav, img)
	require.NoError(t, err)
	defer src.Close()

	ref, err := src.ReferenceFrame(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), ref.FrameIndex)
	assert.Equal(t, 32, ref.Width)
	assert.Equal(t, 24, ref.Height)
	assert.NotEmpty(t, ref.Payload)

	// Still portrait: every index returns the same payload.
	ref2, err := src.ReferenceFrame(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, ref.Payload, ref2.Payload)
}

func TestOpen_RejectsNonPCM(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "in.wav")
	img := filepath.Join(dir, "face.png")
	writePNG(t, img, 8, 8)

	// Float WAV (format 3) is rejected.
	var buf bytes.Buffer
	le := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.WriteString("RIFFxxxxWAVE")
	buf.WriteString("fmt ")
	le(uint32(16))
	le(uint16(3))
	le(uint16(1))
	le(uint32(8000))
	le(uint32(32000))
	le(uint16(4))
	le(uint16(32))
	require.NoError(t, os.WriteFile(wav, buf.Bytes(), 0600))

	_, err := Open(wav, img)
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)
}

func TestOpen_RejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "in.wav")
	img := filepath.Join(dir, "face.png")
	writePNG(t, img, 8, 8)
	require.NoError(t, os.WriteFile(wav, []byte("not a wav at all"), 0600))

	_, err := Open(wav, img)
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)
}

func TestOpen_MissingPortrait(t *testing.T) {
	dir := t.TempDir()
	wav := filepath.Join(dir, "in.wav")
	writeWAV(t, wav, 8000, 1, make([]int16, 8))

	_, err := Open(wav, filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, domain.ErrSource)
}

func TestOpener_OpenSource(t *testing.T) {
	wav, img := testFiles(t, 16000, 1, make([]int16, 160))

	opener := &Opener{FrameRate: 24}
	src, err := opener.OpenSource(context.Background(), wav, img)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 24.0, src.Properties().FrameRate)
}

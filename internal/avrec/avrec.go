// Package avrec implements the TSAV record container: a length-prefixed
// binary stream interleaving rendered visual payloads with their PCM
// audio windows. Sinks write it append-only; a truncated tail never
// invalidates records already flushed.
//
// Layout: a 6-byte preamble (magic "TSAV" + version), then records.
// Each record is a 1-byte type, a 4-byte little-endian payload length
// and the payload. Frame records carry index, timing, dimensions, the
// encoded visual payload and the audio window. Gap records hold the
// position of a failed segment so the stream stays index-contiguous.
package avrec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
)

// Container identification.
const (
	Magic   = "TSAV"
	Version = 1
)

// Record types.
const (
	// RecordHeader carries the stream parameters. Always first.
	RecordHeader byte = 0x01

	// RecordFrame carries one rendered frame with its audio window.
	RecordFrame byte = 0x02

	// RecordGap marks a failed segment's position.
	RecordGap byte = 0x03
)

// maxRecordSize bounds a single record payload. Guards the reader
// against corrupt length prefixes.
const maxRecordSize = 64 << 20

// Container errors.
var (
	// ErrBadMagic indicates the stream does not start with the TSAV preamble.
	ErrBadMagic = errors.New("not a TSAV stream")

	// ErrBadVersion indicates an unsupported container version.
	ErrBadVersion = errors.New("unsupported TSAV version")

	// ErrCorrupt indicates a malformed record.
	ErrCorrupt = errors.New("corrupt TSAV record")

	// ErrHeaderFirst indicates records were written or read before the header.
	ErrHeaderFirst = errors.New("stream header must come first")
)

// Writer serialises a TSAV stream onto an io.Writer.
type Writer struct {
	w           io.Writer
	wroteHeader bool
}

// NewWriter creates a writer targeting w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the preamble and the header record.
func (w *Writer) WriteHeader(h domain.StreamHeader) error {
	if w.wroteHeader {
		return fmt.Errorf("%w: header already written", ErrHeaderFirst)
	}

	pre := make([]byte, 0, 6)
	pre = append(pre, Magic...)
	pre = binary.LittleEndian.AppendUint16(pre, Version)
	if _, err := w.w.Write(pre); err != nil {
		return fmt.Errorf("writing preamble: %w", err)
	}

	payload := appendString(nil, h.JobID)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(h.SampleRate))
	payload = binary.LittleEndian.AppendUint64(payload, math.Float64bits(h.FrameRate))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(h.Width))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(h.Height))

	if err := w.writeRecord(RecordHeader, payload); err != nil {
		return err
	}
	w.wroteHeader = true
	return nil
}

// WriteFrame appends one frame record, or a gap record when the frame
// is an error marker.
func (w *Writer) WriteFrame(f domain.Frame) error {
	if !w.wroteHeader {
		return ErrHeaderFirst
	}
	if f.IsMarker() {
		return w.writeGap(f)
	}

	payload := binary.LittleEndian.AppendUint64(nil, uint64(f.Index))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(f.PTS))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(f.Duration))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(f.Visual.Width))
	payload = binary.LittleEndian.AppendUint16(payload, uint16(f.Visual.Height))
	var flags byte
	if f.Substituted {
		flags |= 0x01
	}
	payload = append(payload, flags)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(f.Visual.Payload)))
	payload = append(payload, f.Visual.Payload...)
	payload = binary.LittleEndian.AppendUint32(payload, uint32(len(f.Audio)))
	payload = appendFloat32s(payload, f.Audio)

	return w.writeRecord(RecordFrame, payload)
}

// writeGap appends a gap record for a failed segment position.
func (w *Writer) writeGap(f domain.Frame) error {
	reason := ""
	if f.Err != nil {
		reason = f.Err.Error()
	}

	payload := binary.LittleEndian.AppendUint64(nil, uint64(f.Index))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(f.PTS))
	payload = binary.LittleEndian.AppendUint64(payload, uint64(f.Duration))
	payload = appendString(payload, reason)

	return w.writeRecord(RecordGap, payload)
}

// writeRecord frames and writes one record.
func (w *Writer) writeRecord(typ byte, payload []byte) error {
	head := make([]byte, 0, 5)
	head = append(head, typ)
	head = binary.LittleEndian.AppendUint32(head, uint32(len(payload)))
	if _, err := w.w.Write(head); err != nil {
		return fmt.Errorf("writing record head: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("writing record payload: %w", err)
	}
	return nil
}

// Record is one decoded container entry.
type Record struct {
	// Type is the record type: RecordFrame or RecordGap.
	Type byte

	// Frame holds the decoded content. For gap records the visual
	// payload is empty and GapReason carries the original failure text.
	Frame domain.Frame

	// GapReason is the recorded failure text for gap records.
	GapReason string
}

// Reader decodes a TSAV stream from an io.Reader.
type Reader struct {
	r          io.Reader
	readHeader bool
}

// NewReader creates a reader consuming r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadHeader consumes the preamble and header record.
func (r *Reader) ReadHeader() (domain.StreamHeader, error) {
	var h domain.StreamHeader
	if r.readHeader {
		return h, fmt.Errorf("%w: header already read", ErrHeaderFirst)
	}

	pre := make([]byte, 6)
	if _, err := io.ReadFull(r.r, pre); err != nil {
		return h, fmt.Errorf("reading preamble: %w", err)
	}
	if string(pre[:4]) != Magic {
		return h, ErrBadMagic
	}
	if v := binary.LittleEndian.Uint16(pre[4:]); v != Version {
		return h, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	typ, payload, err := r.readRecord()
	if err != nil {
		return h, err
	}
	if typ != RecordHeader {
		return h, fmt.Errorf("%w: expected header record, got 0x%02x", ErrCorrupt, typ)
	}

	d := decoder{buf: payload}
	h.JobID = d.str()
	h.SampleRate = int(d.u32())
	h.FrameRate = math.Float64frombits(d.u64())
	h.Width = int(d.u16())
	h.Height = int(d.u16())
	if d.err != nil {
		return h, fmt.Errorf("%w: header: %v", ErrCorrupt, d.err)
	}

	r.readHeader = true
	return h, nil
}

// Next decodes the next record. Returns io.EOF at a clean end of stream.
func (r *Reader) Next() (*Record, error) {
	if !r.readHeader {
		return nil, ErrHeaderFirst
	}

	typ, payload, err := r.readRecord()
	if err != nil {
		return nil, err
	}

	d := decoder{buf: payload}
	rec := &Record{Type: typ}

	switch typ {
	case RecordFrame:
		rec.Frame.Index = int64(d.u64())
		rec.Frame.PTS = time.Duration(d.u64())
		rec.Frame.Duration = time.Duration(d.u64())
		rec.Frame.Visual.Width = int(d.u16())
		rec.Frame.Visual.Height = int(d.u16())
		flags := d.byte()
		rec.Frame.Substituted = flags&0x01 != 0
		rec.Frame.Visual.Payload = d.bytes(int(d.u32()))
		rec.Frame.Audio = d.float32s(int(d.u32()))

	case RecordGap:
		rec.Frame.Index = int64(d.u64())
		rec.Frame.PTS = time.Duration(d.u64())
		rec.Frame.Duration = time.Duration(d.u64())
		rec.GapReason = d.str()
		rec.Frame.Err = fmt.Errorf("%w: %s", domain.ErrExtraction, rec.GapReason)

	default:
		return nil, fmt.Errorf("%w: unknown record type 0x%02x", ErrCorrupt, typ)
	}

	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, d.err)
	}
	return rec, nil
}

// readRecord reads one framed record.
func (r *Reader) readRecord() (byte, []byte, error) {
	head := make([]byte, 5)
	if _, err := io.ReadFull(r.r, head); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil, io.EOF
		}
		return 0, nil, fmt.Errorf("reading record head: %w", err)
	}

	size := binary.LittleEndian.Uint32(head[1:])
	if size > maxRecordSize {
		return 0, nil, fmt.Errorf("%w: record size %d", ErrCorrupt, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return 0, nil, fmt.Errorf("%w: truncated record: %v", ErrCorrupt, err)
	}
	return head[0], payload, nil
}

// appendString appends a length-prefixed UTF-8 string.
func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// appendFloat32s appends raw little-endian float32 samples.
func appendFloat32s(buf []byte, floats []float32) []byte {
	for _, f := range floats {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

// decoder walks a record payload, latching the first error.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = fmt.Errorf("short payload at offset %d", d.off)
		return nil
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) byte() byte {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) str() string {
	n := int(d.u16())
	b := d.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

func (d *decoder) bytes(n int) []byte {
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (d *decoder) float32s(n int) []float32 {
	b := d.take(n * 4)
	if b == nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

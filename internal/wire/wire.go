// Package wire implements the length-prefixed, big-endian serialization
// primitives that every hycast wire message is built from: fixed-size
// integers, length-prefixed byte slices, and the aggregates built on top of
// them. Every entity that rides the wire implements Encode/Decode in terms
// of an Encoder/Decoder pair and a GetSerialSize(Version) that must equal
// the number of bytes Encode actually writes.
//
// Grounded on the teacher's length-prefix framing
// (pkg/p2p/encoding.go: [type][uint32 length][payload], and
// internal/server/chunked_ops.go's relay-stream header framing), adapted
// from a one-shot gob envelope to symmetric field-by-field encode/decode so
// GetSerialSize can be checked against bytes actually written, per
// spec.md §4.1 and §8.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/hycast/hycast/internal/herrors"
)

// Version is the single unsigned parameter threaded through every
// encode/decode call. Unknown versions on receive fail the session.
type Version uint32

// CurrentVersion is the only protocol version this module implements.
const CurrentVersion Version = 0

// Fixed serial sizes, in bytes, of the primitive encodings.
const (
	Uint8Size  = 1
	Uint16Size = 2
	Uint32Size = 4
	Uint64Size = 8
)

// BytesSize returns the serial size of a length-prefixed byte slice of
// length n: a Uint32Size count followed by the n bytes themselves.
func BytesSize(n int) int {
	return Uint32Size + n
}

// Encoder accumulates the big-endian, length-prefixed encoding of a single
// message. Flush commits the accumulated bytes to a writer, which is what
// turns a half-built message into one that has actually gone out.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with its scratch buffer pre-sized.
func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

func (e *Encoder) PutUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) PutUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// PutBytes writes a uint32 length prefix followed by b.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// PutRaw appends b with no length prefix, for fields whose length is
// implied by other fields (e.g. a chunk's data, whose length is
// ChunkInfo.Size()).
func (e *Encoder) PutRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// Len returns the number of bytes accumulated so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Bytes returns the accumulated bytes without committing them.
func (e *Encoder) Bytes() []byte { return e.buf }

// Flush writes the accumulated bytes to w and resets the Encoder so it can
// be reused for the next message.
func (e *Encoder) Flush(w io.Writer) (int, error) {
	n, err := w.Write(e.buf)
	e.buf = e.buf[:0]
	if err != nil {
		return n, herrors.NewSystemError(err, "flush encoded message")
	}
	return n, nil
}

// Decoder reads the fields of one message boundary. Fill ensures at least
// n bytes (n==0 means "the rest of the record") are buffered before the
// Get* accessors draw from them; Clear discards whatever of the record
// remains unread, e.g. a fixed-layout tail a caller chose to skip.
type Decoder struct {
	r         io.Reader
	remaining uint32 // bytes of the record not yet pulled from r
	window    []byte // bytes pulled from r but not yet consumed by Get*
	pos       int
}

// NewDecoder returns a Decoder bounded to size bytes of r: the current
// message's record boundary, as reported by the transport's getSize().
func NewDecoder(r io.Reader, size uint32) *Decoder {
	return &Decoder{r: r, remaining: size}
}

// Fill ensures at least n bytes are available in the window, reading from
// the underlying reader as needed. n==0 means "fill with the rest of the
// record."
func (d *Decoder) Fill(n uint32) error {
	available := uint32(len(d.window) - d.pos)
	if n == 0 {
		n = available + d.remaining
	}
	if n > available+d.remaining {
		return herrors.NewRuntimeError("fill(%d) exceeds %d remaining bytes in record", n, available+d.remaining)
	}
	need := int(n) - int(available)
	if need <= 0 {
		return nil
	}
	buf := make([]byte, need)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return herrors.NewSystemError(err, "fill %d bytes", need)
	}
	d.window = append(d.window[d.pos:], buf...)
	d.pos = 0
	d.remaining -= uint32(need)
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if len(d.window)-d.pos < n {
		if err := d.Fill(uint32(n)); err != nil {
			return nil, err
		}
	}
	b := d.window[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *Decoder) GetUint8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) GetUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (d *Decoder) GetUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (d *Decoder) GetUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// GetBytes reads a uint32 length prefix followed by that many bytes,
// returning a copy so the caller may retain it past the next Fill.
func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetUint32()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// GetRaw reads exactly n unframed bytes, e.g. a chunk body whose length is
// implied by a preceding ChunkInfo.
func (d *Decoder) GetRaw(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// CopyRaw drains n unframed bytes directly into dst without an
// intermediate allocation, used by LatentChunk to decode straight into the
// assembler's buffer.
func (d *Decoder) CopyRaw(dst []byte) error {
	n := len(dst)
	if len(d.window)-d.pos >= n {
		copy(dst, d.window[d.pos:d.pos+n])
		d.pos += n
		return nil
	}
	// Drain whatever's buffered, then stream the remainder straight from r.
	buffered := len(d.window) - d.pos
	copy(dst, d.window[d.pos:])
	d.pos = len(d.window)
	remainder := n - buffered
	if uint32(remainder) > d.remaining {
		return herrors.NewRuntimeError("copyRaw(%d) exceeds %d remaining bytes in record", remainder, d.remaining)
	}
	if _, err := io.ReadFull(d.r, dst[buffered:]); err != nil {
		return herrors.NewSystemError(err, "copyRaw %d bytes", remainder)
	}
	d.remaining -= uint32(remainder)
	return nil
}

// Clear discards whatever of the record remains unread, draining it from
// the underlying reader so the stream stays aligned for the next message.
func (d *Decoder) Clear() error {
	d.window = nil
	d.pos = 0
	if d.remaining == 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, d.r, int64(d.remaining)); err != nil {
		return herrors.NewSystemError(err, "clear %d trailing bytes", d.remaining)
	}
	d.remaining = 0
	return nil
}

// Remaining reports how many bytes of the record have not yet been pulled
// from the underlying reader.
func (d *Decoder) Remaining() uint32 {
	return d.remaining + uint32(len(d.window)-d.pos)
}

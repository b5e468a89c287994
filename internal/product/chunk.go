package product

import (
	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/wire"
)

// ActualChunk is a chunk that owns (or at least holds a live view of) its
// data: constructed eagerly from an in-memory product, or once a
// LatentChunk has been drained. Data's length always equals Info.Size().
type ActualChunk struct {
	Info ChunkInfo
	Data []byte
}

// NewActualChunk validates that data's length matches the chunk's declared
// size before wrapping it.
func NewActualChunk(info ChunkInfo, data []byte) (ActualChunk, error) {
	if uint32(len(data)) != info.Size() {
		return ActualChunk{}, herrors.NewInvalidArgument(
			"chunk data length %d does not match declared size %d", len(data), info.Size())
	}
	return ActualChunk{Info: info, Data: data}, nil
}

// GetSerialSize returns the exact number of bytes Encode writes.
func (c ActualChunk) GetSerialSize(v wire.Version) int {
	return c.Info.GetSerialSize(v) + len(c.Data)
}

// Encode writes the CHUNK wire layout: a ChunkInfo header followed by the
// chunk's raw, unframed bytes.
func (c ActualChunk) Encode(e *wire.Encoder, v wire.Version) {
	c.Info.Encode(e, v)
	e.PutRaw(c.Data)
}

// LatentChunk is a chunk whose data has not yet been read off the wire. It
// is a single-use cursor: Drain must be called exactly once, and reading
// the next message on the same Decoder before draining (or after) is a
// contract violation the receive loop is responsible for avoiding by
// calling Drain (or Discard) before moving on.
type LatentChunk struct {
	Info    ChunkInfo
	dec     *wire.Decoder
	version wire.Version
	drained bool
}

// NewLatentChunk wraps a decoder positioned at the start of a chunk's raw
// data, per the CHUNK message's wire layout (a ChunkInfo header the caller
// has already decoded, followed by Info.Size() unframed bytes).
func NewLatentChunk(info ChunkInfo, dec *wire.Decoder, version wire.Version) LatentChunk {
	return LatentChunk{Info: info, dec: dec, version: version}
}

// Drain copies this chunk's data into dst, which must be exactly
// Info.Size() bytes long. It may be called at most once per LatentChunk.
func (lc *LatentChunk) Drain(dst []byte) error {
	if lc.drained {
		return herrors.NewLogicError("latent chunk already drained")
	}
	if uint32(len(dst)) != lc.Info.Size() {
		return herrors.NewInvalidArgument(
			"drain buffer length %d does not match chunk size %d", len(dst), lc.Info.Size())
	}
	if err := lc.dec.CopyRaw(dst); err != nil {
		return err
	}
	lc.drained = true
	return nil
}

// ToActual drains this chunk into a freshly allocated ActualChunk.
func (lc *LatentChunk) ToActual() (ActualChunk, error) {
	data := make([]byte, lc.Info.Size())
	if err := lc.Drain(data); err != nil {
		return ActualChunk{}, err
	}
	return ActualChunk{Info: lc.Info, Data: data}, nil
}

// HasData reports whether this chunk's data has not yet been drained. The
// receive loop asserts this is false immediately after a RecvChunkData
// callback returns, per spec.md §4.5 step 2.
func (lc *LatentChunk) HasData() bool {
	return !lc.drained
}

// Discard drops this chunk's data without copying it anywhere, leaving the
// underlying stream aligned for the next message. Used when a receiver
// decides, after seeing the header, that it doesn't want this chunk (e.g.
// a duplicate).
func (lc *LatentChunk) Discard() error {
	if lc.drained {
		return nil
	}
	if err := lc.dec.Clear(); err != nil {
		return err
	}
	lc.drained = true
	return nil
}

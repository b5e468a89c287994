package product

import (
	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/wire"
)

// ChunkInfo identifies a single chunk of a product: which product, that
// product's total size (needed to compute this chunk's byte length), and
// the chunk's zero-based position.
type ChunkInfo struct {
	ProdIndex  ProdIndex
	ProdSize   ProdSize
	ChunkIndex ChunkIndex
}

// NewChunkInfo validates and constructs a ChunkInfo against the process's
// canonical chunk size.
func NewChunkInfo(prodIndex ProdIndex, prodSize ProdSize, chunkIndex ChunkIndex) (ChunkInfo, error) {
	n := NumChunks(prodSize, CanonicalChunkSize())
	if uint32(chunkIndex) >= n {
		return ChunkInfo{}, herrors.NewInvalidArgument(
			"chunk index %d out of range [0,%d) for product of size %d", chunkIndex, n, prodSize)
	}
	return ChunkInfo{ProdIndex: prodIndex, ProdSize: prodSize, ChunkIndex: chunkIndex}, nil
}

// IsEmpty reports whether this is the zero-value ChunkInfo, the sentinel
// spec.md §4.3 uses to mean "no missing chunk."
func (ci ChunkInfo) IsEmpty() bool {
	return ci == ChunkInfo{}
}

// Size returns this chunk's byte length: the canonical chunk size, except
// for the last chunk of a product, which is whatever remains.
func (ci ChunkInfo) Size() uint32 {
	canon := CanonicalChunkSize()
	offset := uint64(ci.ChunkIndex) * uint64(canon)
	remaining := uint64(ci.ProdSize) - offset
	if remaining > uint64(canon) {
		return canon
	}
	return uint32(remaining)
}

// Less orders ChunkInfo lexicographically by (ProdIndex, ChunkIndex), the
// order spec.md §4.3's getOldestMissingChunk is defined over.
func (ci ChunkInfo) Less(other ChunkInfo) bool {
	if ci.ProdIndex != other.ProdIndex {
		return ci.ProdIndex.Less(other.ProdIndex)
	}
	return ci.ChunkIndex < other.ChunkIndex
}

// GetSerialSize returns the exact number of bytes Encode writes.
func (ChunkInfo) GetSerialSize(_ wire.Version) int {
	return wire.Uint32Size + wire.Uint32Size + wire.Uint32Size
}

// Encode writes the CHUNK_NOTICE/CHUNK_REQ wire layout: uint32 prodIndex |
// uint32 prodSize | uint32 chunkIndex.
func (ci ChunkInfo) Encode(e *wire.Encoder, _ wire.Version) {
	e.PutUint32(uint32(ci.ProdIndex))
	e.PutUint32(uint32(ci.ProdSize))
	e.PutUint32(uint32(ci.ChunkIndex))
}

// DecodeChunkInfo reads a ChunkInfo per the CHUNK_NOTICE/CHUNK_REQ wire
// layout.
func DecodeChunkInfo(d *wire.Decoder, _ wire.Version) (ChunkInfo, error) {
	if err := d.Fill(uint32(wire.Uint32Size * 3)); err != nil {
		return ChunkInfo{}, err
	}
	prodIndex, err := d.GetUint32()
	if err != nil {
		return ChunkInfo{}, err
	}
	prodSize, err := d.GetUint32()
	if err != nil {
		return ChunkInfo{}, err
	}
	chunkIndex, err := d.GetUint32()
	if err != nil {
		return ChunkInfo{}, err
	}
	return ChunkInfo{
		ProdIndex:  ProdIndex(prodIndex),
		ProdSize:   ProdSize(prodSize),
		ChunkIndex: ChunkIndex(chunkIndex),
	}, nil
}

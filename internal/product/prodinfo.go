package product

import (
	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/wire"
)

// MaxNameLen is the largest name spec.md §3 allows: 2^16-1 bytes, the
// limit imposed by the wire format's uint16 name-length prefix.
const MaxNameLen = 1<<16 - 1

// ProdInfo describes a product: its human-readable name, its index, its
// total byte size, and the canonical chunk size it was split under. All
// fields are immutable once constructed.
type ProdInfo struct {
	Name      string
	Index     ProdIndex
	Size      ProdSize
	CanonSize uint16
}

// NewProdInfo validates and constructs a ProdInfo.
func NewProdInfo(name string, index ProdIndex, size ProdSize, canonSize uint16) (ProdInfo, error) {
	if len(name) > MaxNameLen {
		return ProdInfo{}, herrors.NewInvalidArgument("product name exceeds %d bytes", MaxNameLen)
	}
	return ProdInfo{Name: name, Index: index, Size: size, CanonSize: canonSize}, nil
}

// NumChunks returns the number of chunks this product is split into.
func (pi ProdInfo) NumChunks() uint32 {
	return NumChunks(pi.Size, uint32(pi.CanonSize))
}

// GetSerialSize returns the exact number of bytes Encode writes for this
// ProdInfo under the given protocol version.
func (pi ProdInfo) GetSerialSize(_ wire.Version) int {
	return wire.Uint32Size + wire.Uint32Size + wire.Uint16Size + wire.Uint16Size + len(pi.Name)
}

// Encode writes the PROD_NOTICE wire layout: uint32 prodIndex | uint32
// prodSize | uint16 canonSize | uint16 nameLen | name.
func (pi ProdInfo) Encode(e *wire.Encoder, _ wire.Version) {
	e.PutUint32(uint32(pi.Index))
	e.PutUint32(uint32(pi.Size))
	e.PutUint16(pi.CanonSize)
	e.PutUint16(uint16(len(pi.Name)))
	e.PutRaw([]byte(pi.Name))
}

// DecodeProdInfo reads a ProdInfo from d per the PROD_NOTICE wire layout.
func DecodeProdInfo(d *wire.Decoder, _ wire.Version) (ProdInfo, error) {
	if err := d.Fill(uint32(wire.Uint32Size + wire.Uint32Size + wire.Uint16Size + wire.Uint16Size)); err != nil {
		return ProdInfo{}, err
	}
	index, err := d.GetUint32()
	if err != nil {
		return ProdInfo{}, err
	}
	size, err := d.GetUint32()
	if err != nil {
		return ProdInfo{}, err
	}
	canonSize, err := d.GetUint16()
	if err != nil {
		return ProdInfo{}, err
	}
	nameLen, err := d.GetUint16()
	if err != nil {
		return ProdInfo{}, err
	}
	nameBytes, err := d.GetRaw(int(nameLen))
	if err != nil {
		return ProdInfo{}, err
	}
	return ProdInfo{
		Name:      string(nameBytes),
		Index:     ProdIndex(index),
		Size:      ProdSize(size),
		CanonSize: canonSize,
	}, nil
}

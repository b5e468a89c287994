// Package assembler reassembles a product from its chunks, tracking
// completion with a bitmap rather than scanning the buffer for holes.
//
// Grounded on the teacher's internal/storage/chunker.go (which splits a
// file into content-addressed chunks) run in reverse, combined with the
// completion-bitmap approach from internal/server/chunked_ops.go's
// multi-part upload tracking, re-targeted at spec.md §4.2's in-memory
// reassembly semantics.
package assembler

import (
	"sync"

	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/product"
)

// AddStatus reports the outcome of adding a chunk to a Product.
type AddStatus int

const (
	// New means the chunk had not been seen before and was accepted.
	New AddStatus = iota
	// Duplicate means this chunk's bytes were already present.
	Duplicate
	// Complete means this chunk completed the product.
	Complete
)

// Product is a single product's reassembly state: its declared metadata,
// the bytes received so far, and a bitmap of which chunks have arrived.
// A Product is safe for concurrent use.
type Product struct {
	mu       sync.Mutex
	info     product.ProdInfo
	data     []byte
	have     []bool
	numHave  uint32
	numTotal uint32
}

// NewProduct creates an empty Product ready to receive chunks.
func NewProduct(info product.ProdInfo) *Product {
	n := info.NumChunks()
	return &Product{
		info:     info,
		data:     make([]byte, info.Size),
		have:     make([]bool, n),
		numTotal: n,
	}
}

// GetInfo returns the product's metadata.
func (p *Product) GetInfo() product.ProdInfo {
	return p.info
}

// IsComplete reports whether every chunk has arrived.
func (p *Product) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numHave == p.numTotal
}

// GetData returns the product's full byte slice. Callers must check
// IsComplete first; the slice is only fully populated once complete.
func (p *Product) GetData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data
}

// HaveChunk reports whether the chunk at idx has already arrived.
func (p *Product) HaveChunk(idx product.ChunkIndex) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint32(idx) >= uint32(len(p.have)) {
		return false
	}
	return p.have[idx]
}

// GetOldestMissingChunk returns the lowest-indexed chunk not yet received,
// and ok=false if the product is complete.
func (p *Product) GetOldestMissingChunk() (product.ChunkInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, got := range p.have {
		if !got {
			return product.ChunkInfo{
				ProdIndex:  p.info.Index,
				ProdSize:   p.info.Size,
				ChunkIndex: product.ChunkIndex(i),
			}, true
		}
	}
	return product.ChunkInfo{}, false
}

// AddActual copies chunk's data into the product's buffer at the right
// offset and marks it received.
func (p *Product) AddActual(chunk product.ActualChunk) (AddStatus, error) {
	if chunk.Info.ProdIndex != p.info.Index {
		return 0, herrors.NewInvalidArgument(
			"chunk belongs to product %d, not %d", chunk.Info.ProdIndex, p.info.Index)
	}
	return p.place(chunk.Info.ChunkIndex, chunk.Data)
}

// AddLatent drains chunk directly into the product's buffer, avoiding an
// intermediate allocation and copy.
func (p *Product) AddLatent(chunk *product.LatentChunk) (AddStatus, error) {
	if chunk.Info.ProdIndex != p.info.Index {
		return 0, herrors.NewInvalidArgument(
			"chunk belongs to product %d, not %d", chunk.Info.ProdIndex, p.info.Index)
	}
	p.mu.Lock()
	idx := chunk.Info.ChunkIndex
	if uint32(idx) >= uint32(len(p.have)) {
		p.mu.Unlock()
		return 0, herrors.NewInvalidArgument("chunk index %d out of range", idx)
	}
	if p.have[idx] {
		p.mu.Unlock()
		return Duplicate, chunk.Discard()
	}
	start := uint64(idx) * uint64(product.CanonicalChunkSize())
	end := start + uint64(chunk.Info.Size())
	dst := p.data[start:end]
	p.mu.Unlock()

	if err := chunk.Drain(dst); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.have[idx] {
		return Duplicate, nil
	}
	p.have[idx] = true
	p.numHave++
	if p.numHave == p.numTotal {
		return Complete, nil
	}
	return New, nil
}

func (p *Product) place(idx product.ChunkIndex, data []byte) (AddStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if uint32(idx) >= uint32(len(p.have)) {
		return 0, herrors.NewInvalidArgument("chunk index %d out of range", idx)
	}
	if p.have[idx] {
		return Duplicate, nil
	}
	start := uint64(idx) * uint64(product.CanonicalChunkSize())
	copy(p.data[start:], data)
	p.have[idx] = true
	p.numHave++
	if p.numHave == p.numTotal {
		return Complete, nil
	}
	return New, nil
}

// Package product holds the value types that describe a data-product and
// its chunks: identifiers, geometry, and the two chunk carriers (ActualChunk,
// which holds bytes, and LatentChunk, a single-use decoder cursor).
//
// Grounded on the teacher's content-addressed chunk model
// (internal/storage/chunker.go's ChunkResult, internal/server/message.go's
// FileManifest), re-keyed from a SHA-256 content hash to the
// (ProdIndex, ChunkIndex) pair spec.md §3 names, since hycast products are
// identified by an assigned index rather than by content.
package product

import (
	"sync"

	"github.com/hycast/hycast/internal/herrors"
)

// ProdIndex is a 32-bit product identifier. Arithmetic wraps modulo 2^32,
// but ordering is plain unsigned comparison — the source this module is
// modeled on exposes wraparound increment/decrement alongside a `<`
// comparison whose intent under wraparound is undefined; this module
// implements total order via plain unsigned comparison and does not invent
// a modular one (spec.md §9, "Ambiguity to flag").
type ProdIndex uint32

// Next returns the index one greater, wrapping at 2^32.
func (i ProdIndex) Next() ProdIndex { return i + 1 }

// Prev returns the index one less, wrapping at 2^32.
func (i ProdIndex) Prev() ProdIndex { return i - 1 }

// Less reports whether i sorts before j under plain unsigned comparison.
func (i ProdIndex) Less(j ProdIndex) bool { return i < j }

// ProdSize is the byte length of a product.
type ProdSize uint32

// ChunkIndex is a zero-based chunk position within a product.
type ChunkIndex uint32

// DefaultChunkSize is the canonical per-process chunk size used unless
// overridden once at startup via SetCanonicalChunkSize.
const DefaultChunkSize = 32760

var (
	canonMu   sync.Mutex
	canonSize uint32 = DefaultChunkSize
	canonSet  bool
)

// SetCanonicalChunkSize fixes the process-wide canonical chunk size. It
// must be called, if at all, before any I/O begins; a second call is an
// error, matching spec.md §9's "treat as immutable process-wide
// configuration set once before any I/O."
func SetCanonicalChunkSize(n uint32) error {
	canonMu.Lock()
	defer canonMu.Unlock()
	if n == 0 {
		return herrors.NewInvalidArgument("canonical chunk size must be > 0")
	}
	if canonSet {
		return herrors.NewLogicError("canonical chunk size already set to %d", canonSize)
	}
	canonSize = n
	canonSet = true
	return nil
}

// CanonicalChunkSize returns the process-wide canonical chunk size.
func CanonicalChunkSize() uint32 {
	canonMu.Lock()
	defer canonMu.Unlock()
	return canonSize
}

// NumChunks returns the number of chunks a product of the given size is
// split into under the canonical chunk size.
func NumChunks(size ProdSize, canon uint32) uint32 {
	if size == 0 {
		return 0
	}
	n := uint32(size) / canon
	if uint32(size)%canon != 0 {
		n++
	}
	return n
}

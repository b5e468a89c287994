// Package store implements the receiver-side authority on products,
// chunks, and missing-chunk state: the single place a peer session or
// multicast receiver deposits incoming data and the single place request
// logic asks "what am I still missing."
//
// Grounded on the teacher's internal/storage.Store (content-addressed
// blob storage) and internal/storage/cid_index.go (the metadata index with
// JSON persistence), re-keyed from a SHA-256 content hash to the
// (ProdIndex, ChunkIndex) pair spec.md §3 defines, and re-targeted at
// product/chunk completeness rather than opaque file blobs.
package store

import (
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hycast/hycast/internal/assembler"
	"github.com/hycast/hycast/internal/conc"
	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/logging"
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/wire"
)

// AddStatus reports the outcome of an add call. It mirrors
// assembler.AddStatus so callers of Store don't need to import both
// packages to interpret a result.
type AddStatus = assembler.AddStatus

const (
	New       = assembler.New
	Duplicate = assembler.Duplicate
	Complete  = assembler.Complete
)

// DefaultResidence is how long an entry survives in the store, absent
// eviction, if the caller doesn't specify one.
const DefaultResidence = 3600 * time.Second

// Store is the single receiver-side authority on products, chunks, and
// missing-chunk state. Public operations lock the store's entry map while
// they use it and never block on I/O while holding that lock:
// AddLatentChunk drains its chunk after releasing it, and Close writes the
// persistence file from a snapshot of the entries.
type Store struct {
	mu        sync.RWMutex
	entries   map[product.ProdIndex]*assembler.Product
	residence time.Duration
	evictions *conc.DelayQueue[product.ProdIndex]
	persist   string
	wg        sync.WaitGroup
	closeOnce sync.Once
	log       *logging.Logger
}

// SetLogger attaches an operational logger, replacing the default no-op
// one. Not safe to call concurrently with other Store methods.
func (s *Store) SetLogger(l *logging.Logger) {
	s.log = l
}

// NewStore constructs a Store. If persistPath is non-empty and a file
// already exists there, the store's prior contents are restored from it;
// on Close, the store's current contents are serialized back to that
// path. A negative residence is rejected, per spec.md §4.3.
func NewStore(residence time.Duration, persistPath string) (*Store, error) {
	if residence < 0 {
		return nil, herrors.NewInvalidArgument("residence must be >= 0, got %s", residence)
	}
	if residence == 0 {
		residence = DefaultResidence
	}
	s := &Store{
		entries:   make(map[product.ProdIndex]*assembler.Product),
		residence: residence,
		evictions: conc.NewDelayQueue[product.ProdIndex](),
		persist:   persistPath,
		log:       logging.Nop(),
	}
	if persistPath != "" {
		if err := s.restore(persistPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		} else if err == nil {
			s.log.Infow("store", "event", "restored", "path", persistPath, "products", len(s.entries))
		}
	}
	s.wg.Add(1)
	go s.evictLoop()
	return s, nil
}

func (s *Store) evictLoop() {
	defer s.wg.Done()
	for {
		idx, ok := s.evictions.Pop()
		if !ok {
			return
		}
		s.mu.Lock()
		delete(s.entries, idx)
		s.mu.Unlock()
		s.log.Infow("store", "event", "evict", "product", idx)
	}
}

// AddProduct registers an already-complete product. Idempotent: adding the
// same product index twice is a no-op the second time.
func (s *Store) AddProduct(p *assembler.Product) {
	s.mu.Lock()
	idx := p.GetInfo().Index
	if _, exists := s.entries[idx]; !exists {
		s.entries[idx] = p
		s.evictions.Push(idx, s.residence)
	}
	s.mu.Unlock()
}

// AddProdInfo creates an entry for info if none exists for its index. An
// existing entry (e.g. one created from chunk metadata) is returned
// unchanged: info does not replace its metadata, so a name carried only
// by info is not recorded. The returned status is New for a created
// entry, Complete if the existing entry already held every chunk, and
// Duplicate otherwise.
func (s *Store) AddProdInfo(info product.ProdInfo) (AddStatus, *assembler.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.entries[info.Index]
	if !exists {
		p = assembler.NewProduct(info)
		s.entries[info.Index] = p
		s.evictions.Push(info.Index, s.residence)
		return New, p
	}
	if p.IsComplete() {
		return Complete, p
	}
	return Duplicate, p
}

// AddLatentChunk delegates to the assembler, creating an entry from
// chunk-derived metadata if one doesn't already exist for this product.
func (s *Store) AddLatentChunk(chunk *product.LatentChunk) (AddStatus, *assembler.Product, error) {
	s.mu.Lock()
	p, exists := s.entries[chunk.Info.ProdIndex]
	if !exists {
		info, err := product.NewProdInfo("", chunk.Info.ProdIndex, chunk.Info.ProdSize, uint16(product.CanonicalChunkSize()))
		if err != nil {
			s.mu.Unlock()
			return 0, nil, err
		}
		p = assembler.NewProduct(info)
		s.entries[chunk.Info.ProdIndex] = p
		s.evictions.Push(chunk.Info.ProdIndex, s.residence)
	}
	s.mu.Unlock()

	status, err := p.AddLatent(chunk)
	if err != nil {
		return 0, nil, err
	}
	return status, p, nil
}

// GetProdInfo returns the metadata for index, if present.
func (s *Store) GetProdInfo(index product.ProdIndex) (product.ProdInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.entries[index]
	if !ok {
		return product.ProdInfo{}, false
	}
	return p.GetInfo(), true
}

// HaveChunk reports whether the chunk described by ci has been fully
// received.
func (s *Store) HaveChunk(ci product.ChunkInfo) bool {
	s.mu.RLock()
	p, ok := s.entries[ci.ProdIndex]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return p.HaveChunk(ci.ChunkIndex)
}

// GetChunk returns the chunk described by ci, if it has been received.
func (s *Store) GetChunk(ci product.ChunkInfo) (product.ActualChunk, bool) {
	s.mu.RLock()
	p, ok := s.entries[ci.ProdIndex]
	s.mu.RUnlock()
	if !ok || !p.HaveChunk(ci.ChunkIndex) {
		return product.ActualChunk{}, false
	}
	canon := product.CanonicalChunkSize()
	start := uint64(ci.ChunkIndex) * uint64(canon)
	data := p.GetData()
	end := start + uint64(ci.Size())
	ac, err := product.NewActualChunk(ci, data[start:end])
	if err != nil {
		return product.ActualChunk{}, false
	}
	return ac, true
}

// GetOldestMissingChunk returns the smallest (ProdIndex, ChunkIndex) pair,
// lexicographically, whose bit is clear across the whole store, or an
// empty ChunkInfo if nothing is missing.
func (s *Store) GetOldestMissingChunk() product.ChunkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best product.ChunkInfo
	haveBest := false
	for _, p := range s.entries {
		missing, ok := p.GetOldestMissingChunk()
		if !ok {
			continue
		}
		if !haveBest || missing.Less(best) {
			best = missing
			haveBest = true
		}
	}
	return best
}

// Size returns the number of product entries currently held, complete or
// not. Restored from the original C++ ProdStore's size(), dropped from
// spec.md's distillation but useful for diagnostics and tests.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ChunkIterator walks a consistent snapshot of present chunks, taken at
// the call site, in (ProdIndex, ChunkIndex) order starting at start.
type ChunkIterator struct {
	chunks []product.ChunkInfo
	pos    int
}

// Next returns the next present chunk in the snapshot, and ok=false once
// exhausted.
func (it *ChunkIterator) Next() (product.ChunkInfo, bool) {
	if it.pos >= len(it.chunks) {
		return product.ChunkInfo{}, false
	}
	ci := it.chunks[it.pos]
	it.pos++
	return ci, true
}

// ChunkInfoIterator returns a forward walk over a snapshot, taken when it
// is called, of the present chunks at or after start. Calling it again
// takes a fresh snapshot.
func (s *Store) ChunkInfoIterator(start product.ChunkInfo) *ChunkIterator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var chunks []product.ChunkInfo
	for _, p := range s.entries {
		info := p.GetInfo()
		n := info.NumChunks()
		for i := uint32(0); i < n; i++ {
			ci := product.ChunkInfo{ProdIndex: info.Index, ProdSize: info.Size, ChunkIndex: product.ChunkIndex(i)}
			if ci.Less(start) {
				continue
			}
			if p.HaveChunk(product.ChunkIndex(i)) {
				chunks = append(chunks, ci)
			}
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Less(chunks[j]) })
	return &ChunkIterator{chunks: chunks}
}

// Close stops the eviction goroutine and, if a persist path was supplied
// at construction, serializes the store's current contents to it.
func (s *Store) Close() error {
	var persistErr error
	s.closeOnce.Do(func() {
		s.evictions.Close()
		s.wg.Wait()
		if s.persist != "" {
			persistErr = s.save(s.persist)
			if persistErr != nil {
				s.log.Errorw("store", "event", "persist-failed", "path", s.persist, "error", persistErr)
			} else {
				s.log.Infow("store", "event", "persisted", "path", s.persist)
			}
		}
	})
	return persistErr
}

const persistVersion wire.Version = 0

// save serializes every entry as a (ProdInfo, per-chunk presence+bytes)
// record, using the same length-prefixed codec as the wire protocol rather
// than a third-party KV store: see DESIGN.md for why a whole-store
// flush/restore doesn't fit a per-key store like leveldb. Every chunk's
// presence bit is recorded, not just whole-product completeness, so a
// product that's still missing chunks at Close time round-trips its
// partial bitmap and bytes instead of being flattened to empty.
func (s *Store) save(path string) error {
	s.mu.RLock()
	entries := make([]*assembler.Product, 0, len(s.entries))
	for _, p := range s.entries {
		entries = append(entries, p)
	}
	s.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return herrors.NewSystemError(err, "create persistence file %s", path)
	}
	defer f.Close()

	e := wire.NewEncoder(4096)
	e.PutUint32(uint32(persistVersion))
	e.PutUint32(uint32(len(entries)))
	if _, err := e.Flush(f); err != nil {
		return err
	}

	canon := product.CanonicalChunkSize()
	for _, p := range entries {
		info := p.GetInfo()
		data := p.GetData()
		n := info.NumChunks()
		entryEnc := wire.NewEncoder(info.GetSerialSize(wire.CurrentVersion) + len(data) + int(n))
		info.Encode(entryEnc, wire.CurrentVersion)
		for i := uint32(0); i < n; i++ {
			idx := product.ChunkIndex(i)
			if !p.HaveChunk(idx) {
				entryEnc.PutUint8(0)
				continue
			}
			ci, err := product.NewChunkInfo(info.Index, info.Size, idx)
			if err != nil {
				return err
			}
			start := uint64(i) * uint64(canon)
			end := start + uint64(ci.Size())
			entryEnc.PutUint8(1)
			entryEnc.PutRaw(data[start:end])
		}
		if _, err := entryEnc.Flush(f); err != nil {
			return err
		}
	}
	return nil
}

// restore reloads a store's contents from a file previously written by
// save.
func (s *Store) restore(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := wire.NewDecoder(f, wire.Uint32Size*2)
	if err := header.Fill(0); err != nil {
		return herrors.NewSystemError(err, "read persistence header")
	}
	version, err := header.GetUint32()
	if err != nil {
		return err
	}
	if wire.Version(version) != persistVersion {
		return herrors.NewRuntimeError("unsupported persistence format version %d", version)
	}
	count, err := header.GetUint32()
	if err != nil {
		return err
	}

	for i := uint32(0); i < count; i++ {
		if err := s.restoreEntry(f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) restoreEntry(r io.Reader) error {
	infoHeader := wire.NewDecoder(r, wire.Uint32Size+wire.Uint32Size+wire.Uint16Size+wire.Uint16Size)
	if err := infoHeader.Fill(0); err != nil {
		return herrors.NewSystemError(err, "read persisted product header")
	}
	index, err := infoHeader.GetUint32()
	if err != nil {
		return err
	}
	size, err := infoHeader.GetUint32()
	if err != nil {
		return err
	}
	canonSize, err := infoHeader.GetUint16()
	if err != nil {
		return err
	}
	nameLen, err := infoHeader.GetUint16()
	if err != nil {
		return err
	}

	nameDec := wire.NewDecoder(r, uint32(nameLen))
	if err := nameDec.Fill(0); err != nil {
		return herrors.NewSystemError(err, "read persisted product name")
	}
	nameBytes, err := nameDec.GetRaw(int(nameLen))
	if err != nil {
		return err
	}

	info, err := product.NewProdInfo(string(nameBytes), product.ProdIndex(index), product.ProdSize(size), canonSize)
	if err != nil {
		return err
	}
	p := assembler.NewProduct(info)

	n := info.NumChunks()
	for i := uint32(0); i < n; i++ {
		ci, err := product.NewChunkInfo(info.Index, info.Size, product.ChunkIndex(i))
		if err != nil {
			return err
		}
		presDec := wire.NewDecoder(r, wire.Uint8Size)
		if err := presDec.Fill(0); err != nil {
			return herrors.NewSystemError(err, "read persisted chunk presence")
		}
		present, err := presDec.GetUint8()
		if err != nil {
			return err
		}
		if present == 0 {
			continue
		}
		bodyDec := wire.NewDecoder(r, uint32(ci.Size()))
		if err := bodyDec.Fill(0); err != nil {
			return herrors.NewSystemError(err, "read persisted chunk data")
		}
		body, err := bodyDec.GetRaw(int(ci.Size()))
		if err != nil {
			return err
		}
		ac, err := product.NewActualChunk(ci, body)
		if err != nil {
			return err
		}
		if _, err := p.AddActual(ac); err != nil {
			return err
		}
	}

	s.entries[info.Index] = p
	s.evictions.Push(info.Index, s.residence)
	return nil
}

// Package exchange implements the peer-side notice/request/data business
// logic the overview in spec.md §1 describes but the core peer.Session only
// provides the mechanism for: deciding what to request when a notice
// arrives, what to answer a request with, and periodically draining the
// store's "oldest missing chunk" hint against the peers on hand.
//
// Grounded on the teacher's internal/server/chunked_ops.go handlers
// (handleGetChunk silently ignoring a request for data the server doesn't
// have, handleChunkData storing then notifying), adapted from a
// content-hash-keyed CAS to hycast's (ProdIndex, ChunkIndex)-keyed store.
package exchange

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/hycast/hycast/internal/logging"
	"github.com/hycast/hycast/internal/peer"
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/store"
)

// Exchange is the peer.MsgRcvr every Session in a node is constructed with.
// It also tracks the live session set so RequestMissing has someone to ask.
type Exchange struct {
	store *store.Store
	log   *logging.Logger

	mu       sync.Mutex
	sessions map[*peer.Session]struct{}
}

// New returns an Exchange backed by s. Call SetLogger to attach operational
// logging; the default is a no-op logger.
func New(s *store.Store) *Exchange {
	return &Exchange{
		store:    s,
		log:      logging.Nop(),
		sessions: make(map[*peer.Session]struct{}),
	}
}

// SetLogger attaches an operational logger, replacing the default no-op one.
func (x *Exchange) SetLogger(l *logging.Logger) {
	x.log = l
}

// Register adds a session to the peer set RequestMissing draws from. Callers
// should call it once a session's Handshake has completed.
func (x *Exchange) Register(s *peer.Session) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.sessions[s] = struct{}{}
}

// Unregister removes a session, e.g. once its Run loop has returned.
func (x *Exchange) Unregister(s *peer.Session) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.sessions, s)
}

func (x *Exchange) randomPeer() *peer.Session {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.sessions) == 0 {
		return nil
	}
	n := rand.Intn(len(x.sessions))
	i := 0
	for s := range x.sessions {
		if i == n {
			return s
		}
		i++
	}
	return nil
}

// RecvProdNotice registers the advertised product if it's new.
func (x *Exchange) RecvProdNotice(s *peer.Session, info product.ProdInfo) {
	x.store.AddProdInfo(info)
}

// RecvChunkNotice requests the chunk back from the notifying peer unless
// it's already held.
func (x *Exchange) RecvChunkNotice(s *peer.Session, info product.ChunkInfo) {
	if x.store.HaveChunk(info) {
		return
	}
	if err := s.SendChunkRequest(info); err != nil {
		x.log.Errorw("exchange", "event", "request-failed", "error", err)
	}
}

// RecvProdRequest answers with a ProdNotice if the product is known,
// silently ignoring the request otherwise, matching the teacher's
// handleGetChunk early return when the store doesn't have the data.
func (x *Exchange) RecvProdRequest(s *peer.Session, index product.ProdIndex) {
	info, ok := x.store.GetProdInfo(index)
	if !ok {
		return
	}
	if err := s.SendProdNotice(info); err != nil {
		x.log.Errorw("exchange", "event", "notice-failed", "error", err)
	}
}

// RecvChunkRequest answers with the chunk's data if held, silently ignoring
// the request otherwise.
func (x *Exchange) RecvChunkRequest(s *peer.Session, info product.ChunkInfo) {
	chunk, ok := x.store.GetChunk(info)
	if !ok {
		return
	}
	if err := s.SendChunk(chunk); err != nil {
		x.log.Errorw("exchange", "event", "send-chunk-failed", "error", err)
	}
}

// RecvChunkData stores chunk data that arrived unsolicited or in answer to
// a request.
func (x *Exchange) RecvChunkData(s *peer.Session, chunk *product.LatentChunk) {
	if _, _, err := x.store.AddLatentChunk(chunk); err != nil {
		x.log.Errorw("exchange", "event", "add-chunk-failed", "error", err)
		// AddLatentChunk may fail before draining (e.g. malformed chunk
		// geometry); discard so the session's undrained-chunk invariant
		// still holds regardless of where the rejection happened.
		if chunk.HasData() {
			_ = chunk.Discard()
		}
	}
}

// RequestMissing polls the store's oldest-missing-chunk hint every interval
// and asks a randomly chosen live peer for it, until ctx is canceled. It
// returns immediately, without polling, if interval <= 0.
func (x *Exchange) RequestMissing(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			missing := x.store.GetOldestMissingChunk()
			if missing.IsEmpty() {
				continue
			}
			s := x.randomPeer()
			if s == nil {
				continue
			}
			if err := s.SendChunkRequest(missing); err != nil {
				x.log.Errorw("exchange", "event", "poll-request-failed", "error", err)
			}
		}
	}
}

var _ peer.MsgRcvr = (*Exchange)(nil)

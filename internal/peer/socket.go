// Package peer implements the reliable multi-stream session between two
// hycast hosts: a fixed set of six logical streams (version, product
// notices, chunk notices, product requests, chunk requests, and chunk
// data), dispatched through a single receiver loop to a MsgRcvr.
//
// Grounded on the teacher's internal/server's per-connection message
// dispatch (switch over decoded message types, one handler per case) and
// pkg/p2p's Peer/Transport interfaces, generalized from one implicit
// stream to the six fixed stream ids spec.md §4.5 names.
package peer

import "io"

// Number of fixed logical streams a Session multiplexes.
const NumStreamIDs = 6

// Stream ids, fixed across every Session.
const (
	StreamVersion = iota
	StreamProdNotice
	StreamChunkNotice
	StreamProdReq
	StreamChunkReq
	StreamChunk
)

// Socket is the minimal reliable multi-stream transport a Session
// consumes. It is the external collaborator spec.md treats as "a reliable
// ordered multi-stream transport" — internal/mstream is this module's one
// concrete implementation, but any type satisfying Socket plugs in.
type Socket interface {
	// Size blocks until the next message's body size is known (e.g. by
	// reading a length-prefixed frame header), or returns 0 once the peer
	// has cleanly closed its side.
	Size() (uint32, error)
	// StreamID reports which logical stream the pending message (whose
	// size was just returned by Size) arrived on.
	StreamID() (int, error)
	// Reader returns an io.Reader bounded to the pending message's body;
	// the caller must read it in full (or call Clear via a wire.Decoder)
	// before calling Size again.
	Reader() io.Reader
	// Write sends p as a single framed message on the given stream.
	Write(streamID int, p []byte) (int, error)
	Close() error
}

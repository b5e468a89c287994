package peer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/logging"
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/wire"
)

// State is a Session's position in its Created → Handshaking → Running →
// Closing → Closed lifecycle.
type State int32

const (
	Created State = iota
	Handshaking
	Running
	Closing
	Closed
)

// MsgRcvr is the capability interface a Session's receive loop delivers
// decoded messages to, one method per stream, each taking the originating
// Session so a multi-peer dispatcher can tell sessions apart. Sessions are
// compared by pointer identity, per spec.md §4.5 ("hash and ordering are
// by pointer identity").
type MsgRcvr interface {
	RecvProdNotice(s *Session, info product.ProdInfo)
	RecvChunkNotice(s *Session, info product.ChunkInfo)
	RecvProdRequest(s *Session, index product.ProdIndex)
	RecvChunkRequest(s *Session, info product.ChunkInfo)
	RecvChunkData(s *Session, chunk *product.LatentChunk)
}

// Session is the reliable, ordered, multi-stream connection to one peer.
// Every Session is a distinct identity even to the same remote address;
// callers must not rely on Sessions comparing equal or hashing
// consistently across processes.
type Session struct {
	sock    Socket
	rcvr    MsgRcvr
	version wire.Version

	state atomic.Int32

	prodNotice  *Channel[product.ProdInfo]
	chunkNotice *Channel[product.ChunkInfo]
	prodReq     *Channel[Uint32Frame]
	chunkReq    *Channel[product.ChunkInfo]

	sendMu [NumStreamIDs]sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	doneWg sync.WaitGroup

	log *logging.Logger
}

// SetLogger attaches an operational logger, replacing the default no-op
// one. Not safe to call concurrently with Handshake/Run/Close.
func (s *Session) SetLogger(l *logging.Logger) {
	s.log = l
}

// NewSession wraps sock in a Session bound to rcvr. The caller must call
// Handshake before Run.
func NewSession(parent context.Context, sock Socket, rcvr MsgRcvr) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		sock:    sock,
		rcvr:    rcvr,
		version: wire.CurrentVersion,
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.Nop(),
	}
	s.prodNotice = NewChannel[product.ProdInfo](sock, StreamProdNotice, s.version)
	s.chunkNotice = NewChannel[product.ChunkInfo](sock, StreamChunkNotice, s.version)
	s.prodReq = NewChannel[Uint32Frame](sock, StreamProdReq, s.version)
	s.chunkReq = NewChannel[product.ChunkInfo](sock, StreamChunkReq, s.version)
	return s
}

// State returns the Session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Handshake exchanges version messages on stream 0: send ours, then read
// one from the peer. A version mismatch is fatal.
func (s *Session) Handshake() error {
	s.setState(Handshaking)

	e := wire.NewEncoder(wire.Uint32Size)
	e.PutUint32(uint32(s.version))
	if _, err := s.sock.Write(StreamVersion, e.Bytes()); err != nil {
		return herrors.NewSystemError(err, "send version handshake")
	}

	size, err := s.sock.Size()
	if err != nil {
		return herrors.NewSystemError(err, "read version handshake size")
	}
	streamID, err := s.sock.StreamID()
	if err != nil {
		return herrors.NewSystemError(err, "read version handshake stream id")
	}
	if streamID != StreamVersion {
		return herrors.NewLogicError("expected version message on stream %d, got %d", StreamVersion, streamID)
	}
	d := wire.NewDecoder(s.sock.Reader(), size)
	peerVersion, err := d.GetUint32()
	if err != nil {
		return herrors.NewSystemError(err, "decode peer version")
	}
	if err := d.Clear(); err != nil {
		return err
	}
	if wire.Version(peerVersion) != s.version {
		s.log.Errorw("session", "event", "version-mismatch", "local", s.version, "peer", peerVersion)
		return herrors.NewLogicError("protocol version mismatch: local=%d peer=%d", s.version, peerVersion)
	}

	s.setState(Running)
	s.log.Infow("session", "event", "handshake-complete", "version", s.version)
	return nil
}

// Run executes the receive loop described in spec.md §4.5: call Size;
// zero means the peer closed cleanly and the loop terminates. Otherwise
// read the stream id and dispatch the message body to the matching
// channel and MsgRcvr callback. Only the Size-blocking point is
// cancelable; once a header has been read, the body is always fully
// consumed before the next cancellation check.
func (s *Session) Run() error {
	s.doneWg.Add(1)
	defer s.doneWg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		default:
		}

		size, err := s.sock.Size()
		if err != nil {
			s.log.Errorw("session", "event", "read-error", "error", err)
			return herrors.NewSystemError(err, "read next message size")
		}
		if size == 0 {
			s.log.Infow("session", "event", "peer-closed")
			return nil
		}

		streamID, err := s.sock.StreamID()
		if err != nil {
			return herrors.NewSystemError(err, "read stream id")
		}

		if err := s.dispatch(streamID, size); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(streamID int, size uint32) error {
	d := wire.NewDecoder(s.sock.Reader(), size)

	switch streamID {
	case StreamProdNotice:
		info, err := product.DecodeProdInfo(d, s.version)
		if err != nil {
			return err
		}
		if err := d.Clear(); err != nil {
			return err
		}
		s.rcvr.RecvProdNotice(s, info)

	case StreamChunkNotice:
		info, err := product.DecodeChunkInfo(d, s.version)
		if err != nil {
			return err
		}
		if err := d.Clear(); err != nil {
			return err
		}
		s.rcvr.RecvChunkNotice(s, info)

	case StreamProdReq:
		frame, err := DecodeUint32Frame(d, s.version)
		if err != nil {
			return err
		}
		if err := d.Clear(); err != nil {
			return err
		}
		s.rcvr.RecvProdRequest(s, product.ProdIndex(frame.Value))

	case StreamChunkReq:
		info, err := product.DecodeChunkInfo(d, s.version)
		if err != nil {
			return err
		}
		if err := d.Clear(); err != nil {
			return err
		}
		s.rcvr.RecvChunkRequest(s, info)

	case StreamChunk:
		info, err := product.DecodeChunkInfo(d, s.version)
		if err != nil {
			return err
		}
		chunk := product.NewLatentChunk(info, d, s.version)
		s.rcvr.RecvChunkData(s, &chunk)
		if chunk.HasData() {
			return herrors.NewLogicError("chunk data left undrained after RecvChunkData")
		}

	default:
		// Unknown stream id: silently discard per spec.md §4.5 step 3.
		return d.Clear()
	}
	return nil
}

// SendProdNotice advertises a product on stream 1.
func (s *Session) SendProdNotice(info product.ProdInfo) error {
	s.sendMu[StreamProdNotice].Lock()
	defer s.sendMu[StreamProdNotice].Unlock()
	return s.prodNotice.Send(info)
}

// SendChunkNotice advertises a chunk on stream 2.
func (s *Session) SendChunkNotice(info product.ChunkInfo) error {
	s.sendMu[StreamChunkNotice].Lock()
	defer s.sendMu[StreamChunkNotice].Unlock()
	return s.chunkNotice.Send(info)
}

// SendProdRequest requests a product by index on stream 3.
func (s *Session) SendProdRequest(index product.ProdIndex) error {
	s.sendMu[StreamProdReq].Lock()
	defer s.sendMu[StreamProdReq].Unlock()
	return s.prodReq.Send(Uint32Frame{Value: uint32(index)})
}

// SendChunkRequest requests a chunk on stream 4.
func (s *Session) SendChunkRequest(info product.ChunkInfo) error {
	s.sendMu[StreamChunkReq].Lock()
	defer s.sendMu[StreamChunkReq].Unlock()
	return s.chunkReq.Send(info)
}

// SendChunk sends a complete chunk's data on stream 5.
func (s *Session) SendChunk(chunk product.ActualChunk) error {
	s.sendMu[StreamChunk].Lock()
	defer s.sendMu[StreamChunk].Unlock()
	e := wire.NewEncoder(chunk.GetSerialSize(s.version))
	chunk.Encode(e, s.version)
	_, err := s.sock.Write(StreamChunk, e.Bytes())
	return err
}

// Close cancels the receive loop, waits for it to return, and closes the
// underlying socket.
func (s *Session) Close() error {
	s.setState(Closing)
	s.cancel()
	err := s.sock.Close()
	s.doneWg.Wait()
	s.setState(Closed)
	return err
}

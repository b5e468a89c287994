// Package mstream is the one concrete peer.Socket implementation this
// module ships: six logical streams multiplexed over a single TCP
// connection, each message framed as [streamID:1][length:4][payload].
//
// Grounded on the teacher's pkg/p2p TCP transport (net.Conn-backed Peer,
// ListenAndAccept/Dial shape) and its length-prefix encoding
// (pkg/p2p/encoding.go), generalized from "one implicit stream" to the six
// explicit stream ids spec.md §4.5 names.
package mstream

import (
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/hycast/hycast/internal/herrors"
)

const headerSize = 1 + 4 // streamID byte + uint32 length

// Socket is a peer.Socket implementation multiplexing NumStreamIDs logical
// streams over one net.Conn. Reads are serialized: Size/StreamID/Reader
// must be called in that sequence for each message before the next Size
// call, matching the contract peer.Session's receive loop relies on.
type Socket struct {
	conn net.Conn

	readMu   sync.Mutex
	pending  io.LimitedReader
	streamID int

	writeMu sync.Mutex
}

// New wraps conn, an already-connected TCP socket, as a peer.Socket.
func New(conn net.Conn) *Socket {
	return &Socket{conn: conn}
}

// Size reads the next message's header and returns its payload length. A
// return of (0, nil) means the peer closed its side cleanly.
func (s *Socket) Size() (uint32, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	var header [headerSize]byte
	if _, err := io.ReadFull(s.conn, header[:1]); err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, herrors.NewSystemError(err, "read stream id byte")
	}
	if _, err := io.ReadFull(s.conn, header[1:]); err != nil {
		return 0, herrors.NewSystemError(err, "read length prefix")
	}
	s.streamID = int(header[0])
	size := binary.BigEndian.Uint32(header[1:])
	s.pending = io.LimitedReader{R: s.conn, N: int64(size)}
	return size, nil
}

// StreamID returns the stream id of the message whose size was just
// returned by Size.
func (s *Socket) StreamID() (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	return s.streamID, nil
}

// Reader returns a reader bounded to the pending message's remaining
// bytes. The caller must read it to exhaustion before the next Size call.
func (s *Socket) Reader() io.Reader {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	return &s.pending
}

// Write sends p as a single framed message on streamID.
func (s *Socket) Write(streamID int, p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var header [headerSize]byte
	header[0] = byte(streamID)
	binary.BigEndian.PutUint32(header[1:], uint32(len(p)))

	if _, err := s.conn.Write(header[:]); err != nil {
		return 0, herrors.NewSystemError(err, "write frame header")
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, herrors.NewSystemError(err, "write frame payload")
	}
	return n, nil
}

// Close closes the underlying connection.
func (s *Socket) Close() error {
	return s.conn.Close()
}

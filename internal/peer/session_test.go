package peer

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/wire"
)

// pendingMsg is one framed message queued for a fakeSocket to deliver.
type pendingMsg struct {
	streamID int
	payload  []byte
}

// fakeSocket is an in-memory Socket: Write appends to a shared outbox,
// and a pre-loaded inbox of pendingMsgs is what Size/StreamID/Reader walk
// through, modeling one end of a peer-to-peer connection without any real
// network I/O.
type fakeSocket struct {
	mu     sync.Mutex
	inbox  []pendingMsg
	pos    int
	cur    *bytes.Reader
	outbox *[][]byte
	closed bool
}

func newFakeSocket(outbox *[][]byte) *fakeSocket {
	return &fakeSocket{outbox: outbox}
}

func (f *fakeSocket) enqueue(streamID int, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, pendingMsg{streamID: streamID, payload: payload})
}

func (f *fakeSocket) Size() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, nil
	}
	if f.pos >= len(f.inbox) {
		return 0, nil
	}
	msg := f.inbox[f.pos]
	f.cur = bytes.NewReader(msg.payload)
	return uint32(len(msg.payload)), nil
}

func (f *fakeSocket) StreamID() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.inbox[f.pos].streamID
	f.pos++
	return id, nil
}

func (f *fakeSocket) Reader() io.Reader {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cur
}

func (f *fakeSocket) Write(streamID int, p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(p))
	copy(cp, p)
	*f.outbox = append(*f.outbox, cp)
	return len(p), nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func versionPayload(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func TestSessionHandshakeSuccess(t *testing.T) {
	var outbox [][]byte
	sock := newFakeSocket(&outbox)
	sock.enqueue(StreamVersion, versionPayload(0))

	s := NewSession(context.Background(), sock, &recordingRcvr{})
	if err := s.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	if s.State() != Running {
		t.Errorf("state = %v, want Running", s.State())
	}
	if len(outbox) != 1 {
		t.Fatalf("expected 1 outgoing message, got %d", len(outbox))
	}
}

func TestSessionHandshakeVersionMismatch(t *testing.T) {
	var outbox [][]byte
	sock := newFakeSocket(&outbox)
	sock.enqueue(StreamVersion, versionPayload(99))

	s := NewSession(context.Background(), sock, &recordingRcvr{})
	if err := s.Handshake(); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

type recordingRcvr struct {
	mu           sync.Mutex
	prodNotices  []product.ProdInfo
	chunkNotices []product.ChunkInfo
	prodReqs     []product.ProdIndex
	chunkReqs    []product.ChunkInfo
	chunks       []product.ActualChunk
}

func (r *recordingRcvr) RecvProdNotice(s *Session, info product.ProdInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prodNotices = append(r.prodNotices, info)
}

func (r *recordingRcvr) RecvChunkNotice(s *Session, info product.ChunkInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkNotices = append(r.chunkNotices, info)
}

func (r *recordingRcvr) RecvProdRequest(s *Session, index product.ProdIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prodReqs = append(r.prodReqs, index)
}

func (r *recordingRcvr) RecvChunkRequest(s *Session, info product.ChunkInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunkReqs = append(r.chunkReqs, info)
}

func (r *recordingRcvr) RecvChunkData(s *Session, chunk *product.LatentChunk) {
	ac, err := chunk.ToActual()
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, ac)
}

func TestSessionRunDispatchesProdNotice(t *testing.T) {
	_ = product.SetCanonicalChunkSize(128)

	var outbox [][]byte
	sock := newFakeSocket(&outbox)
	sock.enqueue(StreamVersion, versionPayload(0))

	rcvr := &recordingRcvr{}
	s := NewSession(context.Background(), sock, rcvr)
	if err := s.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	info, err := product.NewProdInfo("doc.bin", product.ProdIndex(5), product.ProdSize(500), 128)
	if err != nil {
		t.Fatalf("NewProdInfo: %v", err)
	}
	encoded := encodeOnWire(t, info)
	sock.enqueue(StreamProdNotice, encoded)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after inbox drained")
	}

	rcvr.mu.Lock()
	defer rcvr.mu.Unlock()
	if len(rcvr.prodNotices) != 1 || rcvr.prodNotices[0] != info {
		t.Errorf("prodNotices = %+v, want [%+v]", rcvr.prodNotices, info)
	}
}

func TestSessionRunDispatchesChunkData(t *testing.T) {
	_ = product.SetCanonicalChunkSize(256)

	var outbox [][]byte
	sock := newFakeSocket(&outbox)
	sock.enqueue(StreamVersion, versionPayload(0))

	rcvr := &recordingRcvr{}
	s := NewSession(context.Background(), sock, rcvr)
	if err := s.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}

	ci, err := product.NewChunkInfo(product.ProdIndex(1), product.ProdSize(10), product.ChunkIndex(0))
	if err != nil {
		t.Fatalf("NewChunkInfo: %v", err)
	}
	payload := []byte("0123456789")
	ac, err := product.NewActualChunk(ci, payload)
	if err != nil {
		t.Fatalf("NewActualChunk: %v", err)
	}
	sock.enqueue(StreamChunk, encodeOnWire(t, ac))

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rcvr.mu.Lock()
	defer rcvr.mu.Unlock()
	if len(rcvr.chunks) != 1 || !bytes.Equal(rcvr.chunks[0].Data, payload) {
		t.Errorf("chunks = %+v, want data %q", rcvr.chunks, payload)
	}
}

func TestSessionUnknownStreamDiscarded(t *testing.T) {
	var outbox [][]byte
	sock := newFakeSocket(&outbox)
	sock.enqueue(StreamVersion, versionPayload(0))

	rcvr := &recordingRcvr{}
	s := NewSession(context.Background(), sock, rcvr)
	if err := s.Handshake(); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
	sock.enqueue(99, []byte("garbage"))

	if err := s.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// encodeOnWire encodes v using its Encode method and returns the raw
// bytes, for building pendingMsg payloads in tests.
func encodeOnWire(t *testing.T, v Encodable) []byte {
	t.Helper()
	e := wire.NewEncoder(v.GetSerialSize(wire.CurrentVersion))
	v.Encode(e, wire.CurrentVersion)
	return e.Bytes()
}

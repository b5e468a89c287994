package mcast

import (
	"bytes"
	"net"
	"sync"
	"testing"

	"github.com/hycast/hycast/internal/product"
)

// loopConn is an in-memory PacketConn: WriteTo enqueues a datagram that a
// later ReadFrom will return, modeling one end of a multicast group
// without any real socket.
type loopConn struct {
	mu   sync.Mutex
	cond *sync.Cond
	q    [][]byte
}

func newLoopConn() *loopConn {
	c := &loopConn{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *loopConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.mu.Lock()
	c.q = append(c.q, cp)
	c.mu.Unlock()
	c.cond.Signal()
	return len(p), nil
}

func (c *loopConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.mu.Lock()
	for len(c.q) == 0 {
		c.cond.Wait()
	}
	msg := c.q[0]
	c.q = c.q[1:]
	c.mu.Unlock()
	n := copy(p, msg)
	return n, &net.UDPAddr{}, nil
}

type recordingRcvr struct {
	mu     sync.Mutex
	infos  []product.ProdInfo
	chunks []product.ActualChunk
}

func (r *recordingRcvr) RecvProdInfo(info product.ProdInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, info)
}

func (r *recordingRcvr) RecvChunk(chunk *product.LatentChunk) {
	ac, err := chunk.ToActual()
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, ac)
}

func TestSenderReceiverRoundTrip(t *testing.T) {
	_ = product.SetCanonicalChunkSize(64)

	conn := newLoopConn()
	dst := &net.UDPAddr{IP: net.IPv4(224, 0, 0, 1), Port: 9999}
	sender := NewSender(conn, dst)

	data := bytes.Repeat([]byte{0x5A}, 130)
	info, err := product.NewProdInfo("round.bin", product.ProdIndex(1), product.ProdSize(len(data)), uint16(product.CanonicalChunkSize()))
	if err != nil {
		t.Fatalf("NewProdInfo: %v", err)
	}

	canon := product.CanonicalChunkSize()
	n := info.NumChunks()
	chunkAt := func(idx product.ChunkIndex) (product.ActualChunk, error) {
		ci, err := product.NewChunkInfo(info.Index, info.Size, idx)
		if err != nil {
			return product.ActualChunk{}, err
		}
		start := uint64(idx) * uint64(canon)
		end := start + uint64(ci.Size())
		return product.NewActualChunk(ci, data[start:end])
	}
	if err := sender.SendProduct(info, chunkAt); err != nil {
		t.Fatalf("SendProduct: %v", err)
	}

	rcvr := &recordingRcvr{}
	receiver := NewReceiver(conn, rcvr)

	for i := uint32(0); i < n+1; i++ {
		if err := readOne(receiver); err != nil {
			t.Fatalf("dispatch datagram %d: %v", i, err)
		}
	}

	rcvr.mu.Lock()
	defer rcvr.mu.Unlock()
	if len(rcvr.infos) != 1 || rcvr.infos[0] != info {
		t.Errorf("infos = %+v, want [%+v]", rcvr.infos, info)
	}
	if len(rcvr.chunks) != int(n) {
		t.Fatalf("got %d chunks, want %d", len(rcvr.chunks), n)
	}
	reassembled := make([]byte, 0, len(data))
	for _, c := range rcvr.chunks {
		reassembled = append(reassembled, c.Data...)
	}
	if !bytes.Equal(reassembled, data) {
		t.Error("reassembled multicast data does not match original")
	}
}

// readOne reads and dispatches exactly one datagram, bypassing Receiver's
// infinite Run loop so the test can bound how many datagrams it consumes.
func readOne(r *Receiver) error {
	buf := make([]byte, MaxDatagramSize)
	n, _, err := r.conn.ReadFrom(buf)
	if err != nil {
		return err
	}
	return r.dispatch(buf[:n])
}

func TestReceiverUnknownTagIsFatal(t *testing.T) {
	conn := newLoopConn()
	rcvr := &recordingRcvr{}
	receiver := NewReceiver(conn, rcvr)

	if _, err := conn.WriteTo([]byte{0xFF, 1, 2, 3}, nil); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if err := readOne(receiver); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

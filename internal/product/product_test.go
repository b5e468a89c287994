package product

import (
	"bytes"
	"testing"

	"github.com/hycast/hycast/internal/wire"
)

func TestProdIndexWraparound(t *testing.T) {
	var i ProdIndex = 0
	if got := i.Prev(); got != ProdIndex(^uint32(0)) {
		t.Errorf("Prev() of 0 = %d, want max uint32", got)
	}
	var max ProdIndex = ^ProdIndex(0)
	if got := max.Next(); got != 0 {
		t.Errorf("Next() of max = %d, want 0", got)
	}
}

func TestNumChunks(t *testing.T) {
	cases := []struct {
		size  ProdSize
		canon uint32
		want  uint32
	}{
		{0, 100, 0},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{200, 100, 2},
	}
	for _, c := range cases {
		if got := NumChunks(c.size, c.canon); got != c.want {
			t.Errorf("NumChunks(%d, %d) = %d, want %d", c.size, c.canon, got, c.want)
		}
	}
}

func TestProdInfoRoundTrip(t *testing.T) {
	pi, err := NewProdInfo("widget.dat", ProdIndex(42), ProdSize(1000), 500)
	if err != nil {
		t.Fatalf("NewProdInfo: %v", err)
	}
	e := wire.NewEncoder(64)
	pi.Encode(e, wire.CurrentVersion)
	if e.Len() != pi.GetSerialSize(wire.CurrentVersion) {
		t.Fatalf("GetSerialSize=%d, actual encoded=%d", pi.GetSerialSize(wire.CurrentVersion), e.Len())
	}
	d := wire.NewDecoder(bytes.NewReader(e.Bytes()), uint32(e.Len()))
	got, err := DecodeProdInfo(d, wire.CurrentVersion)
	if err != nil {
		t.Fatalf("DecodeProdInfo: %v", err)
	}
	if got != pi {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, pi)
	}
}

func TestProdInfoNameTooLong(t *testing.T) {
	long := make([]byte, MaxNameLen+1)
	if _, err := NewProdInfo(string(long), 0, 0, 0); err == nil {
		t.Fatal("expected error for oversized name")
	}
}

func TestChunkInfoRoundTrip(t *testing.T) {
	if err := SetCanonicalChunkSize(100); err != nil {
		t.Skipf("canonical size already set: %v", err)
	}
	ci, err := NewChunkInfo(ProdIndex(1), ProdSize(250), ChunkIndex(2))
	if err != nil {
		t.Fatalf("NewChunkInfo: %v", err)
	}
	if got, want := ci.Size(), uint32(50); got != want {
		t.Errorf("last chunk Size() = %d, want %d", got, want)
	}
	e := wire.NewEncoder(16)
	ci.Encode(e, wire.CurrentVersion)
	d := wire.NewDecoder(bytes.NewReader(e.Bytes()), uint32(e.Len()))
	got, err := DecodeChunkInfo(d, wire.CurrentVersion)
	if err != nil {
		t.Fatalf("DecodeChunkInfo: %v", err)
	}
	if got != ci {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, ci)
	}
}

func TestChunkInfoOutOfRange(t *testing.T) {
	if _, err := NewChunkInfo(ProdIndex(1), ProdSize(10), ChunkIndex(99)); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestChunkInfoLess(t *testing.T) {
	a := ChunkInfo{ProdIndex: 1, ChunkIndex: 5}
	b := ChunkInfo{ProdIndex: 1, ChunkIndex: 6}
	c := ChunkInfo{ProdIndex: 2, ChunkIndex: 0}
	if !a.Less(b) {
		t.Error("a should sort before b")
	}
	if !b.Less(c) {
		t.Error("b should sort before c")
	}
}

func TestActualChunkSizeMismatch(t *testing.T) {
	ci := ChunkInfo{ProdIndex: 1, ProdSize: 100, ChunkIndex: 0}
	if _, err := NewActualChunk(ci, make([]byte, 3)); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestLatentChunkDrainOnce(t *testing.T) {
	payload := []byte("hello world!!!!")
	ci := ChunkInfo{ProdIndex: 1, ProdSize: ProdSize(len(payload)), ChunkIndex: 0}
	d := wire.NewDecoder(bytes.NewReader(payload), uint32(len(payload)))
	lc := NewLatentChunk(ci, d, wire.CurrentVersion)

	dst := make([]byte, len(payload))
	if err := lc.Drain(dst); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if !bytes.Equal(dst, payload) {
		t.Errorf("drained %q, want %q", dst, payload)
	}
	if err := lc.Drain(dst); err == nil {
		t.Fatal("expected error draining a second time")
	}
}

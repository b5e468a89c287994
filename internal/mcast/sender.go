package mcast

import (
	"net"

	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/wire"
)

// Sender fragments a Product into a ProdInfo datagram followed by one
// datagram per chunk, each tagged with its message type.
type Sender struct {
	conn PacketConn
	dst  net.Addr
}

// NewSender returns a Sender that writes to dst over conn.
func NewSender(conn PacketConn, dst net.Addr) *Sender {
	return &Sender{conn: conn, dst: dst}
}

// SendProdInfo multicasts a product's metadata, which receivers use to
// learn a product's existence and size before any chunk arrives.
func (s *Sender) SendProdInfo(info product.ProdInfo) error {
	e := wire.NewEncoder(1 + info.GetSerialSize(wire.CurrentVersion))
	e.PutUint8(prodInfoMsgID)
	info.Encode(e, wire.CurrentVersion)
	return s.write(e.Bytes())
}

// SendChunk multicasts one chunk: its ChunkInfo header followed by its
// raw bytes.
func (s *Sender) SendChunk(chunk product.ActualChunk) error {
	e := wire.NewEncoder(1 + chunk.GetSerialSize(wire.CurrentVersion))
	e.PutUint8(chunkMsgID)
	chunk.Encode(e, wire.CurrentVersion)
	return s.write(e.Bytes())
}

// SendProduct multicasts a complete product: its ProdInfo, then one
// datagram per chunk, in index order.
func (s *Sender) SendProduct(info product.ProdInfo, chunkAt func(product.ChunkIndex) (product.ActualChunk, error)) error {
	if err := s.SendProdInfo(info); err != nil {
		return err
	}
	n := info.NumChunks()
	for i := uint32(0); i < n; i++ {
		chunk, err := chunkAt(product.ChunkIndex(i))
		if err != nil {
			return err
		}
		if err := s.SendChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sender) write(b []byte) error {
	if _, err := s.conn.WriteTo(b, s.dst); err != nil {
		return herrors.NewSystemError(err, "write multicast datagram")
	}
	return nil
}

// Package mcast implements the multicast wire format and sender/receiver
// loops: a 1-byte message-type tag per UDP datagram followed by either a
// ProdInfo or a chunk body, letting a receiver fill a product's bulk data
// without a per-chunk round trip to any single peer.
//
// Grounded on the teacher's pkg/p2p/encoding.go framing style applied to
// UDP datagrams instead of a TCP stream, and internal/server/chunked_ops.go's
// chunk-arrival dispatch loop, re-targeted at spec.md §4.6's sender/receiver
// contract. Sender and Receiver work through the PacketConn interface;
// DialGroup opens a joined reader and a writer for a group address, and
// no TTL, loopback or SSM source setting is applied by this package.
package mcast

import (
	"net"

	"github.com/hycast/hycast/internal/product"
)

// Message-type tags, the first byte of every datagram.
const (
	prodInfoMsgID byte = 1
	chunkMsgID    byte = 2
)

// PacketConn is the minimal send/receive interface a multicast transport
// is consumed through. Sender and Receiver do not construct sockets; the
// caller hands in an already-configured PacketConn (DialGroup returns one
// such pair).
type PacketConn interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
}

// ContentRcvr is the capability interface the Receiver delivers decoded
// datagrams to.
type ContentRcvr interface {
	RecvProdInfo(info product.ProdInfo)
	RecvChunk(chunk *product.LatentChunk)
}

// MaxDatagramSize bounds a single multicast message: the chunk message
// whose payload is the largest UDP packet this package will construct,
// sized generously enough for a jumbo canonical chunk size plus headers.
const MaxDatagramSize = 1 << 16

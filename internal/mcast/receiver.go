package mcast

import (
	"bytes"

	"github.com/hycast/hycast/internal/herrors"
	"github.com/hycast/hycast/internal/logging"
	"github.com/hycast/hycast/internal/product"
	"github.com/hycast/hycast/internal/wire"
)

// Receiver reads multicast datagrams from a PacketConn, dispatches each by
// its leading tag byte, and hands the decoded content to a ContentRcvr.
type Receiver struct {
	conn PacketConn
	rcvr ContentRcvr
	log  *logging.Logger
}

// NewReceiver returns a Receiver that reads from conn and delivers
// decoded content to rcvr.
func NewReceiver(conn PacketConn, rcvr ContentRcvr) *Receiver {
	return &Receiver{conn: conn, rcvr: rcvr, log: logging.Nop()}
}

// SetLogger attaches an operational logger, replacing the default no-op
// one. Not safe to call concurrently with Run.
func (r *Receiver) SetLogger(l *logging.Logger) {
	r.log = l
}

// Run loops forever, reading one datagram at a time, dispatching by tag,
// and handing the result to the ContentRcvr, until conn.ReadFrom returns
// an error. An unknown tag is fatal for that message (and, matching
// spec.md §4.6, for the receiver as a whole, since one corrupt datagram on
// a shared multicast group means the format itself is no longer trusted).
func (r *Receiver) Run() error {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, _, err := r.conn.ReadFrom(buf)
		if err != nil {
			return herrors.NewSystemError(err, "read multicast datagram")
		}
		if err := r.dispatch(buf[:n]); err != nil {
			return err
		}
	}
}

func (r *Receiver) dispatch(datagram []byte) error {
	if len(datagram) < 1 {
		return herrors.NewRuntimeError("empty multicast datagram")
	}
	tag := datagram[0]
	body := datagram[1:]
	d := wire.NewDecoder(bytes.NewReader(body), uint32(len(body)))

	switch tag {
	case prodInfoMsgID:
		info, err := product.DecodeProdInfo(d, wire.CurrentVersion)
		if err != nil {
			return err
		}
		r.rcvr.RecvProdInfo(info)

	case chunkMsgID:
		info, err := product.DecodeChunkInfo(d, wire.CurrentVersion)
		if err != nil {
			return err
		}
		chunk := product.NewLatentChunk(info, d, wire.CurrentVersion)
		r.rcvr.RecvChunk(&chunk)

	default:
		r.log.Errorw("mcast", "event", "unknown-tag", "tag", tag)
		return herrors.NewRuntimeError("unknown multicast message tag %d", tag)
	}
	return nil
}

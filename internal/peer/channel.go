package peer

import (
	"github.com/hycast/hycast/internal/wire"
)

// Encodable is anything a Channel can send: it must know its own wire
// size and be able to write itself onto an Encoder.
type Encodable interface {
	GetSerialSize(v wire.Version) int
	Encode(e *wire.Encoder, v wire.Version)
}

// Channel is a typed view over one stream id of a Socket: for an
// Encodable T, Send writes a framed message on that stream. Channel has
// no receive method; the Session's receive loop decodes each stream's
// pending message with a type-specific decode function.
type Channel[T Encodable] struct {
	sock     Socket
	streamID int
	version  wire.Version
}

// NewChannel returns a Channel bound to one stream id of sock.
func NewChannel[T Encodable](sock Socket, streamID int, version wire.Version) *Channel[T] {
	return &Channel[T]{sock: sock, streamID: streamID, version: version}
}

// Send encodes v and writes it as a single framed message on this
// Channel's stream.
func (c *Channel[T]) Send(v T) error {
	e := wire.NewEncoder(v.GetSerialSize(c.version))
	v.Encode(e, c.version)
	_, err := c.sock.Write(c.streamID, e.Bytes())
	return err
}

// Uint32Frame adapts a single uint32 (e.g. a bare ProdIndex request) to
// the Encodable interface, since not every message on the wire is a
// struct with its own Encode method.
type Uint32Frame struct {
	Value uint32
}

func (f Uint32Frame) GetSerialSize(wire.Version) int { return wire.Uint32Size }
func (f Uint32Frame) Encode(e *wire.Encoder, _ wire.Version) {
	e.PutUint32(f.Value)
}

// DecodeUint32Frame reads a single uint32 value, e.g. a PROD_REQ message
// carrying a bare ProdIndex.
func DecodeUint32Frame(d *wire.Decoder, _ wire.Version) (Uint32Frame, error) {
	if err := d.Fill(uint32(wire.Uint32Size)); err != nil {
		return Uint32Frame{}, err
	}
	v, err := d.GetUint32()
	if err != nil {
		return Uint32Frame{}, err
	}
	return Uint32Frame{Value: v}, nil
}

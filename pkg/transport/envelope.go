package transport

import (
	"encoding/binary"
	"fmt"
)

// EnvelopeHeaderSize is the size of the src and dst node IDs.
const EnvelopeHeaderSize = 4

// MaxDatagramSize bounds a datagram including the envelope header.
const MaxDatagramSize = 1280

// MaxPayloadSize bounds the frame carried by one envelope.
const MaxPayloadSize = MaxDatagramSize - EnvelopeHeaderSize

// Broadcast addresses every node.
const Broadcast uint16 = 0xFFFF

// Envelope carries one command class frame between nodes.
// On the wire it is src(2) dst(2) payload, big-endian.
type Envelope struct {
	Src     uint16
	Dst     uint16
	Payload []byte
}

// Marshal returns the wire form of e.
func (e Envelope) Marshal() []byte {
	b := make([]byte, EnvelopeHeaderSize, EnvelopeHeaderSize+len(e.Payload))
	binary.BigEndian.PutUint16(b[0:2], e.Src)
	binary.BigEndian.PutUint16(b[2:4], e.Dst)
	return append(b, e.Payload...)
}

// ParseEnvelope parses a datagram. The payload aliases b.
func ParseEnvelope(b []byte) (Envelope, error) {
	if len(b) < EnvelopeHeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes", ErrShortEnvelope, len(b))
	}
	return Envelope{
		Src:     binary.BigEndian.Uint16(b[0:2]),
		Dst:     binary.BigEndian.Uint16(b[2:4]),
		Payload: b[EnvelopeHeaderSize:],
	}, nil
}

// FrameHandler is called for each frame addressed to the local node.
// Implementations should return quickly; the node posts frames onto its
// event loop.
type FrameHandler func(src uint16, payload []byte)

package route

import "github.com/ulala-x/playhouse/payload"

// Packet pairs a Header with a Payload that is either owned (built from
// raw bytes received off the wire, or about to be sent) or borrowed from an
// enclosing packet.Packet for a zero-copy forward. Ownership is explicit:
// Dispose only releases the payload when this RoutePacket owns it.
type Packet struct {
	Header  Header
	Payload *payload.Payload
	owned   bool
}

// NewOwned builds a RoutePacket that owns data, releasing it on Dispose.
func NewOwned(header Header, data []byte) *Packet {
	return &Packet{Header: header, Payload: payload.New(data), owned: true}
}

// NewBorrowed wraps an existing Payload without taking ownership; Dispose
// is then a no-op, leaving the enclosing packet.Packet responsible for the
// release. This is how the mesh forwards a client packet on to another
// server without copying its bytes.
func NewBorrowed(header Header, p *payload.Payload) *Packet {
	return &Packet{Header: header, Payload: p, owned: false}
}

// Dispose releases the payload reference iff this RoutePacket owns it.
func (p *Packet) Dispose() error {
	if !p.owned || p.Payload == nil {
		return nil
	}
	return p.Payload.Release()
}

// View returns the packet's payload bytes.
func (p *Packet) View() ([]byte, error) { return p.Payload.View() }

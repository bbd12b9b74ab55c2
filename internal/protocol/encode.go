package protocol

import (
	"encoding/binary"
	"fmt"
)

// TagMap assigns a transport type tag to each shape on one link.
type TagMap map[Shape]uint8

// DefaultTags uses the shape id as its own type tag.
func DefaultTags() TagMap {
	m := make(TagMap, len(shapeNames))
	for _, s := range Shapes() {
		m[s] = uint8(s)
	}
	return m
}

func (m TagMap) shapeFor(tag uint8) (Shape, bool) {
	for shape, t := range m {
		if t == tag {
			return shape, true
		}
	}
	return 0, false
}

// Codec encodes and decodes datagrams for one end of one link. Tx sentinels
// are stamped on outbound command/data structs, Rx sentinels are required on
// inbound ones.
type Codec struct {
	Tags TagMap
	Tx   Sentinels
	Rx   Sentinels
}

// Tag returns the type tag for shape on this codec's link.
func (c Codec) Tag(s Shape) (uint8, bool) {
	tag, ok := c.Tags[s]
	return tag, ok
}

// Encode serializes body into a datagram tagged for this link.
func (c Codec) Encode(body Body) (Datagram, error) {
	if body == nil {
		return Datagram{}, ErrUnsupportedBody
	}
	tag, ok := c.Tag(body.Shape())
	if !ok {
		return Datagram{}, fmt.Errorf("%w: no tag for %s", ErrUnknownShape, body.Shape())
	}
	var payload []byte
	switch b := body.(type) {
	case CommandMsg:
		payload = make([]byte, CommandSize)
		payload[0] = c.Tx.Start
		payload[1] = b.Opcode
		binary.LittleEndian.PutUint16(payload[2:4], b.Arg)
		payload[4] = c.Tx.End
	case DataMsg:
		payload = make([]byte, DataSize)
		payload[0] = c.Tx.Start
		payload[1] = b.ID
		copy(payload[2:5], b.Fields[:])
		payload[5] = c.Tx.End
	case PackConfig:
		payload = b.marshal()
	case WandConfig:
		payload = b.marshal()
	case SmokeConfig:
		payload = b.marshal()
	case SyncSnapshot:
		payload = b.marshal()
	default:
		return Datagram{}, fmt.Errorf("%w: %T", ErrUnsupportedBody, body)
	}
	return Datagram{Tag: tag, Payload: payload}, nil
}

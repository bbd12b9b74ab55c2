package protocol

import (
	"encoding/binary"
	"fmt"
)

// ShapeOf resolves the shape for an inbound datagram without decoding it.
func (c Codec) ShapeOf(d Datagram) (Shape, error) {
	shape, ok := c.Tags.shapeFor(d.Tag)
	if !ok {
		return 0, fmt.Errorf("%w: tag=%d", ErrUnknownShape, d.Tag)
	}
	return shape, nil
}

// Decode validates and deserializes d. A datagram whose length does not match
// its shape, or whose sentinels do not match Rx, is rejected whole.
func (c Codec) Decode(d Datagram) (Body, error) {
	shape, err := c.ShapeOf(d)
	if err != nil {
		return nil, err
	}
	if want := shape.Size(); len(d.Payload) != want {
		return nil, fmt.Errorf("%w: %s len=%d want=%d", ErrMalformedDatagram, shape, len(d.Payload), want)
	}
	p := d.Payload
	switch shape {
	case ShapeCommand:
		if err := c.checkSentinels(shape, p); err != nil {
			return nil, err
		}
		return CommandMsg{Opcode: p[1], Arg: binary.LittleEndian.Uint16(p[2:4])}, nil
	case ShapeData:
		if err := c.checkSentinels(shape, p); err != nil {
			return nil, err
		}
		return DataMsg{ID: p[1], Fields: [3]uint8{p[2], p[3], p[4]}}, nil
	case ShapePackConfig:
		return unmarshalPackConfig(p)
	case ShapeWandConfig:
		return unmarshalWandConfig(p)
	case ShapeSmokeConfig:
		return unmarshalSmokeConfig(p)
	case ShapeSync:
		return unmarshalSyncSnapshot(p)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownShape, shape)
	}
}

func (c Codec) checkSentinels(shape Shape, p []byte) error {
	if p[0] != c.Rx.Start || p[len(p)-1] != c.Rx.End {
		return fmt.Errorf(
			"%w: %s sentinels got=%#02x/%#02x want=%#02x/%#02x",
			ErrMalformedDatagram,
			shape,
			p[0],
			p[len(p)-1],
			c.Rx.Start,
			c.Rx.End,
		)
	}
	return nil
}

package link

import (
	"fmt"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/observability"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
)

func (l *Link) encodeAction(action catalog.Action, arg uint16) (protocol.Datagram, error) {
	op, ok := l.cat.Opcode(action)
	if !ok {
		return protocol.Datagram{}, fmt.Errorf("%w: link=%s action=%s", ErrNotInCatalog, l.id, action)
	}
	return l.codec.Encode(protocol.CommandMsg{Opcode: op, Arg: arg})
}

func (l *Link) sendAction(action catalog.Action, arg uint16) error {
	d, err := l.encodeAction(action, arg)
	if err != nil {
		return err
	}
	return l.sendDatagram(d, protocol.ShapeCommand)
}

func (l *Link) sendBody(body protocol.Body) error {
	d, err := l.codec.Encode(body)
	if err != nil {
		return err
	}
	return l.sendDatagram(d, body.Shape())
}

func (l *Link) sendDatagram(d protocol.Datagram, shape protocol.Shape) error {
	err := l.tr.Send(d.Tag, d.Payload)
	observability.RecordSend(l.node, string(l.id), shape.String(), err == nil)
	if err != nil {
		logs.Warnf("link.Link.send node=%s link=%s shape=%s err=%v", l.node, l.id, shape, err)
		return err
	}
	l.counters.sent++
	return nil
}

// SendAction sends action in this link's namespace.
func (l *Link) SendAction(action catalog.Action, arg uint16) error {
	if l.state != StateConnected {
		return ErrNotConnected
	}
	return l.sendAction(action, arg)
}

// SendBlob encodes and sends a config blob.
func (l *Link) SendBlob(body protocol.Body) error {
	if l.state != StateConnected {
		return ErrNotConnected
	}
	if !l.cat.CarriesShape(body.Shape()) {
		return fmt.Errorf("%w: link=%s shape=%s", ErrShapeNotCarried, l.id, body.Shape())
	}
	return l.sendBody(body)
}

// Forward re-tags a datagram received on another link into this link's
// tag space. The payload bytes are sent unchanged.
func (l *Link) Forward(shape protocol.Shape, d protocol.Datagram) error {
	if l.state != StateConnected {
		return ErrNotConnected
	}
	tag, ok := l.codec.Tag(shape)
	if !ok {
		return fmt.Errorf("%w: link=%s shape=%s", ErrShapeNotCarried, l.id, shape)
	}
	return l.sendDatagram(protocol.Datagram{Tag: tag, Payload: d.Payload}, shape)
}

// PushState propagates one state change to the peer. Links without the
// action in their catalog but with snapshot dumps get a fresh snapshot;
// otherwise the change is skipped.
func (l *Link) PushState(action catalog.Action, arg uint16) error {
	if l.state != StateConnected {
		return ErrNotConnected
	}
	if l.cat.Has(action) {
		return l.sendAction(action, arg)
	}
	if l.cat.SnapshotDump {
		return l.sendBody(l.st.Snapshot())
	}
	return nil
}

// PushVolume propagates the volume triple to the peer.
func (l *Link) PushVolume(fields [3]uint8) error {
	if l.state != StateConnected {
		return ErrNotConnected
	}
	if l.cat.SnapshotDump {
		return l.sendBody(l.st.Snapshot())
	}
	if !l.cat.CarriesShape(protocol.ShapeData) {
		return nil
	}
	return l.sendBody(protocol.DataMsg{ID: l.cat.VolumeID, Fields: fields})
}

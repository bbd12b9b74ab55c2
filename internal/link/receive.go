package link

import (
	"errors"
	"time"

	"github.com/danmuck/packlink/internal/observability"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
)

// receive runs one inbound datagram through loopback detection, decode,
// accept rules and the handler table. Rejected traffic never changes state
// and never refreshes liveness.
func (l *Link) receive(now time.Time, d protocol.Datagram) {
	if l.state == StateStandalone {
		l.drop(DropStandalone, "inbound while standalone")
		return
	}
	if l.role == RoleSubordinate && l.state == StateDisconnected && l.hasProbe && d.Equal(l.lastProbe) {
		l.drop(DropLoopback, "own SYNC_NOW echoed")
		l.enterStandalone(now)
		return
	}
	body, err := l.codec.Decode(d)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownShape) {
			l.drop(DropUnknownShape, err.Error())
		} else {
			l.drop(DropMalformed, err.Error())
		}
		return
	}

	switch b := body.(type) {
	case protocol.CommandMsg:
		l.receiveCommand(now, b)
	case protocol.DataMsg:
		l.receiveData(now, b)
	case protocol.SyncSnapshot:
		l.receiveSnapshot(now, b)
	case protocol.PackConfig, protocol.WandConfig, protocol.SmokeConfig:
		l.receiveBlob(now, body, d)
	default:
		l.drop(DropUnknownShape, body.Shape().String())
	}
}

func (l *Link) accepted(now time.Time, shape protocol.Shape) {
	l.counters.received++
	l.refresh(now)
	observability.RecordDatagram(l.node, string(l.id), shape.String())
}

// accepts applies the per-role, per-state whitelist.
func (l *Link) accepts(action catalog.Action) bool {
	switch l.state {
	case StateConnected:
		return true
	case StateSyncing:
		if l.role == RoleAuthoritative {
			return action == catalog.ActionSyncNow || action == catalog.ActionHandshake
		}
		return action == catalog.ActionSyncStart || action == catalog.ActionSyncEnd || action.StateBearing()
	case StateDisconnected:
		if l.role == RoleAuthoritative {
			return action == catalog.ActionSyncNow
		}
		return action == catalog.ActionSyncStart
	default:
		return false
	}
}

func (l *Link) receiveCommand(now time.Time, msg protocol.CommandMsg) {
	e, ok := l.handlers[msg.Opcode]
	if !ok {
		l.drop(DropUnexpectedOpcode, "opcode not in catalog")
		return
	}
	if !l.accepts(e.action) {
		l.drop(DropUnexpectedOpcode, e.action.String()+" in "+l.state.String())
		return
	}
	if e.action == catalog.ActionSyncNow && l.role == RoleAuthoritative && l.syncInFlight {
		l.accepted(now, protocol.ShapeCommand)
		l.drop(DropSyncInFlight, "sync already running")
		return
	}
	l.accepted(now, protocol.ShapeCommand)
	e.handle(now, msg.Arg)
}

// receiveData handles the volume triple, the only DataMsg on any link.
func (l *Link) receiveData(now time.Time, msg protocol.DataMsg) {
	if msg.ID != l.cat.VolumeID {
		l.drop(DropUnexpectedOpcode, "unknown data id")
		return
	}
	if !l.acceptsState() {
		l.drop(DropUnexpectedOpcode, "volume in "+l.state.String())
		return
	}
	l.accepted(now, protocol.ShapeData)
	if l.st.ApplyVolume(msg.Fields) && l.hooks.VolumeChanged != nil {
		l.hooks.VolumeChanged(l, msg.Fields)
	}
}

// receiveSnapshot applies a full snapshot to the shadow. Only the
// authoritative end sources snapshots, so it never accepts one.
func (l *Link) receiveSnapshot(now time.Time, snap protocol.SyncSnapshot) {
	if l.role != RoleSubordinate || !l.acceptsState() {
		l.drop(DropUnexpectedOpcode, "snapshot in "+l.state.String())
		return
	}
	l.accepted(now, protocol.ShapeSync)
	l.st.ApplySnapshot(snap)
}

func (l *Link) receiveBlob(now time.Time, body protocol.Body, d protocol.Datagram) {
	if l.state != StateConnected {
		l.drop(DropUnexpectedOpcode, body.Shape().String()+" in "+l.state.String())
		return
	}
	kind, ok := protocol.KindForShape(body.Shape())
	if !ok {
		l.drop(DropUnknownShape, body.Shape().String())
		return
	}
	l.accepted(now, body.Shape())
	if l.hooks.Blob != nil {
		l.hooks.Blob(l, kind, body, d)
	}
}

// acceptsState reports whether state-bearing data may be applied now.
func (l *Link) acceptsState() bool {
	if l.state == StateConnected {
		return true
	}
	return l.state == StateSyncing && l.role == RoleSubordinate
}

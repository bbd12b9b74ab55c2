package link

import (
	"time"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
)

// buildHandlers binds every opcode of the catalog to its handler once, at
// construction. Protocol actions stay inside the link; state-bearing
// actions update the shared state and then reach the dispatcher; relay
// actions go to the node; everything else reaches the dispatcher only.
func (l *Link) buildHandlers() map[uint8]entry {
	out := make(map[uint8]entry, len(l.cat.Entries()))
	for _, e := range l.cat.Entries() {
		action := e.Action
		var fn func(now time.Time, arg uint16)
		switch action.Class() {
		case catalog.ClassProtocol:
			fn = l.protocolHandler(action)
		case catalog.ClassRelay:
			fn = func(now time.Time, arg uint16) { l.handleRelay(action, arg) }
		case catalog.ClassState:
			fn = func(now time.Time, arg uint16) { l.handleState(action, arg) }
		default:
			fn = func(now time.Time, arg uint16) { l.disp.Handle(l.id, action, arg) }
		}
		out[e.Opcode] = entry{action: action, handle: fn}
	}
	return out
}

func (l *Link) protocolHandler(action catalog.Action) func(now time.Time, arg uint16) {
	switch action {
	case catalog.ActionSyncNow:
		if l.role == RoleAuthoritative {
			return l.handleSyncNow
		}
	case catalog.ActionSyncStart:
		if l.role == RoleSubordinate {
			return l.handleSyncStart
		}
	case catalog.ActionSyncEnd:
		if l.role == RoleSubordinate {
			return l.handleSyncEnd
		}
	case catalog.ActionHandshake:
		if l.role == RoleAuthoritative {
			return l.handleHandshake
		}
	}
	// the other end's half of the protocol: liveness only
	return func(time.Time, uint16) {}
}

func (l *Link) handleSyncNow(now time.Time, _ uint16) {
	l.transition(now, StateSyncing, "sync_now")
	l.counters.syncRuns++
	l.syncer = newSynchronizer(l)
}

func (l *Link) handleSyncStart(now time.Time, arg uint16) {
	l.transition(now, StateSyncing, "sync_start")
	l.disp.Handle(l.id, catalog.ActionSyncStart, arg)
}

func (l *Link) handleSyncEnd(now time.Time, arg uint16) {
	if l.state != StateSyncing {
		return
	}
	if !l.disp.Handle(l.id, catalog.ActionSyncEnd, arg) {
		logs.Warnf("link.Link.handleSyncEnd node=%s link=%s milestone not satisfied", l.node, l.id)
		return
	}
	l.transition(now, StateConnected, "sync_end")
}

func (l *Link) handleHandshake(now time.Time, _ uint16) {
	_ = l.sendAction(catalog.ActionHandshake, 0)
}

func (l *Link) handleState(action catalog.Action, arg uint16) {
	changed := l.st.Apply(action, arg)
	l.disp.Handle(l.id, action, arg)
	if changed && l.hooks.StateChanged != nil {
		l.hooks.StateChanged(l, action, arg)
	}
}

func (l *Link) handleRelay(action catalog.Action, arg uint16) {
	kind := protocol.ConfigKind(arg)
	if _, err := kind.Shape(); err != nil {
		l.drop(DropUnexpectedOpcode, err.Error())
		return
	}
	if l.hooks.Relay != nil {
		l.hooks.Relay(l, action, kind)
	}
}

func (l *Link) enterStandalone(now time.Time) {
	if l.standalone != nil {
		*l.st = l.standalone()
	}
	l.transition(now, StateStandalone, string(DropLoopback))
}

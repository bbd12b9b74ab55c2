package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/packlink/internal/link"
	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/observability"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
)

// LocalRequester marks a request made by this node's own UI. Its answer
// lands in the store mirror instead of being forwarded.
const LocalRequester link.LinkID = ""

const saveTimeout = 2 * time.Second

func (n *Node) onRelay(from *link.Link, action catalog.Action, kind protocol.ConfigKind) {
	var err error
	switch action {
	case catalog.ActionConfigRequest:
		err = n.relayRequest(kind, from.ID())
	case catalog.ActionConfigSave:
		_, err = n.relaySave(kind, from.ID())
	}
	if err != nil {
		logs.Warnf("node.Node.onRelay node=%s link=%s action=%s kind=%s err=%v", n.name, from.ID(), action, kind, err)
	}
}

// RequestConfig asks for kind on behalf of from. If this node owns kind the
// answer goes straight back on from; otherwise the request is forwarded to
// the owner and answered later, when the blob arrives. A request the owner
// never answers stays pending without error. Loop goroutine only.
func (n *Node) RequestConfig(kind protocol.ConfigKind, from link.LinkID) error {
	if _, err := kind.Shape(); err != nil {
		return err
	}
	if from != LocalRequester {
		if _, err := n.link(from); err != nil {
			return err
		}
	}
	return n.relayRequest(kind, from)
}

func (n *Node) relayRequest(kind protocol.ConfigKind, from link.LinkID) error {
	if n.store.Owns(kind) {
		if from == LocalRequester {
			return nil
		}
		body, _ := n.store.Get(kind)
		observability.RecordRelay(n.name, kind.String(), "answer")
		return n.byID[from].SendBlob(body)
	}
	ownerID, ok := n.owners[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoOwner, kind)
	}
	if ownerID == from {
		return fmt.Errorf("node: %s requested its own %s config", from, kind)
	}
	pending := n.outbox.Add(kind, string(from), time.Now())
	observability.SetRelayPending(n.name, n.outbox.Len())
	observability.RecordRelay(n.name, kind.String(), "request")
	logs.Debugf("node.Node.relayRequest node=%s kind=%s owner=%s requesters=%v forwards=%d",
		n.name, kind, ownerID, pending.Requesters, pending.Forwards)
	// an unsent request stays pending; the next request for kind retries it
	err := n.byID[ownerID].SendAction(catalog.ActionConfigRequest, uint16(kind))
	if errors.Is(err, link.ErrNotConnected) {
		logs.Debugf("node.Node.relayRequest node=%s kind=%s owner=%s not connected", n.name, kind, ownerID)
		return nil
	}
	return err
}

// onBlob routes a config blob. From the owner it answers pending requests
// verbatim and refreshes the mirror; an owned kind is applied; anything
// else is pushed on to its owner.
func (n *Node) onBlob(from *link.Link, kind protocol.ConfigKind, body protocol.Body, d protocol.Datagram) {
	ownerID, remote := n.owners[kind]
	switch {
	case remote && ownerID == from.ID():
		n.deliver(kind, body, d)
	case n.store.Owns(kind):
		if err := n.store.Apply(kind, body); err != nil {
			logs.Errf("node.Node.onBlob node=%s kind=%s apply err=%v", n.name, kind, err)
		}
	case remote:
		observability.RecordRelay(n.name, kind.String(), "push")
		if err := n.byID[ownerID].Forward(body.Shape(), d); err != nil {
			logs.Warnf("node.Node.onBlob node=%s kind=%s push owner=%s err=%v", n.name, kind, ownerID, err)
		}
	default:
		logs.Warnf("node.Node.onBlob node=%s kind=%s from=%s no owner", n.name, kind, from.ID())
	}
}

func (n *Node) deliver(kind protocol.ConfigKind, body protocol.Body, d protocol.Datagram) {
	if err := n.store.Mirror(kind, body); err != nil {
		logs.Errf("node.Node.deliver node=%s kind=%s mirror err=%v", n.name, kind, err)
	}
	pending, ok := n.outbox.Take(kind)
	observability.SetRelayPending(n.name, n.outbox.Len())
	if !ok {
		return
	}
	for _, req := range pending.Requesters {
		l, found := n.byID[link.LinkID(req)]
		if !found {
			continue
		}
		observability.RecordRelay(n.name, kind.String(), "deliver")
		if err := l.Forward(body.Shape(), d); err != nil {
			logs.Warnf("node.Node.deliver node=%s kind=%s to=%s err=%v", n.name, kind, req, err)
		}
	}
	logs.Infof("node.Node.deliver node=%s kind=%s requesters=%v", n.name, kind, pending.Requesters)
}

// PushConfig replaces kind at its owner: applied locally when owned,
// otherwise sent toward the owner. Nothing is persisted until SaveConfig.
// Loop goroutine only.
func (n *Node) PushConfig(kind protocol.ConfigKind, body protocol.Body) error {
	if n.store.Owns(kind) {
		return n.store.Apply(kind, body)
	}
	ownerID, ok := n.owners[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoOwner, kind)
	}
	return n.byID[ownerID].SendBlob(body)
}

// SaveConfig persists kind at its owner. An owned kind is written off the
// loop and the returned channel receives the result once; a save sent on to
// the owner returns a nil channel. Loop goroutine only.
func (n *Node) SaveConfig(kind protocol.ConfigKind) (<-chan error, error) {
	if _, err := kind.Shape(); err != nil {
		return nil, err
	}
	return n.relaySave(kind, LocalRequester)
}

func (n *Node) relaySave(kind protocol.ConfigKind, from link.LinkID) (<-chan error, error) {
	if n.store.Owns(kind) {
		return n.persist(kind, from), nil
	}
	ownerID, ok := n.owners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoOwner, kind)
	}
	if ownerID == from {
		return nil, fmt.Errorf("node: %s asked us to save its own %s config", from, kind)
	}
	observability.RecordRelay(n.name, kind.String(), "save")
	return nil, n.byID[ownerID].SendAction(catalog.ActionConfigSave, uint16(kind))
}

// persist runs Store.Save on its own goroutine and reports back on the loop.
func (n *Node) persist(kind protocol.ConfigKind, from link.LinkID) <-chan error {
	result := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := n.store.Save(ctx, kind)
		cancel()
		result <- err

		report := func() {
			if err != nil {
				observability.RecordRelay(n.name, kind.String(), "save_failed")
				logs.Warnf("node.Node.persist node=%s kind=%s from=%q err=%v", n.name, kind, from, err)
				return
			}
			observability.RecordRelay(n.name, kind.String(), "saved")
			logs.Infof("node.Node.persist node=%s kind=%s from=%q saved", n.name, kind, from)
		}
		if n.Submit(report) != nil {
			report()
		}
	}()
	return result
}

// Package node owns one fleet controller: its links, shared state, config
// store and the relay between links.
//
// All link work happens inside Tick on a single goroutine. Other
// goroutines (admin API, UI) read published Status copies and marshal
// mutations onto the loop with Submit or Do.
package node

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/packlink/internal/link"
	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/protocol/session"
	"github.com/danmuck/packlink/internal/state"
	"github.com/danmuck/packlink/internal/store"
	"github.com/danmuck/packlink/internal/transport"
)

var (
	ErrInvalidNode = errors.New("node: invalid node")
	ErrUnknownLink = errors.New("node: unknown link")
	ErrNoOwner     = errors.New("node: no owner for config kind")
	ErrBusy        = errors.New("node: submit queue full")
	ErrNotEffect   = errors.New("node: not an effect action")
)

// LinkSpec declares one link. Owns lists the config kinds reachable
// through this link, i.e. owned by the far end or by something behind it.
type LinkSpec struct {
	ID        link.LinkID
	Role      link.Role
	Catalog   *catalog.Catalog
	Transport transport.Transport
	Owns      []protocol.ConfigKind
}

type Options struct {
	Name       string
	Kind       string
	Session    session.Config
	Store      *store.Store
	Dispatcher link.Dispatcher
	// State seeds the node's shared state; defaults to state.Default().
	State        *state.Shared
	BootSequence bool
	Links        []LinkSpec
	SubmitBuffer int
	Seed         int64
}

// Node is one controller in the fleet.
type Node struct {
	name string
	kind string

	st     state.Shared
	store  *store.Store
	disp   link.Dispatcher
	outbox *session.RelayOutbox

	links  []*link.Link
	byID   map[link.LinkID]*link.Link
	owners map[protocol.ConfigKind]link.LinkID

	submit chan func()

	mu     sync.RWMutex
	status Status
}

func New(opts Options) (*Node, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidNode)
	}
	if len(opts.Links) == 0 {
		return nil, fmt.Errorf("%w: node=%s has no links", ErrInvalidNode, opts.Name)
	}
	st := opts.Store
	if st == nil {
		st = store.New(nil, nil)
	}
	disp := opts.Dispatcher
	if disp == nil {
		disp = link.NewHandlerTable()
	}
	buffer := opts.SubmitBuffer
	if buffer <= 0 {
		buffer = 64
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	n := &Node{
		name:   opts.Name,
		kind:   opts.Kind,
		st:     state.Default(),
		store:  st,
		disp:   disp,
		outbox: session.NewRelayOutbox(),
		byID:   make(map[link.LinkID]*link.Link, len(opts.Links)),
		owners: make(map[protocol.ConfigKind]link.LinkID),
		submit: make(chan func(), buffer),
	}
	if opts.State != nil {
		n.st = *opts.State
	}

	for i, spec := range opts.Links {
		if _, dup := n.byID[spec.ID]; dup {
			return nil, fmt.Errorf("%w: node=%s duplicate link %s", ErrInvalidNode, n.name, spec.ID)
		}
		for _, kind := range spec.Owns {
			if st.Owns(kind) {
				return nil, fmt.Errorf("%w: node=%s owns %s locally and via link %s", ErrInvalidNode, n.name, kind, spec.ID)
			}
			if prev, dup := n.owners[kind]; dup {
				return nil, fmt.Errorf("%w: node=%s %s owned via %s and %s", ErrInvalidNode, n.name, kind, prev, spec.ID)
			}
			n.owners[kind] = spec.ID
		}
		l, err := link.New(link.Options{
			ID:           spec.ID,
			Node:         n.name,
			Role:         spec.Role,
			Catalog:      spec.Catalog,
			Transport:    spec.Transport,
			Session:      opts.Session,
			Dispatcher:   disp,
			State:        &n.st,
			Standalone:   n.synthesize,
			BootSequence: opts.BootSequence,
			Hooks: link.Hooks{
				Relay:         n.onRelay,
				Blob:          n.onBlob,
				StateChanged:  n.onStateChanged,
				VolumeChanged: n.onVolumeChanged,
			},
			Rand: rand.New(rand.NewSource(seed + int64(i))),
		})
		if err != nil {
			return nil, fmt.Errorf("node=%s: %w", n.name, err)
		}
		n.links = append(n.links, l)
		n.byID[spec.ID] = l
	}
	n.publish(time.Time{})
	logs.Infof("node.New name=%s kind=%s links=%d owned=%v", n.name, n.kind, len(n.links), st.Owned())
	return n, nil
}

func (n *Node) NodeID() string { return n.name }
func (n *Node) Kind() string   { return n.kind }

// Store exposes the config store; it is safe for concurrent use.
func (n *Node) Store() *store.Store { return n.store }

// synthesize builds the standalone shadow from persisted config.
func (n *Node) synthesize() state.Shared {
	return state.FromConfig(n.store.Pack(), n.store.Wand())
}

func (n *Node) link(id link.LinkID) (*link.Link, error) {
	l, ok := n.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLink, id)
	}
	return l, nil
}

// Link returns the link with id. Loop goroutine only.
func (n *Node) Link(id link.LinkID) (*link.Link, bool) {
	l, ok := n.byID[id]
	return l, ok
}

// SharedState returns the node's live state. Loop goroutine only; other
// goroutines read Status().State.
func (n *Node) SharedState() state.Shared {
	return n.st
}

// Apply changes the local state and propagates it to every connected link.
// Loop goroutine only.
func (n *Node) Apply(action catalog.Action, arg uint16) bool {
	if !action.StateBearing() {
		return false
	}
	if !n.st.Apply(action, arg) {
		return false
	}
	n.fanOut("", action, arg)
	return true
}

// SetVolume changes the local volume triple and propagates it.
func (n *Node) SetVolume(fields [3]uint8) bool {
	if !n.st.ApplyVolume(fields) {
		return false
	}
	n.fanOutVolume("", n.st.Volume())
	return true
}

// Trigger sends an effect action (firing, vent, ...) to one connected link.
// Protocol, relay and state actions have their own paths and are refused.
func (n *Node) Trigger(id link.LinkID, action catalog.Action, arg uint16) error {
	if action.Class() != catalog.ClassEffect {
		return fmt.Errorf("%w: %s", ErrNotEffect, action)
	}
	l, err := n.link(id)
	if err != nil {
		return err
	}
	return l.SendAction(action, arg)
}

func (n *Node) onStateChanged(from *link.Link, action catalog.Action, arg uint16) {
	n.fanOut(from.ID(), action, arg)
}

func (n *Node) onVolumeChanged(from *link.Link, fields [3]uint8) {
	n.fanOutVolume(from.ID(), fields)
}

// fanOut re-sends a state change to every other connected link, translated
// into that link's namespace.
func (n *Node) fanOut(except link.LinkID, action catalog.Action, arg uint16) {
	for _, l := range n.links {
		if l.ID() == except || !l.PeerPresent() {
			continue
		}
		if err := l.PushState(action, arg); err != nil {
			logs.Warnf("node.Node.fanOut node=%s link=%s action=%s err=%v", n.name, l.ID(), action, err)
		}
	}
}

func (n *Node) fanOutVolume(except link.LinkID, fields [3]uint8) {
	for _, l := range n.links {
		if l.ID() == except || !l.PeerPresent() {
			continue
		}
		if err := l.PushVolume(fields); err != nil {
			logs.Warnf("node.Node.fanOutVolume node=%s link=%s err=%v", n.name, l.ID(), err)
		}
	}
}

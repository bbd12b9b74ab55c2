package node

import (
	"fmt"
	"time"

	"github.com/danmuck/packlink/internal/link"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/protocol/session"
	"github.com/danmuck/packlink/internal/store"
	"github.com/danmuck/packlink/internal/transport"
)

// Fleet node names.
const (
	NamePack       = "pack"
	NameWand       = "wand"
	NameAttenuator = "attenuator"
	NameBelt       = "belt"
)

// OwnedKinds lists the config kinds each fleet node owns.
func OwnedKinds(name string) []protocol.ConfigKind {
	switch name {
	case NamePack:
		return []protocol.ConfigKind{protocol.ConfigPack, protocol.ConfigSmoke}
	case NameWand:
		return []protocol.ConfigKind{protocol.ConfigWand}
	default:
		return nil
	}
}

// FleetConfig configures an in-process fleet.
type FleetConfig struct {
	Session session.Config
	// Stores overrides the per-node store; missing entries get memory stores.
	Stores map[string]*store.Store
	// Dispatchers overrides the per-node dispatcher.
	Dispatchers  map[string]link.Dispatcher
	BootSequence bool
	Buffer       int
	Seed         int64
}

// Fleet wires pack, wand, attenuator and belt over in-memory pipes, the
// pack being authoritative on every wire.
type Fleet struct {
	Pack       *Node
	Wand       *Node
	Attenuator *Node
	Belt       *Node

	// Wires holds the pack-side pipe endpoint per peer name.
	Wires map[string]*transport.Endpoint
}

func NewFleet(cfg FleetConfig) (*Fleet, error) {
	wandCat, err := catalog.Wand()
	if err != nil {
		return nil, err
	}
	attCat, err := catalog.Attenuator()
	if err != nil {
		return nil, err
	}
	beltCat, err := catalog.Belt()
	if err != nil {
		return nil, err
	}
	storeFor := func(name string) *store.Store {
		if s, ok := cfg.Stores[name]; ok && s != nil {
			return s
		}
		return store.New(OwnedKinds(name), nil)
	}
	dispFor := func(name string) link.Dispatcher {
		return cfg.Dispatchers[name]
	}

	wandHub, wandEnd := transport.NewPipe(NameWand, cfg.Buffer)
	attHub, attEnd := transport.NewPipe(NameAttenuator, cfg.Buffer)
	beltHub, beltEnd := transport.NewPipe(NameBelt, cfg.Buffer)
	f := &Fleet{Wires: map[string]*transport.Endpoint{
		NameWand:       wandHub,
		NameAttenuator: attHub,
		NameBelt:       beltHub,
	}}

	remote := []protocol.ConfigKind{protocol.ConfigPack, protocol.ConfigSmoke}
	build := []struct {
		dst  **Node
		name string
		opts []LinkSpec
	}{
		{&f.Pack, NamePack, []LinkSpec{
			{ID: NameWand, Role: link.RoleAuthoritative, Catalog: wandCat, Transport: wandHub, Owns: OwnedKinds(NameWand)},
			{ID: NameAttenuator, Role: link.RoleAuthoritative, Catalog: attCat, Transport: attHub},
			{ID: NameBelt, Role: link.RoleAuthoritative, Catalog: beltCat, Transport: beltHub},
		}},
		{&f.Wand, NameWand, []LinkSpec{
			{ID: NamePack, Role: link.RoleSubordinate, Catalog: wandCat, Transport: wandEnd, Owns: remote},
		}},
		{&f.Attenuator, NameAttenuator, []LinkSpec{
			{ID: NamePack, Role: link.RoleSubordinate, Catalog: attCat, Transport: attEnd,
				Owns: append(append([]protocol.ConfigKind(nil), remote...), protocol.ConfigWand)},
		}},
		{&f.Belt, NameBelt, []LinkSpec{
			{ID: NamePack, Role: link.RoleSubordinate, Catalog: beltCat, Transport: beltEnd},
		}},
	}
	for i, b := range build {
		n, err := New(Options{
			Name:         b.name,
			Kind:         b.name,
			Session:      cfg.Session,
			Store:        storeFor(b.name),
			Dispatcher:   dispFor(b.name),
			BootSequence: cfg.BootSequence && b.name == NamePack,
			Links:        b.opts,
			Seed:         cfg.Seed + int64(i)*100 + 1,
		})
		if err != nil {
			return nil, fmt.Errorf("fleet %s: %w", b.name, err)
		}
		*b.dst = n
	}
	return f, nil
}

// Nodes returns the nodes in tick order.
func (f *Fleet) Nodes() []*Node {
	return []*Node{f.Wand, f.Attenuator, f.Belt, f.Pack}
}

func (f *Fleet) Tick(now time.Time) {
	for _, n := range f.Nodes() {
		n.Tick(now)
	}
}

// Converged reports whether every wire is connected on both ends.
func (f *Fleet) Converged() bool {
	for _, peer := range []*Node{f.Wand, f.Attenuator, f.Belt} {
		if !peer.IsPeerPresent(NamePack) || !f.Pack.IsPeerPresent(link.LinkID(peer.NodeID())) {
			return false
		}
	}
	return true
}

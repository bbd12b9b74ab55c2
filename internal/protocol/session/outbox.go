package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/packlink/internal/protocol"
)

// PendingRelay tracks one config kind requested from its owner on behalf of
// one or more other links. Entries have no deadline; an owner that never
// answers leaves the entry in place until a later answer arrives.
type PendingRelay struct {
	Kind        protocol.ConfigKind
	Requesters  []string
	Forwards    int
	QueuedAt    time.Time
	LastForward time.Time
}

// RelayOutbox stores pending relays by kind.
type RelayOutbox struct {
	mu    sync.RWMutex
	items map[protocol.ConfigKind]PendingRelay
}

func NewRelayOutbox() *RelayOutbox {
	return &RelayOutbox{
		items: make(map[protocol.ConfigKind]PendingRelay),
	}
}

// Add records requester for kind and counts one forward to the owner.
// Repeat requests from the same link coalesce.
func (o *RelayOutbox) Add(kind protocol.ConfigKind, requester string, at time.Time) PendingRelay {
	key := strings.TrimSpace(requester)
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[kind]
	if !ok {
		item = PendingRelay{Kind: kind, QueuedAt: at}
	}
	if key != "" && !containsString(item.Requesters, key) {
		item.Requesters = append(item.Requesters, key)
	}
	item.Forwards++
	item.LastForward = at
	o.items[kind] = item
	return clonePending(item)
}

// Take removes and returns the entry for kind.
func (o *RelayOutbox) Take(kind protocol.ConfigKind) (PendingRelay, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	item, ok := o.items[kind]
	if ok {
		delete(o.items, kind)
	}
	return clonePending(item), ok
}

func (o *RelayOutbox) Get(kind protocol.ConfigKind) (PendingRelay, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	item, ok := o.items[kind]
	return clonePending(item), ok
}

func (o *RelayOutbox) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.items)
}

func (o *RelayOutbox) List() []PendingRelay {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]PendingRelay, 0, len(o.items))
	for _, item := range o.items {
		out = append(out, clonePending(item))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Kind < out[j].Kind
	})
	return out
}

func clonePending(p PendingRelay) PendingRelay {
	p.Requesters = append([]string(nil), p.Requesters...)
	return p
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

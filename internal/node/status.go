package node

import (
	"time"

	"github.com/danmuck/packlink/internal/link"
	"github.com/danmuck/packlink/internal/state"
	"github.com/danmuck/packlink/internal/store"
)

type RelayStatus struct {
	Kind       string   `json:"kind"`
	Requesters []string `json:"requesters"`
	Forwards   int      `json:"forwards"`
}

// Status is a copy of node state safe to read from any goroutine.
type Status struct {
	Name      string        `json:"name"`
	Kind      string        `json:"kind"`
	Links     []link.Status `json:"links"`
	State     state.Shared  `json:"state"`
	Configs   []store.Info  `json:"configs"`
	Pending   []RelayStatus `json:"pending_relays"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (n *Node) publish(now time.Time) {
	st := Status{
		Name:      n.name,
		Kind:      n.kind,
		Links:     make([]link.Status, 0, len(n.links)),
		State:     n.st,
		Configs:   n.store.Info(),
		UpdatedAt: now,
	}
	for _, l := range n.links {
		st.Links = append(st.Links, l.Status())
	}
	for _, p := range n.outbox.List() {
		st.Pending = append(st.Pending, RelayStatus{Kind: p.Kind.String(), Requesters: p.Requesters, Forwards: p.Forwards})
	}
	n.mu.Lock()
	n.status = st
	n.mu.Unlock()
}

func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// IsPeerPresent reports whether link id was connected at the last tick.
// Safe from any goroutine.
func (n *Node) IsPeerPresent(id link.LinkID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, l := range n.status.Links {
		if l.ID == id {
			return l.PeerPresent
		}
	}
	return false
}

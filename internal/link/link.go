package link

import (
	"fmt"
	"math/rand"
	"time"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/observability"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/protocol/session"
	"github.com/danmuck/packlink/internal/state"
	"github.com/danmuck/packlink/internal/transport"
)

// Hooks let the owning node observe link traffic that crosses links.
// Every hook runs on the control loop; nil hooks are skipped.
type Hooks struct {
	// Relay receives CONFIG_REQUEST / CONFIG_SAVE with the decoded kind.
	Relay func(l *Link, action catalog.Action, kind protocol.ConfigKind)
	// Blob receives config blobs; d is the raw datagram for verbatim forwarding.
	Blob func(l *Link, kind protocol.ConfigKind, body protocol.Body, d protocol.Datagram)
	// StateChanged fires when an inbound action changed the shared state.
	StateChanged func(l *Link, action catalog.Action, arg uint16)
	// VolumeChanged fires when an inbound volume triple changed the shared state.
	VolumeChanged func(l *Link, fields [3]uint8)
	// Transition fires after every state change.
	Transition func(l *Link, from, to State, reason string)
}

// Options configure a Link. State is shared with the owning node: the
// source on an authoritative end, the shadow on a subordinate end.
type Options struct {
	ID         LinkID
	Node       string
	Role       Role
	Catalog    *catalog.Catalog
	Transport  transport.Transport
	Session    session.Config
	Dispatcher Dispatcher
	State      *state.Shared
	// Standalone synthesizes the shadow when loopback is detected.
	Standalone func() state.Shared
	// BootSequence sets the SYNC_START flag telling the peer to delay
	// dependent actions.
	BootSequence bool
	Hooks        Hooks
	Rand         *rand.Rand
}

type entry struct {
	action catalog.Action
	handle func(now time.Time, arg uint16)
}

// Link is one end of one serial connection.
type Link struct {
	id    LinkID
	node  string
	role  Role
	cat   *catalog.Catalog
	codec protocol.Codec
	tr    transport.Transport
	cfg   session.Config
	disp  Dispatcher
	st    *state.Shared
	hooks Hooks
	rng   *rand.Rand

	standalone   func() state.Shared
	bootSequence bool

	handlers map[uint8]entry

	state          State
	syncInFlight   bool
	lastLivenessAt time.Time
	started        bool

	// subordinate probing
	probeAttempt int
	nextProbeAt  time.Time
	lastProbe    protocol.Datagram
	hasProbe     bool

	nextHeartbeatAt time.Time

	syncer *synchronizer

	counters counters
}

type counters struct {
	received uint64
	sent     uint64
	syncRuns uint64
	drops    map[DropReason]uint64
}

func New(opts Options) (*Link, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidOptions)
	}
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: link=%s catalog is required", ErrInvalidOptions, opts.ID)
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: link=%s transport is required", ErrInvalidOptions, opts.ID)
	}
	if opts.State == nil {
		return nil, fmt.Errorf("%w: link=%s state is required", ErrInvalidOptions, opts.ID)
	}
	cfg := opts.Session.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("link=%s: %w", opts.ID, err)
	}
	disp := opts.Dispatcher
	if disp == nil {
		disp = NewHandlerTable()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	l := &Link{
		id:           opts.ID,
		node:         opts.Node,
		role:         opts.Role,
		cat:          opts.Catalog,
		codec:        opts.Catalog.Codec(opts.Role == RoleAuthoritative),
		tr:           opts.Transport,
		cfg:          cfg,
		disp:         disp,
		st:           opts.State,
		hooks:        opts.Hooks,
		rng:          rng,
		standalone:   opts.Standalone,
		bootSequence: opts.BootSequence,
		state:        StateDisconnected,
		counters:     counters{drops: make(map[DropReason]uint64)},
	}
	l.handlers = l.buildHandlers()
	logs.Infof("link.New node=%s link=%s role=%s catalog=%s opcodes=%d",
		l.node, l.id, l.role, l.cat.Name, len(l.handlers))
	return l, nil
}

func (l *Link) ID() LinkID                { return l.id }
func (l *Link) Role() Role                { return l.role }
func (l *Link) State() State              { return l.state }
func (l *Link) Catalog() *catalog.Catalog { return l.cat }
func (l *Link) SyncInFlight() bool        { return l.syncInFlight }
func (l *Link) LastLivenessAt() time.Time { return l.lastLivenessAt }

// PeerPresent reports whether the far end is currently in sync with us.
func (l *Link) PeerPresent() bool {
	return l.state == StateConnected
}

// Tick polls at most one datagram, processes it fully, then evaluates
// every timer against now.
func (l *Link) Tick(now time.Time) {
	if !l.started {
		l.started = true
		l.nextProbeAt = now
	}
	if d, ok := l.tr.Poll(); ok {
		l.receive(now, d)
	}
	l.timers(now)
}

func (l *Link) timers(now time.Time) {
	switch l.state {
	case StateDisconnected:
		if l.role == RoleSubordinate && !now.Before(l.nextProbeAt) {
			l.probe(now)
		}
	case StateSyncing:
		if l.expired(now) {
			l.transition(now, StateDisconnected, string(DropLivenessTimeout))
			return
		}
		if l.role == RoleAuthoritative && l.syncer != nil {
			l.syncer.step(now)
		}
	case StateConnected:
		if l.expired(now) {
			l.transition(now, StateDisconnected, string(DropLivenessTimeout))
			return
		}
		if l.role == RoleSubordinate && !now.Before(l.nextHeartbeatAt) {
			if err := l.sendAction(catalog.ActionHandshake, 0); err == nil {
				l.nextHeartbeatAt = now.Add(l.cfg.HeartbeatInterval)
			}
		}
	}
}

func (l *Link) expired(now time.Time) bool {
	return now.Sub(l.lastLivenessAt) >= l.cfg.LivenessTimeout
}

func (l *Link) refresh(now time.Time) {
	l.lastLivenessAt = now
}

// probe sends SYNC_NOW and remembers its exact bytes for loopback detection.
func (l *Link) probe(now time.Time) {
	d, err := l.encodeAction(catalog.ActionSyncNow, 0)
	if err != nil {
		logs.Errf("link.Link.probe node=%s link=%s err=%v", l.node, l.id, err)
		return
	}
	l.probeAttempt++
	l.nextProbeAt = now.Add(session.ProbeDelay(l.cfg.Probe, l.probeAttempt, l.rng))
	if err := l.sendDatagram(d, protocol.ShapeCommand); err != nil {
		return
	}
	l.lastProbe = d.Clone()
	l.hasProbe = true
	logs.Debugf("link.Link.probe node=%s link=%s attempt=%d next=%s",
		l.node, l.id, l.probeAttempt, l.nextProbeAt.Sub(now))
}

func (l *Link) transition(now time.Time, to State, reason string) {
	from := l.state
	if from == to {
		return
	}
	l.state = to
	switch to {
	case StateDisconnected:
		l.syncInFlight = false
		l.syncer = nil
		l.probeAttempt = 0
		l.nextProbeAt = now
		if reason == string(DropLivenessTimeout) {
			l.counters.drops[DropLivenessTimeout]++
			observability.RecordDrop(l.node, string(l.id), reason)
		}
	case StateSyncing:
		l.syncInFlight = true
		l.refresh(now)
	case StateConnected:
		l.syncInFlight = false
		l.syncer = nil
		l.refresh(now)
		l.nextHeartbeatAt = now.Add(l.cfg.HeartbeatInterval)
	case StateStandalone:
		l.syncInFlight = false
		l.syncer = nil
		l.hasProbe = false
	}
	logs.Infof("link.Link.transition node=%s link=%s from=%s to=%s reason=%s", l.node, l.id, from, to, reason)
	observability.RecordTransition(l.node, string(l.id), from.String(), to.String(), int(to))
	if l.hooks.Transition != nil {
		l.hooks.Transition(l, from, to, reason)
	}
}

func (l *Link) drop(reason DropReason, detail string) {
	l.counters.drops[reason]++
	logs.Debugf("link.Link.drop node=%s link=%s state=%s reason=%s detail=%s", l.node, l.id, l.state, reason, detail)
	observability.RecordDrop(l.node, string(l.id), string(reason))
}

// Status is a copy of link bookkeeping for status readers.
type Status struct {
	ID             LinkID            `json:"id"`
	Catalog        string            `json:"catalog"`
	Role           string            `json:"role"`
	State          string            `json:"state"`
	PeerPresent    bool              `json:"peer_present"`
	SyncInFlight   bool              `json:"sync_in_flight"`
	LastLivenessAt time.Time         `json:"last_liveness_at"`
	Received       uint64            `json:"received"`
	Sent           uint64            `json:"sent"`
	SyncRuns       uint64            `json:"sync_runs"`
	Drops          map[string]uint64 `json:"drops"`
}

func (l *Link) Status() Status {
	drops := make(map[string]uint64, len(l.counters.drops))
	for k, v := range l.counters.drops {
		drops[string(k)] = v
	}
	return Status{
		ID:             l.id,
		Catalog:        l.cat.Name,
		Role:           l.role.String(),
		State:          l.state.String(),
		PeerPresent:    l.PeerPresent(),
		SyncInFlight:   l.syncInFlight,
		LastLivenessAt: l.lastLivenessAt,
		Received:       l.counters.received,
		Sent:           l.counters.sent,
		SyncRuns:       l.counters.syncRuns,
		Drops:          drops,
	}
}

// Drops returns how many datagrams were dropped for reason.
func (l *Link) Drops(reason DropReason) uint64 {
	return l.counters.drops[reason]
}

// Package catalog holds the per-link opcode namespaces.
//
// Every link pair defines its own numeric opcodes, type tags and sentinel
// bytes. Numeric ranges overlap on purpose: an opcode only has meaning on
// the link it arrived on, and the relay translates through Action.
package catalog

import (
	"fmt"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/protocol"
)

// Entry binds one wire opcode to an action.
type Entry struct {
	Opcode uint8
	Action Action
}

// Catalog is the immutable opcode/tag/sentinel contract of one link.
type Catalog struct {
	Name string
	Tags protocol.TagMap
	// Authoritative frames sent by the authoritative side; Subordinate the reverse.
	Authoritative protocol.Sentinels
	Subordinate   protocol.Sentinels
	// VolumeID is the DataMsg id of the {master, effects, music} triple.
	VolumeID uint8
	// SnapshotDump sends one SyncSnapshot instead of itemized commands.
	SnapshotDump bool

	entries []Entry
	opcodes map[uint8]Action
	actions map[Action]uint8
}

type ValidationError struct {
	Catalog string
	Action  Action
	Opcode  uint8
	Reason  string
}

func (e ValidationError) Error() string {
	if e.Action == ActionNone {
		return fmt.Sprintf("catalog: %s: %s", e.Catalog, e.Reason)
	}
	return fmt.Sprintf("catalog: %s action=%s opcode=0x%02x: %s", e.Catalog, e.Action, e.Opcode, e.Reason)
}

var requiredActions = []Action{
	ActionSyncNow,
	ActionSyncStart,
	ActionSyncEnd,
	ActionHandshake,
}

// New indexes entries and validates the result.
func New(name string, tags protocol.TagMap, auth, sub protocol.Sentinels, volumeID uint8, snapshotDump bool, entries []Entry) (*Catalog, error) {
	c := &Catalog{
		Name:          name,
		Tags:          tags,
		Authoritative: auth,
		Subordinate:   sub,
		VolumeID:      volumeID,
		SnapshotDump:  snapshotDump,
		entries:       append([]Entry(nil), entries...),
		opcodes:       make(map[uint8]Action, len(entries)),
		actions:       make(map[Action]uint8, len(entries)),
	}
	for _, e := range entries {
		if e.Action == ActionNone {
			return nil, ValidationError{Catalog: name, Opcode: e.Opcode, Reason: "entry without action"}
		}
		if prev, dup := c.opcodes[e.Opcode]; dup {
			return nil, ValidationError{Catalog: name, Action: e.Action, Opcode: e.Opcode, Reason: "opcode already bound to " + prev.String()}
		}
		if _, dup := c.actions[e.Action]; dup {
			return nil, ValidationError{Catalog: name, Action: e.Action, Opcode: e.Opcode, Reason: "action bound twice"}
		}
		c.opcodes[e.Opcode] = e.Action
		c.actions[e.Action] = e.Opcode
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate enforces the minimum contract every link needs to synchronize.
func (c *Catalog) Validate() error {
	logs.Debugf("catalog.Validate name=%s entries=%d", c.Name, len(c.entries))
	for _, a := range requiredActions {
		if _, ok := c.actions[a]; !ok {
			logs.Errf("catalog.Validate missing action name=%s action=%s", c.Name, a)
			return ValidationError{Catalog: c.Name, Action: a, Reason: "missing required action"}
		}
	}
	if _, ok := c.Tags[protocol.ShapeCommand]; !ok {
		return ValidationError{Catalog: c.Name, Reason: "missing command tag"}
	}
	seen := make(map[uint8]protocol.Shape, len(c.Tags))
	for shape, tag := range c.Tags {
		if prev, dup := seen[tag]; dup {
			return ValidationError{Catalog: c.Name, Reason: fmt.Sprintf("tag %d shared by %s and %s", tag, prev, shape)}
		}
		seen[tag] = shape
	}
	if c.Authoritative == c.Subordinate {
		return ValidationError{Catalog: c.Name, Reason: "sentinels must differ per direction"}
	}
	if c.SnapshotDump {
		if _, ok := c.Tags[protocol.ShapeSync]; !ok {
			return ValidationError{Catalog: c.Name, Reason: "snapshot dump without sync tag"}
		}
	}
	return nil
}

// Action resolves an inbound opcode.
func (c *Catalog) Action(opcode uint8) (Action, bool) {
	a, ok := c.opcodes[opcode]
	return a, ok
}

// Opcode resolves an action into this link's namespace.
func (c *Catalog) Opcode(a Action) (uint8, bool) {
	op, ok := c.actions[a]
	return op, ok
}

func (c *Catalog) Has(a Action) bool {
	_, ok := c.actions[a]
	return ok
}

// Entries returns the opcode table in declaration order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// CarriesShape reports whether the link has a type tag for s.
func (c *Catalog) CarriesShape(s protocol.Shape) bool {
	_, ok := c.Tags[s]
	return ok
}

// Codec builds the codec for one end of the link.
func (c *Catalog) Codec(authoritative bool) protocol.Codec {
	if authoritative {
		return protocol.Codec{Tags: c.Tags, Tx: c.Authoritative, Rx: c.Subordinate}
	}
	return protocol.Codec{Tags: c.Tags, Tx: c.Subordinate, Rx: c.Authoritative}
}

package link

import (
	"errors"
	"fmt"
)

// LinkID names a link within a node, e.g. "wand" on the pack.
type LinkID string

type Role uint8

const (
	RoleAuthoritative Role = iota
	RoleSubordinate
)

func (r Role) String() string {
	switch r {
	case RoleAuthoritative:
		return "authoritative"
	case RoleSubordinate:
		return "subordinate"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

func ParseRole(raw string) (Role, error) {
	switch raw {
	case "authoritative":
		return RoleAuthoritative, nil
	case "subordinate":
		return RoleSubordinate, nil
	default:
		return 0, fmt.Errorf("link: unknown role %q", raw)
	}
}

type State uint8

const (
	StateDisconnected State = iota
	StateSyncing
	StateConnected
	StateStandalone
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSyncing:
		return "syncing"
	case StateConnected:
		return "connected"
	case StateStandalone:
		return "standalone"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// DropReason labels why an inbound datagram had no effect.
type DropReason string

const (
	DropMalformed        DropReason = "malformed"
	DropUnknownShape     DropReason = "unknown_shape"
	DropUnexpectedOpcode DropReason = "unexpected_opcode"
	DropLivenessTimeout  DropReason = "liveness_timeout"
	DropLoopback         DropReason = "loopback"
	DropStandalone       DropReason = "standalone"
	DropSyncInFlight     DropReason = "sync_in_flight"
)

var (
	ErrNotConnected    = errors.New("link: not connected")
	ErrNotInCatalog    = errors.New("link: action not in catalog")
	ErrShapeNotCarried = errors.New("link: shape not carried on link")
	ErrInvalidOptions  = errors.New("link: invalid options")
)

package catalog

import (
	"errors"
	"fmt"
)

var ErrUnknownAction = errors.New("catalog: unknown action")

// Action is the link-independent meaning of an opcode. Each catalog maps its
// own numeric opcodes onto actions; actions never travel on the wire.
type Action uint8

const (
	ActionNone Action = iota

	// link protocol
	ActionSyncNow
	ActionSyncStart
	ActionSyncEnd
	ActionHandshake

	// relay, arg = protocol.ConfigKind
	ActionConfigRequest
	ActionConfigSave

	// shared state, synchronized
	ActionMode
	ActionEra
	ActionAlarmOn
	ActionAlarmOff
	ActionPackOn
	ActionPackOff
	ActionPowerLevel
	ActionStreamMode
	ActionSwitches
	ActionVibration
	ActionMute
	ActionRepeatTrack
	ActionMusicStart
	ActionMusicStop

	// local effects
	ActionFiringStart
	ActionFiringStop
	ActionOverheat
	ActionVent
	ActionVolumeUp
	ActionVolumeDown
)

// Class groups actions by who handles them inside a link.
type Class uint8

const (
	ClassEffect Class = iota
	ClassProtocol
	ClassRelay
	ClassState
)

var actionNames = map[Action]string{
	ActionNone:          "none",
	ActionSyncNow:       "sync_now",
	ActionSyncStart:     "sync_start",
	ActionSyncEnd:       "sync_end",
	ActionHandshake:     "handshake",
	ActionConfigRequest: "config_request",
	ActionConfigSave:    "config_save",
	ActionMode:          "mode",
	ActionEra:           "era",
	ActionAlarmOn:       "alarm_on",
	ActionAlarmOff:      "alarm_off",
	ActionPackOn:        "pack_on",
	ActionPackOff:       "pack_off",
	ActionPowerLevel:    "power_level",
	ActionStreamMode:    "stream_mode",
	ActionSwitches:      "switches",
	ActionVibration:     "vibration",
	ActionMute:          "mute",
	ActionRepeatTrack:   "repeat_track",
	ActionMusicStart:    "music_start",
	ActionMusicStop:     "music_stop",
	ActionFiringStart:   "firing_start",
	ActionFiringStop:    "firing_stop",
	ActionOverheat:      "overheat",
	ActionVent:          "vent",
	ActionVolumeUp:      "volume_up",
	ActionVolumeDown:    "volume_down",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// ParseAction resolves an action by its String name.
func ParseAction(name string) (Action, error) {
	for a, n := range actionNames {
		if n == name && a != ActionNone {
			return a, nil
		}
	}
	return ActionNone, fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

func (a Action) Class() Class {
	switch {
	case a >= ActionSyncNow && a <= ActionHandshake:
		return ClassProtocol
	case a == ActionConfigRequest || a == ActionConfigSave:
		return ClassRelay
	case a >= ActionMode && a <= ActionMusicStop:
		return ClassState
	default:
		return ClassEffect
	}
}

// StateBearing reports whether a carries shared state and may therefore
// arrive as a Synchronizer dump item.
func (a Action) StateBearing() bool {
	return a.Class() == ClassState
}

// Switch bits carried by ActionSwitches.
const (
	SwitchIonArm uint16 = 1 << 0
	SwitchLid    uint16 = 1 << 1
)

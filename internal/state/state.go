// Package state holds the live shared operating state of the fleet.
//
// The authoritative end of a link keeps the source copy; each subordinate
// keeps a shadow that the synchronizer and later state commands converge
// onto the source. Nothing here is persisted.
package state

import (
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
)

const (
	MinPower = 1
	MaxPower = protocol.PowerLevels
)

// Shared is the live state exchanged during synchronization.
type Shared struct {
	Mode          protocol.SystemMode    `json:"mode"`
	Era           protocol.Era           `json:"era"`
	Power         uint8                  `json:"power"`
	Stream        protocol.StreamMode    `json:"stream"`
	Alarm         bool                   `json:"alarm"`
	PackOn        bool                   `json:"pack_on"`
	IonArm        bool                   `json:"ion_arm"`
	LidAttached   bool                   `json:"lid_attached"`
	Vibration     protocol.VibrationMode `json:"vibration"`
	MasterVolume  uint8                  `json:"master_volume"`
	EffectsVolume uint8                  `json:"effects_volume"`
	MusicVolume   uint8                  `json:"music_volume"`
	Muted         bool                   `json:"muted"`
	RepeatTrack   bool                   `json:"repeat_track"`
	MusicPlaying  bool                   `json:"music_playing"`
	Track         uint16                 `json:"track"`
}

// Default is the state of a freshly booted node before any sync.
func Default() Shared {
	return Shared{
		Mode:          protocol.ModeSuperHero,
		Era:           protocol.EraAfterlife,
		Power:         MinPower,
		Stream:        protocol.StreamProton,
		LidAttached:   true,
		Vibration:     protocol.VibrationDefault,
		MasterVolume:  100,
		EffectsVolume: 100,
		MusicVolume:   100,
	}
}

// FromConfig synthesizes a standalone shadow from persisted settings.
func FromConfig(pack protocol.PackConfig, wand protocol.WandConfig) Shared {
	s := Default()
	s.Mode = wand.DefaultMode
	if wand.DefaultYear != protocol.EraDefault {
		s.Era = wand.DefaultYear
	} else {
		s.Era = pack.CurrentYear
	}
	s.Stream = wand.DefaultStream
	s.Vibration = wand.Vibration
	s.MasterVolume = pack.DefaultVolume
	s.Alarm = false
	return s
}

// Apply folds one state-bearing action into s and reports whether anything
// changed. Out-of-range arguments are ignored. Applying the same action
// twice leaves s as applying it once.
func (s *Shared) Apply(a catalog.Action, arg uint16) bool {
	next := *s
	switch a {
	case catalog.ActionMode:
		if arg > uint16(protocol.ModeOriginal) {
			return false
		}
		next.Mode = protocol.SystemMode(arg)
	case catalog.ActionEra:
		if arg > uint16(protocol.EraFrozenEmpire) {
			return false
		}
		next.Era = protocol.Era(arg)
	case catalog.ActionAlarmOn:
		next.Alarm = true
	case catalog.ActionAlarmOff:
		next.Alarm = false
	case catalog.ActionPackOn:
		next.PackOn = true
	case catalog.ActionPackOff:
		next.PackOn = false
	case catalog.ActionPowerLevel:
		if arg < MinPower || arg > MaxPower {
			return false
		}
		next.Power = uint8(arg)
	case catalog.ActionStreamMode:
		if arg > uint16(protocol.StreamCustom) {
			return false
		}
		next.Stream = protocol.StreamMode(arg)
	case catalog.ActionSwitches:
		next.IonArm = arg&catalog.SwitchIonArm != 0
		next.LidAttached = arg&catalog.SwitchLid != 0
	case catalog.ActionVibration:
		if arg > uint16(protocol.VibrationDefault) {
			return false
		}
		next.Vibration = protocol.VibrationMode(arg)
	case catalog.ActionMute:
		next.Muted = arg != 0
	case catalog.ActionRepeatTrack:
		next.RepeatTrack = arg != 0
	case catalog.ActionMusicStart:
		next.MusicPlaying = true
		next.Track = arg
	case catalog.ActionMusicStop:
		// arg is the track left cued
		next.MusicPlaying = false
		next.Track = arg
	default:
		return false
	}
	changed := next != *s
	*s = next
	return changed
}

// ApplyVolume sets the {master, effects, music} percentages.
func (s *Shared) ApplyVolume(fields [3]uint8) bool {
	next := *s
	next.MasterVolume = clampPercent(fields[0])
	next.EffectsVolume = clampPercent(fields[1])
	next.MusicVolume = clampPercent(fields[2])
	changed := next != *s
	*s = next
	return changed
}

func (s Shared) Volume() [3]uint8 {
	return [3]uint8{s.MasterVolume, s.EffectsVolume, s.MusicVolume}
}

func (s Shared) Switches() uint16 {
	var v uint16
	if s.IonArm {
		v |= catalog.SwitchIonArm
	}
	if s.LidAttached {
		v |= catalog.SwitchLid
	}
	return v
}

// Snapshot projects s onto the wire snapshot.
func (s Shared) Snapshot() protocol.SyncSnapshot {
	return protocol.SyncSnapshot{
		Mode:          s.Mode,
		IonArmSwitch:  s.IonArm,
		LidAttached:   s.LidAttached,
		Year:          s.Era,
		PackOn:        s.PackOn,
		Power:         s.Power,
		Stream:        s.Stream,
		Vibration:     s.Vibration,
		MasterVolume:  s.MasterVolume,
		EffectsVolume: s.EffectsVolume,
		Muted:         s.Muted,
		RepeatTrack:   s.RepeatTrack,
	}
}

// ApplySnapshot copies every snapshot field into s, with the same bounds as
// Apply: an out-of-range field keeps its current value. Fields the snapshot
// does not carry (alarm, music volume, playback) are left alone.
func (s *Shared) ApplySnapshot(snap protocol.SyncSnapshot) bool {
	next := *s
	next.Apply(catalog.ActionMode, uint16(snap.Mode))
	next.Apply(catalog.ActionEra, uint16(snap.Year))
	next.Apply(catalog.ActionPowerLevel, uint16(snap.Power))
	next.Apply(catalog.ActionStreamMode, uint16(snap.Stream))
	next.Apply(catalog.ActionVibration, uint16(snap.Vibration))
	next.IonArm = snap.IonArmSwitch
	next.LidAttached = snap.LidAttached
	next.PackOn = snap.PackOn
	next.MasterVolume = clampPercent(snap.MasterVolume)
	next.EffectsVolume = clampPercent(snap.EffectsVolume)
	next.Muted = snap.Muted
	next.RepeatTrack = snap.RepeatTrack
	changed := next != *s
	*s = next
	return changed
}

func clampPercent(v uint8) uint8 {
	if v > 100 {
		return 100
	}
	return v
}

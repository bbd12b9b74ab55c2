package state

import "github.com/danmuck/packlink/internal/protocol/catalog"

// Item is one synchronizer dump entry: a command, or the volume triple
// when Volume is set.
type Item struct {
	Action catalog.Action
	Arg    uint16
	Volume bool
	Fields [3]uint8
}

// Key identifies the slot an item occupies in the dump, independent of
// its value. AlarmOn and AlarmOff share a slot.
func (it Item) Key() int {
	if it.Volume {
		return -1
	}
	switch it.Action {
	case catalog.ActionAlarmOff:
		return int(catalog.ActionAlarmOn)
	case catalog.ActionPackOff:
		return int(catalog.ActionPackOn)
	case catalog.ActionMusicStop:
		return int(catalog.ActionMusicStart)
	}
	return int(it.Action)
}

// DumpItems lists s in synchronizer order. SYNC_START and SYNC_END are not
// included.
func (s Shared) DumpItems() []Item {
	items := make([]Item, 0, 12)
	items = append(items,
		Item{Action: catalog.ActionMode, Arg: uint16(s.Mode)},
		Item{Action: catalog.ActionEra, Arg: uint16(s.Era)},
		Item{Action: pick(s.Alarm, catalog.ActionAlarmOn, catalog.ActionAlarmOff)},
		Item{Action: pick(s.PackOn, catalog.ActionPackOn, catalog.ActionPackOff)},
		Item{Action: catalog.ActionPowerLevel, Arg: uint16(s.Power)},
		Item{Action: catalog.ActionStreamMode, Arg: uint16(s.Stream)},
		Item{Action: catalog.ActionSwitches, Arg: s.Switches()},
		Item{Action: catalog.ActionVibration, Arg: uint16(s.Vibration)},
		Item{Action: catalog.ActionMute, Arg: boolArg(s.Muted)},
		Item{Action: catalog.ActionRepeatTrack, Arg: boolArg(s.RepeatTrack)},
	)
	if s.MusicPlaying {
		items = append(items, Item{Action: catalog.ActionMusicStart, Arg: s.Track})
	} else {
		items = append(items, Item{Action: catalog.ActionMusicStop, Arg: s.Track})
	}
	items = append(items, Item{Volume: true, Fields: s.Volume()})
	return items
}

func pick(v bool, on, off catalog.Action) catalog.Action {
	if v {
		return on
	}
	return off
}

func boolArg(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}

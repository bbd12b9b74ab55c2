package state

import (
	"testing"

	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestApplyIsIdempotent(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		action catalog.Action
		arg    uint16
	}{
		{catalog.ActionMode, uint16(protocol.ModeOriginal)},
		{catalog.ActionEra, uint16(protocol.Era1984)},
		{catalog.ActionPowerLevel, 4},
		{catalog.ActionSwitches, catalog.SwitchIonArm},
		{catalog.ActionMusicStart, 512},
		{catalog.ActionAlarmOn, 0},
		{catalog.ActionPackOff, 0},
	}
	for _, tc := range cases {
		once := Default()
		once.Apply(tc.action, tc.arg)
		twice := once
		if twice.Apply(tc.action, tc.arg) {
			t.Fatalf("%s reported change on repeat", tc.action)
		}
		if twice != once {
			t.Fatalf("%s not idempotent got=%+v want=%+v", tc.action, twice, once)
		}
	}
}

func TestApplyIgnoresOutOfRange(t *testing.T) {
	testlog.Start(t)
	s := Default()
	before := s
	if s.Apply(catalog.ActionPowerLevel, 9) || s.Apply(catalog.ActionEra, 77) || s.Apply(catalog.ActionVent, 1) {
		t.Fatalf("expected no change for invalid args")
	}
	if s != before {
		t.Fatalf("state mutated: %+v", s)
	}
}

func TestDumpItemsReplayConverges(t *testing.T) {
	testlog.Start(t)
	src := Default()
	src.Apply(catalog.ActionMode, uint16(protocol.ModeOriginal))
	src.Apply(catalog.ActionEra, uint16(protocol.EraFrozenEmpire))
	src.Apply(catalog.ActionPowerLevel, 5)
	src.Apply(catalog.ActionAlarmOn, 0)
	src.Apply(catalog.ActionSwitches, catalog.SwitchIonArm)
	src.Apply(catalog.ActionMusicStart, 12)
	src.Apply(catalog.ActionMute, 1)
	src.ApplyVolume([3]uint8{80, 70, 60})

	shadow := Default()
	items := src.DumpItems()
	if items[0].Action != catalog.ActionMode || !items[len(items)-1].Volume {
		t.Fatalf("unexpected dump order: first=%s lastVolume=%v", items[0].Action, items[len(items)-1].Volume)
	}
	for _, it := range items {
		if it.Volume {
			shadow.ApplyVolume(it.Fields)
			continue
		}
		shadow.Apply(it.Action, it.Arg)
	}
	if shadow != src {
		t.Fatalf("shadow diverged got=%+v want=%+v", shadow, src)
	}
}

func TestDumpCarriesStoppedTrack(t *testing.T) {
	testlog.Start(t)
	src := Default()
	src.Apply(catalog.ActionMusicStart, 7)
	src.Apply(catalog.ActionMusicStop, 7)
	if src.MusicPlaying || src.Track != 7 {
		t.Fatalf("stopped source got playing=%v track=%d", src.MusicPlaying, src.Track)
	}

	shadow := Default()
	shadow.Apply(catalog.ActionMusicStart, 3)
	for _, it := range src.DumpItems() {
		if it.Volume {
			shadow.ApplyVolume(it.Fields)
			continue
		}
		shadow.Apply(it.Action, it.Arg)
	}
	if shadow != src {
		t.Fatalf("shadow diverged got=%+v want=%+v", shadow, src)
	}
}

func TestSnapshotProjection(t *testing.T) {
	testlog.Start(t)
	s := Default()
	s.Apply(catalog.ActionPackOn, 0)
	s.ApplyVolume([3]uint8{80, 70, 60})
	snap := s.Snapshot()
	if !snap.PackOn || snap.MasterVolume != 80 || snap.EffectsVolume != 70 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	other := Default()
	other.ApplySnapshot(snap)
	if other.Snapshot() != snap {
		t.Fatalf("snapshot apply mismatch got=%+v want=%+v", other.Snapshot(), snap)
	}
	if other.MusicVolume != 100 {
		t.Fatalf("music volume is not carried by the snapshot, got=%d", other.MusicVolume)
	}
}

func TestApplySnapshotKeepsOutOfRangeFields(t *testing.T) {
	testlog.Start(t)
	s := Default()
	s.Power = 4
	s.Stream = protocol.StreamMeson
	before := s
	snap := protocol.SyncSnapshot{
		Mode:          200,
		Year:          99,
		Power:         0,
		Stream:        77,
		Vibration:     55,
		PackOn:        true,
		LidAttached:   true,
		MasterVolume:  60,
		EffectsVolume: 50,
	}
	if !s.ApplySnapshot(snap) {
		t.Fatalf("in-range fields should still apply")
	}
	if s.Mode != before.Mode || s.Era != before.Era || s.Power != before.Power ||
		s.Stream != before.Stream || s.Vibration != before.Vibration {
		t.Fatalf("out-of-range fields applied got=%+v want enums of %+v", s, before)
	}
	if !s.PackOn || s.MasterVolume != 60 || s.EffectsVolume != 50 {
		t.Fatalf("in-range fields got=%+v", s)
	}
}

func TestItemKeySharesToggleSlots(t *testing.T) {
	testlog.Start(t)
	on := Item{Action: catalog.ActionAlarmOn}
	off := Item{Action: catalog.ActionAlarmOff}
	if on.Key() != off.Key() {
		t.Fatalf("alarm on/off must share a slot")
	}
	if (Item{Volume: true}).Key() == on.Key() {
		t.Fatalf("volume slot collides")
	}
}

func TestFromConfigUsesWandDefaults(t *testing.T) {
	testlog.Start(t)
	wand := protocol.DefaultWandConfig()
	wand.DefaultMode = protocol.ModeOriginal
	wand.DefaultYear = protocol.Era1989
	wand.DefaultStream = protocol.StreamSlime
	pack := protocol.DefaultPackConfig()
	pack.DefaultVolume = 40
	s := FromConfig(pack, wand)
	if s.Mode != protocol.ModeOriginal || s.Era != protocol.Era1989 || s.Stream != protocol.StreamSlime {
		t.Fatalf("unexpected synthesized state: %+v", s)
	}
	if s.MasterVolume != 40 {
		t.Fatalf("master volume got=%d want=40", s.MasterVolume)
	}
}

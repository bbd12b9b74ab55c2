package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/packlink/internal/protocol"
)

const (
	LinkWand       = "wand"
	LinkAttenuator = "attenuator"
	LinkBelt       = "belt"
)

var ErrUnknownLink = errors.New("catalog: unknown link")

// pack <-> wand
var wandEntries = []Entry{
	{0x01, ActionSyncNow},
	{0x02, ActionSyncStart},
	{0x03, ActionSyncEnd},
	{0x04, ActionHandshake},
	{0x05, ActionPowerLevel},
	{0x06, ActionMode},
	{0x07, ActionEra},
	{0x08, ActionAlarmOn},
	{0x09, ActionAlarmOff},
	{0x0A, ActionPackOn},
	{0x0B, ActionPackOff},
	{0x0C, ActionStreamMode},
	{0x0D, ActionSwitches},
	{0x0E, ActionVibration},
	{0x0F, ActionMute},
	{0x10, ActionRepeatTrack},
	{0x11, ActionMusicStart},
	{0x12, ActionMusicStop},
	{0x20, ActionFiringStart},
	{0x21, ActionFiringStop},
	{0x22, ActionOverheat},
	{0x23, ActionVent},
	{0x24, ActionVolumeUp},
	{0x25, ActionVolumeDown},
	{0x30, ActionConfigRequest},
	{0x31, ActionConfigSave},
}

// pack <-> attenuator; no switch reporting on this link
var attenuatorEntries = []Entry{
	{0x01, ActionMode},
	{0x02, ActionEra},
	{0x03, ActionPackOn},
	{0x04, ActionPackOff},
	{0x05, ActionVent},
	{0x06, ActionPowerLevel},
	{0x07, ActionStreamMode},
	{0x08, ActionAlarmOn},
	{0x09, ActionAlarmOff},
	{0x0A, ActionVibration},
	{0x0B, ActionMute},
	{0x0C, ActionRepeatTrack},
	{0x0D, ActionMusicStart},
	{0x0E, ActionMusicStop},
	{0x0F, ActionVolumeUp},
	{0x10, ActionVolumeDown},
	{0x11, ActionOverheat},
	{0x20, ActionConfigRequest},
	{0x21, ActionConfigSave},
	{0x40, ActionSyncNow},
	{0x41, ActionSyncStart},
	{0x42, ActionSyncEnd},
	{0x43, ActionHandshake},
}

// pack <-> belt companion; state arrives as one snapshot
var beltEntries = []Entry{
	{0x01, ActionHandshake},
	{0x02, ActionSyncNow},
	{0x03, ActionSyncStart},
	{0x04, ActionSyncEnd},
	{0x05, ActionPackOn},
	{0x06, ActionPackOff},
	{0x07, ActionPowerLevel},
	{0x08, ActionFiringStart},
	{0x09, ActionFiringStop},
	{0x0A, ActionOverheat},
}

// Wand returns the pack<->wand catalog.
func Wand() (*Catalog, error) {
	return New(
		LinkWand,
		protocol.DefaultTags(),
		protocol.Sentinels{Start: 0xC0, End: 0xC1},
		protocol.Sentinels{Start: 0xC2, End: 0xC3},
		0x01,
		false,
		wandEntries,
	)
}

// Attenuator returns the pack<->attenuator catalog.
func Attenuator() (*Catalog, error) {
	return New(
		LinkAttenuator,
		protocol.TagMap{
			protocol.ShapeCommand:     1,
			protocol.ShapeData:        2,
			protocol.ShapeSync:        3,
			protocol.ShapePackConfig:  4,
			protocol.ShapeWandConfig:  5,
			protocol.ShapeSmokeConfig: 6,
		},
		protocol.Sentinels{Start: 0xD0, End: 0xD1},
		protocol.Sentinels{Start: 0xD2, End: 0xD3},
		0x05,
		false,
		attenuatorEntries,
	)
}

// Belt returns the pack<->belt catalog. The belt carries no config blobs.
func Belt() (*Catalog, error) {
	return New(
		LinkBelt,
		protocol.TagMap{
			protocol.ShapeCommand: 0x10,
			protocol.ShapeData:    0x11,
			protocol.ShapeSync:    0x12,
		},
		protocol.Sentinels{Start: 0xE0, End: 0xE1},
		protocol.Sentinels{Start: 0xE2, End: 0xE3},
		0x01,
		true,
		beltEntries,
	)
}

var builders = map[string]func() (*Catalog, error){
	LinkWand:       Wand,
	LinkAttenuator: Attenuator,
	LinkBelt:       Belt,
}

// Lookup builds the catalog registered under name.
func Lookup(name string) (*Catalog, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLink, name)
	}
	return build()
}

// Names lists registered link catalogs.
func Names() []string {
	out := make([]string, 0, len(builders))
	for name := range builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

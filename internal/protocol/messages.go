package protocol

import "fmt"

// CommandMsg is a single directive; Arg is zero when unused.
type CommandMsg struct {
	Opcode uint8
	Arg    uint16
}

func (CommandMsg) Shape() Shape { return ShapeCommand }

// DataMsg is a small multi-value notification.
type DataMsg struct {
	ID     uint8
	Fields [3]uint8
}

func (DataMsg) Shape() Shape { return ShapeData }

// SyncSnapshot is the live, non-persisted state shared by all nodes.
type SyncSnapshot struct {
	Mode          SystemMode
	IonArmSwitch  bool
	LidAttached   bool
	Year          Era
	PackOn        bool
	Power         uint8
	Stream        StreamMode
	Vibration     VibrationMode
	MasterVolume  uint8
	EffectsVolume uint8
	Muted         bool
	RepeatTrack   bool
}

func (SyncSnapshot) Shape() Shape { return ShapeSync }

func (s SyncSnapshot) marshal() []byte {
	w := newLayoutWriter(SyncSize)
	w.u8(uint8(s.Mode))
	w.flag(s.IonArmSwitch)
	w.flag(s.LidAttached)
	w.u8(uint8(s.Year))
	w.flag(s.PackOn)
	w.u8(s.Power)
	w.u8(uint8(s.Stream))
	w.u8(uint8(s.Vibration))
	w.u8(s.MasterVolume)
	w.u8(s.EffectsVolume)
	w.flag(s.Muted)
	w.flag(s.RepeatTrack)
	return w.bytes()
}

func unmarshalSyncSnapshot(b []byte) (SyncSnapshot, error) {
	r := newLayoutReader(b)
	s := SyncSnapshot{
		Mode:          SystemMode(r.u8()),
		IonArmSwitch:  r.flag(),
		LidAttached:   r.flag(),
		Year:          Era(r.u8()),
		PackOn:        r.flag(),
		Power:         r.u8(),
		Stream:        StreamMode(r.u8()),
		Vibration:     VibrationMode(r.u8()),
		MasterVolume:  r.u8(),
		EffectsVolume: r.u8(),
		Muted:         r.flag(),
		RepeatTrack:   r.flag(),
	}
	if err := r.finish(); err != nil {
		return SyncSnapshot{}, err
	}
	if err := s.validate(); err != nil {
		return SyncSnapshot{}, err
	}
	return s, nil
}

func (s SyncSnapshot) validate() error {
	switch {
	case s.Mode > ModeOriginal:
		return fmt.Errorf("%w: sync mode %d", ErrMalformedDatagram, s.Mode)
	case s.Year > EraFrozenEmpire:
		return fmt.Errorf("%w: sync era %d", ErrMalformedDatagram, s.Year)
	case s.Power < 1 || s.Power > PowerLevels:
		return fmt.Errorf("%w: sync power %d", ErrMalformedDatagram, s.Power)
	case s.Stream > StreamCustom:
		return fmt.Errorf("%w: sync stream %d", ErrMalformedDatagram, s.Stream)
	case s.Vibration > VibrationDefault:
		return fmt.Errorf("%w: sync vibration %d", ErrMalformedDatagram, s.Vibration)
	}
	return nil
}

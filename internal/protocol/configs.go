package protocol

// PowerLevels is the number of pack power levels; per-level settings are
// indexed 0..PowerLevels-1 for levels 1..5.
const PowerLevels = 5

// PackConfig is the pack's persistable configuration.
type PackConfig struct {
	DefaultMode         SystemMode
	DefaultYear         Era
	CurrentYear         Era
	DefaultVolume       uint8
	Vibration           VibrationMode
	StreamEffects       bool
	OverheatStrobe      bool
	OverheatLightsOff   bool
	OverheatSyncToFan   bool
	DemoLightMode       bool
	RibbonCableAlarm    bool
	CyclotronLEDCount   uint8
	CyclotronHue        uint8
	CyclotronSaturation uint8
	CyclotronClockwise  bool
	InnerPanelLEDCount  uint8
	InnerCakeGRB        bool
	PowercellLEDCount   uint8
	PowercellHue        uint8
	PowercellSaturation uint8
	VideoGamePowercell  bool
	AudioLEDEnabled     bool
}

func (PackConfig) Shape() Shape { return ShapePackConfig }

func (c PackConfig) marshal() []byte {
	w := newLayoutWriter(PackConfigSize)
	w.u8(uint8(c.DefaultMode))
	w.u8(uint8(c.DefaultYear))
	w.u8(uint8(c.CurrentYear))
	w.u8(c.DefaultVolume)
	w.u8(uint8(c.Vibration))
	w.flag(c.StreamEffects)
	w.flag(c.OverheatStrobe)
	w.flag(c.OverheatLightsOff)
	w.flag(c.OverheatSyncToFan)
	w.flag(c.DemoLightMode)
	w.flag(c.RibbonCableAlarm)
	w.u8(c.CyclotronLEDCount)
	w.u8(c.CyclotronHue)
	w.u8(c.CyclotronSaturation)
	w.flag(c.CyclotronClockwise)
	w.u8(c.InnerPanelLEDCount)
	w.flag(c.InnerCakeGRB)
	w.u8(c.PowercellLEDCount)
	w.u8(c.PowercellHue)
	w.u8(c.PowercellSaturation)
	w.flag(c.VideoGamePowercell)
	w.flag(c.AudioLEDEnabled)
	return w.bytes()
}

func unmarshalPackConfig(b []byte) (PackConfig, error) {
	r := newLayoutReader(b)
	c := PackConfig{
		DefaultMode:         SystemMode(r.u8()),
		DefaultYear:         Era(r.u8()),
		CurrentYear:         Era(r.u8()),
		DefaultVolume:       r.u8(),
		Vibration:           VibrationMode(r.u8()),
		StreamEffects:       r.flag(),
		OverheatStrobe:      r.flag(),
		OverheatLightsOff:   r.flag(),
		OverheatSyncToFan:   r.flag(),
		DemoLightMode:       r.flag(),
		RibbonCableAlarm:    r.flag(),
		CyclotronLEDCount:   r.u8(),
		CyclotronHue:        r.u8(),
		CyclotronSaturation: r.u8(),
		CyclotronClockwise:  r.flag(),
		InnerPanelLEDCount:  r.u8(),
		InnerCakeGRB:        r.flag(),
		PowercellLEDCount:   r.u8(),
		PowercellHue:        r.u8(),
		PowercellSaturation: r.u8(),
		VideoGamePowercell:  r.flag(),
		AudioLEDEnabled:     r.flag(),
	}
	if err := r.finish(); err != nil {
		return PackConfig{}, err
	}
	return c, nil
}

// WandConfig is the wand's persistable configuration.
type WandConfig struct {
	BarrelLEDCount        uint8
	BarrelHue             uint8
	BarrelSaturation      uint8
	SpectralModes         bool
	OverheatEnabled       bool
	DefaultStream         StreamMode
	Vibration             VibrationMode
	SoundsToPack          bool
	QuickVenting          bool
	AutoVentLight         bool
	BeepLoop              bool
	BootErrors            bool
	DefaultYear           Era
	DefaultYearCTS        Era
	BargraphSegments      uint8
	InvertBargraph        bool
	BargraphOverheatBlink bool
	BargraphIdle          uint8
	BargraphFire          uint8
	DefaultMode           SystemMode
}

func (WandConfig) Shape() Shape { return ShapeWandConfig }

func (c WandConfig) marshal() []byte {
	w := newLayoutWriter(WandConfigSize)
	w.u8(c.BarrelLEDCount)
	w.u8(c.BarrelHue)
	w.u8(c.BarrelSaturation)
	w.flag(c.SpectralModes)
	w.flag(c.OverheatEnabled)
	w.u8(uint8(c.DefaultStream))
	w.u8(uint8(c.Vibration))
	w.flag(c.SoundsToPack)
	w.flag(c.QuickVenting)
	w.flag(c.AutoVentLight)
	w.flag(c.BeepLoop)
	w.flag(c.BootErrors)
	w.u8(uint8(c.DefaultYear))
	w.u8(uint8(c.DefaultYearCTS))
	w.u8(c.BargraphSegments)
	w.flag(c.InvertBargraph)
	w.flag(c.BargraphOverheatBlink)
	w.u8(c.BargraphIdle)
	w.u8(c.BargraphFire)
	w.u8(uint8(c.DefaultMode))
	return w.bytes()
}

func unmarshalWandConfig(b []byte) (WandConfig, error) {
	r := newLayoutReader(b)
	c := WandConfig{
		BarrelLEDCount:        r.u8(),
		BarrelHue:             r.u8(),
		BarrelSaturation:      r.u8(),
		SpectralModes:         r.flag(),
		OverheatEnabled:       r.flag(),
		DefaultStream:         StreamMode(r.u8()),
		Vibration:             VibrationMode(r.u8()),
		SoundsToPack:          r.flag(),
		QuickVenting:          r.flag(),
		AutoVentLight:         r.flag(),
		BeepLoop:              r.flag(),
		BootErrors:            r.flag(),
		DefaultYear:           Era(r.u8()),
		DefaultYearCTS:        Era(r.u8()),
		BargraphSegments:      r.u8(),
		InvertBargraph:        r.flag(),
		BargraphOverheatBlink: r.flag(),
		BargraphIdle:          r.u8(),
		BargraphFire:          r.u8(),
		DefaultMode:           SystemMode(r.u8()),
	}
	if err := r.finish(); err != nil {
		return WandConfig{}, err
	}
	return c, nil
}

// SmokeConfig holds pack smoke/overheat settings, global and per power level.
type SmokeConfig struct {
	Enabled            bool
	FanEnabled         bool
	BoosterEnabled     bool
	ContinuousFiring   bool
	LevelEnabled       [PowerLevels]bool
	OverheatDuration   [PowerLevels]uint8
	OverheatContinuous [PowerLevels]bool
	OverheatDelay      [PowerLevels]uint8
}

func (SmokeConfig) Shape() Shape { return ShapeSmokeConfig }

func (c SmokeConfig) marshal() []byte {
	w := newLayoutWriter(SmokeConfigSize)
	w.flag(c.Enabled)
	w.flag(c.FanEnabled)
	w.flag(c.BoosterEnabled)
	w.flag(c.ContinuousFiring)
	for _, v := range c.LevelEnabled {
		w.flag(v)
	}
	for _, v := range c.OverheatDuration {
		w.u8(v)
	}
	for _, v := range c.OverheatContinuous {
		w.flag(v)
	}
	for _, v := range c.OverheatDelay {
		w.u8(v)
	}
	return w.bytes()
}

func unmarshalSmokeConfig(b []byte) (SmokeConfig, error) {
	r := newLayoutReader(b)
	var c SmokeConfig
	c.Enabled = r.flag()
	c.FanEnabled = r.flag()
	c.BoosterEnabled = r.flag()
	c.ContinuousFiring = r.flag()
	for i := range c.LevelEnabled {
		c.LevelEnabled[i] = r.flag()
	}
	for i := range c.OverheatDuration {
		c.OverheatDuration[i] = r.u8()
	}
	for i := range c.OverheatContinuous {
		c.OverheatContinuous[i] = r.flag()
	}
	for i := range c.OverheatDelay {
		c.OverheatDelay[i] = r.u8()
	}
	if err := r.finish(); err != nil {
		return SmokeConfig{}, err
	}
	return c, nil
}

// DefaultPackConfig returns factory pack settings.
func DefaultPackConfig() PackConfig {
	return PackConfig{
		DefaultMode:         ModeSuperHero,
		DefaultYear:         EraAfterlife,
		CurrentYear:         EraAfterlife,
		DefaultVolume:       100,
		Vibration:           VibrationDefault,
		StreamEffects:       true,
		OverheatStrobe:      false,
		OverheatLightsOff:   true,
		OverheatSyncToFan:   false,
		DemoLightMode:       false,
		RibbonCableAlarm:    true,
		CyclotronLEDCount:   12,
		CyclotronHue:        0,
		CyclotronSaturation: 254,
		CyclotronClockwise:  true,
		InnerPanelLEDCount:  35,
		InnerCakeGRB:        false,
		PowercellLEDCount:   13,
		PowercellHue:        160,
		PowercellSaturation: 254,
		VideoGamePowercell:  false,
		AudioLEDEnabled:     true,
	}
}

// DefaultWandConfig returns factory wand settings.
func DefaultWandConfig() WandConfig {
	return WandConfig{
		BarrelLEDCount:        5,
		BarrelHue:             0,
		BarrelSaturation:      254,
		SpectralModes:         false,
		OverheatEnabled:       true,
		DefaultStream:         StreamProton,
		Vibration:             VibrationFiring,
		SoundsToPack:          false,
		QuickVenting:          true,
		AutoVentLight:         true,
		BeepLoop:              true,
		BootErrors:            true,
		DefaultYear:           EraDefault,
		DefaultYearCTS:        EraDefault,
		BargraphSegments:      28,
		InvertBargraph:        false,
		BargraphOverheatBlink: false,
		BargraphIdle:          1,
		BargraphFire:          1,
		DefaultMode:           ModeSuperHero,
	}
}

// DefaultSmokeConfig returns factory smoke settings.
func DefaultSmokeConfig() SmokeConfig {
	c := SmokeConfig{
		Enabled:        true,
		FanEnabled:     true,
		BoosterEnabled: true,
	}
	for i := 0; i < PowerLevels; i++ {
		c.LevelEnabled[i] = true
		c.OverheatDuration[i] = uint8(2 + i)
		c.OverheatDelay[i] = uint8(60 - 10*i)
	}
	c.OverheatContinuous[PowerLevels-1] = true
	return c
}

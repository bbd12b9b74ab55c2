package protocol

import "fmt"

// Shape identifies one of the closed set of wire layouts.
type Shape uint8

const (
	ShapeCommand     Shape = 1
	ShapeData        Shape = 2
	ShapePackConfig  Shape = 3
	ShapeWandConfig  Shape = 4
	ShapeSmokeConfig Shape = 5
	ShapeSync        Shape = 6
)

// Wire sizes in bytes.
const (
	CommandSize     = 5
	DataSize        = 6
	PackConfigSize  = 22
	WandConfigSize  = 20
	SmokeConfigSize = 24
	SyncSize        = 12
)

var shapeNames = map[Shape]string{
	ShapeCommand:     "command",
	ShapeData:        "data",
	ShapePackConfig:  "pack_config",
	ShapeWandConfig:  "wand_config",
	ShapeSmokeConfig: "smoke_config",
	ShapeSync:        "sync",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", uint8(s))
}

// Size returns the fixed payload length for s, or 0 when s is not a known shape.
func (s Shape) Size() int {
	switch s {
	case ShapeCommand:
		return CommandSize
	case ShapeData:
		return DataSize
	case ShapePackConfig:
		return PackConfigSize
	case ShapeWandConfig:
		return WandConfigSize
	case ShapeSmokeConfig:
		return SmokeConfigSize
	case ShapeSync:
		return SyncSize
	default:
		return 0
	}
}

// Shapes lists every known shape in id order.
func Shapes() []Shape {
	return []Shape{ShapeCommand, ShapeData, ShapePackConfig, ShapeWandConfig, ShapeSmokeConfig, ShapeSync}
}

// Datagram is one framed unit as handed over by a transport.
type Datagram struct {
	Tag     uint8
	Payload []byte
}

// Equal reports whether d and o carry the same tag and identical bytes.
func (d Datagram) Equal(o Datagram) bool {
	if d.Tag != o.Tag || len(d.Payload) != len(o.Payload) {
		return false
	}
	for i := range d.Payload {
		if d.Payload[i] != o.Payload[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that does not alias d's payload.
func (d Datagram) Clone() Datagram {
	buf := make([]byte, len(d.Payload))
	copy(buf, d.Payload)
	return Datagram{Tag: d.Tag, Payload: buf}
}

// Sentinels are the start/end bytes framing command and data structs for one
// link direction.
type Sentinels struct {
	Start byte
	End   byte
}

// ConfigKind names a persistable configuration blob.
type ConfigKind uint8

const (
	ConfigPack  ConfigKind = 1
	ConfigWand  ConfigKind = 2
	ConfigSmoke ConfigKind = 3
)

func (k ConfigKind) String() string {
	switch k {
	case ConfigPack:
		return "pack"
	case ConfigWand:
		return "wand"
	case ConfigSmoke:
		return "smoke"
	default:
		return fmt.Sprintf("config(%d)", uint8(k))
	}
}

// Shape returns the wire shape carrying blobs of kind k.
func (k ConfigKind) Shape() (Shape, error) {
	switch k {
	case ConfigPack:
		return ShapePackConfig, nil
	case ConfigWand:
		return ShapeWandConfig, nil
	case ConfigSmoke:
		return ShapeSmokeConfig, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownConfigKind, uint8(k))
	}
}

// ParseConfigKind maps a name used by config files and the admin API to a kind.
func ParseConfigKind(raw string) (ConfigKind, error) {
	switch raw {
	case "pack":
		return ConfigPack, nil
	case "wand":
		return ConfigWand, nil
	case "smoke":
		return ConfigSmoke, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownConfigKind, raw)
	}
}

// KindForShape is the inverse of ConfigKind.Shape.
func KindForShape(s Shape) (ConfigKind, bool) {
	switch s {
	case ShapePackConfig:
		return ConfigPack, true
	case ShapeWandConfig:
		return ConfigWand, true
	case ShapeSmokeConfig:
		return ConfigSmoke, true
	default:
		return 0, false
	}
}

// SystemMode is the top-level operating personality.
type SystemMode uint8

const (
	ModeSuperHero SystemMode = 0
	ModeOriginal  SystemMode = 1
)

// Era selects the movie-year theme.
type Era uint8

const (
	EraDefault      Era = 0
	Era1984         Era = 1
	Era1989         Era = 2
	EraAfterlife    Era = 3
	EraFrozenEmpire Era = 4
)

// StreamMode is the firing stream selection.
type StreamMode uint8

const (
	StreamProton    StreamMode = 0
	StreamSlime     StreamMode = 1
	StreamStasis    StreamMode = 2
	StreamMeson     StreamMode = 3
	StreamSpectral  StreamMode = 4
	StreamHalloween StreamMode = 5
	StreamChristmas StreamMode = 6
	StreamCustom    StreamMode = 7
)

// VibrationMode controls motor behavior.
type VibrationMode uint8

const (
	VibrationOff     VibrationMode = 0
	VibrationFiring  VibrationMode = 1
	VibrationAlways  VibrationMode = 2
	VibrationDefault VibrationMode = 3
)

// Body is any decoded struct the codec can carry.
type Body interface {
	Shape() Shape
}

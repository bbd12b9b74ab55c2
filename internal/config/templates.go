package config

import (
	"fmt"
	"os"
	"strings"
)

// Kinds lists the node kinds with templates.
var Kinds = []string{"pack", "wand", "attenuator", "belt"}

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "pack":
		return packTemplate, nil
	case "wand":
		return wandTemplate, nil
	case "attenuator":
		return attenuatorTemplate, nil
	case "belt":
		return beltTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const packTemplate = `name = "pack"
kind = "pack"
boot_sequence = true
tick_interval = "5ms"
owns = ["pack", "smoke"]

[session]
heartbeat = "1500ms"
liveness_timeout = "3s"
sync_burst = 4

[store]
kind = "file"
dir = "local/pack"

[admin]
enabled = true
addr = ":8080"
cors_origins = ["http://localhost:3000"]

[[links]]
id = "wand"
role = "authoritative"
owns = ["wand"]
transport = "serial"
port = "/dev/ttyUSB0"
baud = 9600

[[links]]
id = "attenuator"
role = "authoritative"
transport = "serial"
port = "/dev/ttyUSB1"
baud = 9600

[[links]]
id = "belt"
role = "authoritative"
transport = "serial"
port = "/dev/ttyUSB2"
baud = 9600
`

const wandTemplate = `name = "wand"
kind = "wand"
owns = ["wand"]

[store]
kind = "file"
dir = "local/wand"

[[links]]
id = "pack"
catalog = "wand"
role = "subordinate"
owns = ["pack", "smoke"]
transport = "serial"
port = "/dev/ttyUSB0"
baud = 9600
`

const attenuatorTemplate = `name = "attenuator"
kind = "attenuator"

[admin]
enabled = true
addr = ":8081"

[[links]]
id = "pack"
catalog = "attenuator"
role = "subordinate"
owns = ["pack", "smoke", "wand"]
transport = "serial"
port = "/dev/ttyUSB0"
baud = 9600
`

const beltTemplate = `name = "belt"
kind = "belt"

[nats]
url = "nats://127.0.0.1:4222"
prefix = "packlink"

[[links]]
id = "pack"
catalog = "belt"
role = "subordinate"
transport = "nats"
`

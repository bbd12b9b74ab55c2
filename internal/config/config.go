package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/packlink/internal/link"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/protocol/session"
)

// Transport kinds.
const (
	TransportSerial   = "serial"
	TransportNATS     = "nats"
	TransportLoopback = "loopback"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type NodeConfig struct {
	Name         string        `toml:"name"`
	Kind         string        `toml:"kind"`
	BootSequence bool          `toml:"boot_sequence"`
	TickInterval string        `toml:"tick_interval"`
	Owns         []string      `toml:"owns"`
	Session      SessionConfig `toml:"session"`
	Store        StoreConfig   `toml:"store"`
	Admin        AdminConfig   `toml:"admin"`
	NATS         NATSConfig    `toml:"nats"`
	Links        []LinkConfig  `toml:"links"`
}

type SessionConfig struct {
	Heartbeat       string `toml:"heartbeat"`
	LivenessTimeout string `toml:"liveness_timeout"`
	SyncBurst       int    `toml:"sync_burst"`
	ProbeInitial    string `toml:"probe_initial"`
	ProbeMax        string `toml:"probe_max"`
}

type StoreConfig struct {
	Kind        string `toml:"kind"`
	Dir         string `toml:"dir"`
	RedisAddr   string `toml:"redis_addr"`
	RedisDB     int    `toml:"redis_db"`
	RedisPrefix string `toml:"redis_prefix"`
}

type AdminConfig struct {
	Enabled     bool     `toml:"enabled"`
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
	TokenFile   string   `toml:"token_file"`
}

type NATSConfig struct {
	URL    string `toml:"url"`
	Prefix string `toml:"prefix"`
}

type LinkConfig struct {
	ID        string   `toml:"id"`
	Catalog   string   `toml:"catalog"`
	Role      string   `toml:"role"`
	Owns      []string `toml:"owns"`
	Transport string   `toml:"transport"`
	Port      string   `toml:"port"`
	Baud      int      `toml:"baud"`
	Buffer    int      `toml:"buffer"`
}

func LoadNodeConfig(path string) (NodeConfig, error) {
	var cfg NodeConfig
	if err := loadToml(path, &cfg); err != nil {
		return NodeConfig{}, err
	}
	cfg = applyDefaults(cfg)
	if err := ValidateNodeConfig(cfg); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg NodeConfig) NodeConfig {
	if cfg.Name == "" {
		cfg.Name = cfg.Kind
	}
	if cfg.Store.Kind == "" {
		cfg.Store.Kind = StoreMemory
	}
	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = ":8080"
	}
	if cfg.NATS.Prefix == "" {
		cfg.NATS.Prefix = "packlink"
	}
	for i := range cfg.Links {
		if cfg.Links[i].Catalog == "" {
			cfg.Links[i].Catalog = cfg.Links[i].ID
		}
	}
	return cfg
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateNodeConfig(cfg NodeConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("node config missing name")
	}
	if _, err := cfg.SessionConfig(); err != nil {
		return err
	}
	if _, err := cfg.TickDuration(); err != nil {
		return err
	}
	if _, err := parseKinds(cfg.Owns); err != nil {
		return fmt.Errorf("owns: %w", err)
	}
	switch cfg.Store.Kind {
	case StoreMemory:
	case StoreFile:
		if strings.TrimSpace(cfg.Store.Dir) == "" {
			return fmt.Errorf("file store requires dir")
		}
	case StoreRedis:
		if strings.TrimSpace(cfg.Store.RedisAddr) == "" {
			return fmt.Errorf("redis store requires redis_addr")
		}
	default:
		return fmt.Errorf("unknown store kind: %s", cfg.Store.Kind)
	}
	if cfg.Admin.Token != "" && cfg.Admin.TokenFile != "" {
		return fmt.Errorf("admin token and token_file are exclusive")
	}
	if len(cfg.Links) == 0 {
		return fmt.Errorf("node config has no links")
	}
	seen := make(map[string]bool, len(cfg.Links))
	for i, l := range cfg.Links {
		if err := ValidateLinkConfig(cfg, l); err != nil {
			return fmt.Errorf("links[%d] invalid: %w", i, err)
		}
		if seen[l.ID] {
			return fmt.Errorf("links[%d] duplicate id %s", i, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

func ValidateLinkConfig(cfg NodeConfig, l LinkConfig) error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if _, err := catalog.Lookup(l.Catalog); err != nil {
		return err
	}
	if _, err := link.ParseRole(l.Role); err != nil {
		return err
	}
	if _, err := parseKinds(l.Owns); err != nil {
		return fmt.Errorf("owns: %w", err)
	}
	switch l.Transport {
	case TransportSerial:
		if strings.TrimSpace(l.Port) == "" {
			return fmt.Errorf("serial transport requires port")
		}
	case TransportNATS:
		if strings.TrimSpace(cfg.NATS.URL) == "" {
			return fmt.Errorf("nats transport requires [nats] url")
		}
	case TransportLoopback:
	default:
		return fmt.Errorf("unknown transport: %q", l.Transport)
	}
	return nil
}

// SessionConfig converts the TOML durations; unset fields keep defaults.
func (cfg NodeConfig) SessionConfig() (session.Config, error) {
	out := session.DefaultConfig()
	s := cfg.Session
	var err error
	if out.HeartbeatInterval, err = parseDuration("session.heartbeat", s.Heartbeat, out.HeartbeatInterval); err != nil {
		return session.Config{}, err
	}
	timeout := out.LivenessTimeout
	if s.Heartbeat != "" {
		timeout = 0
	}
	if out.LivenessTimeout, err = parseDuration("session.liveness_timeout", s.LivenessTimeout, timeout); err != nil {
		return session.Config{}, err
	}
	if out.Probe.InitialDelay, err = parseDuration("session.probe_initial", s.ProbeInitial, out.Probe.InitialDelay); err != nil {
		return session.Config{}, err
	}
	if out.Probe.MaxDelay, err = parseDuration("session.probe_max", s.ProbeMax, out.Probe.MaxDelay); err != nil {
		return session.Config{}, err
	}
	out.SyncBurst = s.SyncBurst
	out = out.WithDefaults()
	if err := out.Validate(); err != nil {
		return session.Config{}, err
	}
	return out, nil
}

func (cfg NodeConfig) TickDuration() (time.Duration, error) {
	return parseDuration("tick_interval", cfg.TickInterval, 0)
}

func parseDuration(field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: negative duration", field)
	}
	return d, nil
}

func parseKinds(raw []string) ([]protocol.ConfigKind, error) {
	out := make([]protocol.ConfigKind, 0, len(raw))
	for _, r := range raw {
		k, err := protocol.ParseConfigKind(strings.TrimSpace(r))
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

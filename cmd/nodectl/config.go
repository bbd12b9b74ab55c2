package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/packlink/internal/config"
)

// serviceConfig is what nodectl runs: a node config plus process settings.
type serviceConfig struct {
	Node     config.NodeConfig
	LogLevel string
}

type fileConfig struct {
	NodeConfig   string   `toml:"node_config"`
	Name         string   `toml:"name"`
	LogLevel     string   `toml:"log_level"`
	Admin        bool     `toml:"admin"`
	AdminAddr    string   `toml:"admin_addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	AdminToken   string   `toml:"admin_token"`
	TokenFile    string   `toml:"admin_token_file"`
	Heartbeat    string   `toml:"heartbeat"`
	Timeout      string   `toml:"liveness_timeout"`
	TickInterval string   `toml:"tick_interval"`
	StoreDir     string   `toml:"store_dir"`
	NATSURL      string   `toml:"nats_url"`
}

// loadServiceConfig reads the process file at path, loads the node config
// it names (relative to path), then applies every key the process file
// defines on top.
func loadServiceConfig(path string) (serviceConfig, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load nodectl config: %w", err)
	}
	if !meta.IsDefined("node_config") || strings.TrimSpace(raw.NodeConfig) == "" {
		return serviceConfig{}, fmt.Errorf("nodectl config %s missing node_config", path)
	}
	nodePath := strings.TrimSpace(raw.NodeConfig)
	if !filepath.IsAbs(nodePath) {
		nodePath = filepath.Join(filepath.Dir(path), nodePath)
	}
	cfg, err := config.LoadNodeConfig(nodePath)
	if err != nil {
		return serviceConfig{}, err
	}
	out := serviceConfig{Node: cfg, LogLevel: "info"}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			out.Node.Name = name
		}
	}
	if meta.IsDefined("log_level") {
		out.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("admin") {
		out.Node.Admin.Enabled = raw.Admin
	}
	if meta.IsDefined("admin_addr") {
		out.Node.Admin.Addr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		out.Node.Admin.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("admin_token") {
		out.Node.Admin.Token = strings.TrimSpace(raw.AdminToken)
		out.Node.Admin.TokenFile = ""
	}
	if meta.IsDefined("admin_token_file") {
		tokenPath := strings.TrimSpace(raw.TokenFile)
		if tokenPath != "" && !filepath.IsAbs(tokenPath) {
			tokenPath = filepath.Join(filepath.Dir(path), tokenPath)
		}
		out.Node.Admin.TokenFile = tokenPath
		out.Node.Admin.Token = ""
	}
	if meta.IsDefined("heartbeat") {
		out.Node.Session.Heartbeat = strings.TrimSpace(raw.Heartbeat)
		// a new heartbeat re-derives the timeout
		out.Node.Session.LivenessTimeout = ""
	}
	if meta.IsDefined("liveness_timeout") {
		out.Node.Session.LivenessTimeout = strings.TrimSpace(raw.Timeout)
	}
	if meta.IsDefined("tick_interval") {
		out.Node.TickInterval = strings.TrimSpace(raw.TickInterval)
	}
	if meta.IsDefined("store_dir") {
		out.Node.Store.Kind = config.StoreFile
		out.Node.Store.Dir = strings.TrimSpace(raw.StoreDir)
	}
	if meta.IsDefined("nats_url") {
		out.Node.NATS.URL = strings.TrimSpace(raw.NATSURL)
	}

	if err := config.ValidateNodeConfig(out.Node); err != nil {
		return serviceConfig{}, fmt.Errorf("nodectl config %s: %w", path, err)
	}
	return out, nil
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestLoadServiceConfigOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.Name != "wand.bench" {
		t.Fatalf("name got=%q want=wand.bench", cfg.Node.Name)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level got=%q", cfg.LogLevel)
	}
	if !cfg.Node.Admin.Enabled || cfg.Node.Admin.Addr != "127.0.0.1:8090" {
		t.Fatalf("admin got=%+v", cfg.Node.Admin)
	}
	if cfg.Node.Session.Heartbeat != "1s" || cfg.Node.Session.LivenessTimeout != "" {
		t.Fatalf("session got=%+v", cfg.Node.Session)
	}
	sess, err := cfg.Node.SessionConfig()
	if err != nil {
		t.Fatalf("session config: %v", err)
	}
	if sess.LivenessTimeout != 2*sess.HeartbeatInterval {
		t.Fatalf("timeout got=%s heartbeat=%s", sess.LivenessTimeout, sess.HeartbeatInterval)
	}
	if cfg.Node.Kind != "wand" || len(cfg.Node.Links) != 1 {
		t.Fatalf("node config got=%+v", cfg.Node)
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

const benchNode = `
name = "belt"
kind = "belt"

[[links]]
id = "pack"
catalog = "belt"
role = "subordinate"
transport = "loopback"
`

func TestLoadServiceConfigDefaults(t *testing.T) {
	testlog.Start(t)
	dir := writeFiles(t, map[string]string{
		"node.toml":    benchNode,
		"nodectl.toml": `node_config = "node.toml"`,
	})
	cfg, err := loadServiceConfig(filepath.Join(dir, "nodectl.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.Name != "belt" || cfg.LogLevel != "info" || cfg.Node.Admin.Enabled {
		t.Fatalf("defaults got name=%q level=%q admin=%v", cfg.Node.Name, cfg.LogLevel, cfg.Node.Admin.Enabled)
	}
}

func TestLoadServiceConfigStoreDirSwitchesToFile(t *testing.T) {
	testlog.Start(t)
	dir := writeFiles(t, map[string]string{
		"node.toml":    benchNode,
		"nodectl.toml": "node_config = \"node.toml\"\nstore_dir = \"state\"\n",
	})
	cfg, err := loadServiceConfig(filepath.Join(dir, "nodectl.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Node.Store.Kind != "file" || cfg.Node.Store.Dir != "state" {
		t.Fatalf("store got=%+v", cfg.Node.Store)
	}
}

func TestLoadServiceConfigTokenFileRelative(t *testing.T) {
	testlog.Start(t)
	dir := writeFiles(t, map[string]string{
		"node.toml":    benchNode,
		"nodectl.toml": "node_config = \"node.toml\"\nadmin_token_file = \"admin.token\"\n",
	})
	cfg, err := loadServiceConfig(filepath.Join(dir, "nodectl.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if want := filepath.Join(dir, "admin.token"); cfg.Node.Admin.TokenFile != want || cfg.Node.Admin.Token != "" {
		t.Fatalf("admin got=%+v want token_file=%s", cfg.Node.Admin, want)
	}
}

func TestLoadServiceConfigErrors(t *testing.T) {
	testlog.Start(t)
	cases := map[string]map[string]string{
		"missing node_config": {"nodectl.toml": `name = "x"`},
		"missing node file":   {"nodectl.toml": `node_config = "nope.toml"`},
		"bad heartbeat": {
			"node.toml":    benchNode,
			"nodectl.toml": "node_config = \"node.toml\"\nheartbeat = \"abc\"\n",
		},
		"nats without url": {
			"node.toml":    benchNode + "\n[[links]]\nid = \"bus\"\ncatalog = \"belt\"\nrole = \"authoritative\"\ntransport = \"nats\"\n",
			"nodectl.toml": `node_config = "node.toml"`,
		},
	}
	for name, files := range cases {
		dir := writeFiles(t, files)
		if _, err := loadServiceConfig(filepath.Join(dir, "nodectl.toml")); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

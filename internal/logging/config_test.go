package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"DEBUG":    zerolog.DebugLevel,
		" warn ":   zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"inactive": zerolog.Disabled,
	}
	for raw, want := range cases {
		got, ok := parseLevel(raw)
		if !ok || got != want {
			t.Fatalf("parseLevel(%q) got=%v ok=%v want=%v", raw, got, ok, want)
		}
	}
	if _, ok := parseLevel("loud"); ok {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogBypass, "true")
	t.Setenv(EnvLogTimestamp, "nope")
	cfg := defaultConfig(ProfileTest)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("unexpected level: %v", cfg.Level)
	}
	if !cfg.Bypass {
		t.Fatalf("expected bypass enabled")
	}
	if cfg.Timestamp {
		t.Fatalf("invalid bool must not flip timestamp")
	}
}

func TestApplyBypassWritesJSON(t *testing.T) {
	prev := Logger()
	defer setLogger(*prev)

	var buf bytes.Buffer
	apply(Config{Level: zerolog.InfoLevel, Bypass: true, Out: &buf})
	Infof("link.Link.enter link=%s", "wand")
	Debugf("filtered")
	out := buf.String()
	if !strings.Contains(out, `"message":"link.Link.enter link=wand"`) {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "filtered") {
		t.Fatalf("debug line should be filtered at info level: %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	prev := *Logger()
	t.Cleanup(func() { setLogger(prev) })

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	if got := Logger().GetLevel(); got != zerolog.WarnLevel {
		t.Fatalf("level got=%v want=warn", got)
	}
	if err := SetLevel("shouting"); err == nil {
		t.Fatalf("expected unknown level error")
	}
}

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestApplyIsLastWriterWinsAndNotPersisted(t *testing.T) {
	testlog.Start(t)
	mem := NewMemoryPersister()
	s := New([]protocol.ConfigKind{protocol.ConfigPack}, mem)

	first := protocol.DefaultPackConfig()
	first.CyclotronLEDCount = 40
	second := protocol.DefaultPackConfig()
	second.CyclotronLEDCount = 20
	second.RibbonCableAlarm = false

	if err := s.Apply(protocol.ConfigPack, first); err != nil {
		t.Fatalf("apply first: %v", err)
	}
	if err := s.Apply(protocol.ConfigPack, second); err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if got := s.Pack(); got != second {
		t.Fatalf("last writer lost got=%+v", got)
	}
	if _, err := mem.Load(context.Background(), protocol.ConfigPack); !errors.Is(err, ErrNotFound) {
		t.Fatalf("apply must not persist, err=%v", err)
	}
	if info := s.Info(); len(info) != 1 || !info[0].Dirty {
		t.Fatalf("expected dirty pack entry, got %+v", info)
	}

	if err := s.Save(context.Background(), protocol.ConfigPack); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved, err := mem.Load(context.Background(), protocol.ConfigPack)
	if err != nil || saved != protocol.Body(second) {
		t.Fatalf("saved got=%+v err=%v", saved, err)
	}
	if info := s.Info(); info[0].Dirty {
		t.Fatalf("expected clean after save")
	}
}

func TestApplyRejectsForeignKindsAndMismatchedBodies(t *testing.T) {
	testlog.Start(t)
	s := New([]protocol.ConfigKind{protocol.ConfigPack}, nil)
	if err := s.Apply(protocol.ConfigWand, protocol.DefaultWandConfig()); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned, got %v", err)
	}
	if err := s.Apply(protocol.ConfigPack, protocol.DefaultWandConfig()); !errors.Is(err, ErrKindBody) {
		t.Fatalf("expected ErrKindBody, got %v", err)
	}
	if err := s.Save(context.Background(), protocol.ConfigSmoke); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("expected ErrNotOwned on save, got %v", err)
	}
}

func TestMirrorNotifiesObservers(t *testing.T) {
	testlog.Start(t)
	s := New([]protocol.ConfigKind{protocol.ConfigPack}, nil)
	var seen []protocol.ConfigKind
	var ownedFlags []bool
	s.Observe(func(kind protocol.ConfigKind, _ protocol.Body, owned bool) {
		seen = append(seen, kind)
		ownedFlags = append(ownedFlags, owned)
	})
	wand := protocol.DefaultWandConfig()
	wand.BarrelLEDCount = 48
	if err := s.Mirror(protocol.ConfigWand, wand); err != nil {
		t.Fatalf("mirror: %v", err)
	}
	if got := s.Wand(); got != wand {
		t.Fatalf("mirror not readable got=%+v", got)
	}
	if s.Owns(protocol.ConfigWand) {
		t.Fatalf("mirror must not take ownership")
	}
	if len(seen) != 1 || seen[0] != protocol.ConfigWand || ownedFlags[0] {
		t.Fatalf("observer calls got=%v owned=%v", seen, ownedFlags)
	}
}

func TestFilePersisterRoundTripThroughLoad(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	fp, err := NewFilePersister(dir)
	if err != nil {
		t.Fatalf("file persister: %v", err)
	}
	kinds := []protocol.ConfigKind{protocol.ConfigWand, protocol.ConfigSmoke}
	s := New(kinds, fp)

	wand := protocol.DefaultWandConfig()
	wand.DefaultStream = protocol.StreamStasis
	wand.InvertBargraph = true
	smoke := protocol.DefaultSmokeConfig()
	smoke.OverheatDelay[2] = 99
	_ = s.Apply(protocol.ConfigWand, wand)
	_ = s.Apply(protocol.ConfigSmoke, smoke)
	for _, k := range kinds {
		if err := s.Save(context.Background(), k); err != nil {
			t.Fatalf("save %s: %v", k, err)
		}
	}

	reloaded := New(kinds, fp)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := reloaded.Wand(); got != wand {
		t.Fatalf("wand reload got=%+v want=%+v", got, wand)
	}
	got, _ := reloaded.Get(protocol.ConfigSmoke)
	if got != protocol.Body(smoke) {
		t.Fatalf("smoke reload got=%+v want=%+v", got, smoke)
	}
}

func TestLoadKeepsDefaultsWhenNothingSaved(t *testing.T) {
	testlog.Start(t)
	fp, _ := NewFilePersister(t.TempDir())
	s := New([]protocol.ConfigKind{protocol.ConfigPack}, fp)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Pack() != protocol.DefaultPackConfig() {
		t.Fatalf("expected factory defaults")
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	fp, _ := NewFilePersister(dir)
	if err := os.WriteFile(fp.path(protocol.ConfigPack), []byte("DefaultMode = \"x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New([]protocol.ConfigKind{protocol.ConfigPack}, fp)
	if err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}

// Requires a reachable server, e.g. PACKLINK_TEST_REDIS=127.0.0.1:6379.
func TestRedisPersisterRoundTrip(t *testing.T) {
	testlog.Start(t)
	addr := os.Getenv("PACKLINK_TEST_REDIS")
	if addr == "" {
		t.Skip("PACKLINK_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	rp, err := NewRedisPersister(client, "packlink-test", t.Name())
	if err != nil {
		t.Fatalf("persister: %v", err)
	}
	defer client.Del(ctx, rp.Key(protocol.ConfigPack))

	if _, err := rp.Load(ctx, protocol.ConfigPack); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	pack := protocol.DefaultPackConfig()
	pack.PowercellHue = 12
	if err := rp.Save(ctx, protocol.ConfigPack, pack); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := rp.Load(ctx, protocol.ConfigPack)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != protocol.Body(pack) {
		t.Fatalf("redis round-trip got=%+v want=%+v", got, pack)
	}
}

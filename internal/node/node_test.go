package node

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/packlink/internal/link"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/protocol/session"
	"github.com/danmuck/packlink/internal/store"
	"github.com/danmuck/packlink/internal/testutil/testlog"
	"github.com/danmuck/packlink/internal/transport"
)

var epoch = time.Unix(1700000000, 0)

const step = 10 * time.Millisecond

type harness struct {
	*Fleet
	now time.Time
}

func newHarness(t *testing.T, cfg FleetConfig) *harness {
	t.Helper()
	if cfg.Buffer == 0 {
		cfg.Buffer = 256
	}
	if cfg.Seed == 0 {
		cfg.Seed = 7
	}
	f, err := NewFleet(cfg)
	if err != nil {
		t.Fatalf("fleet: %v", err)
	}
	return &harness{Fleet: f, now: epoch}
}

func (h *harness) run(n int) {
	for i := 0; i < n; i++ {
		h.Tick(h.now)
		h.now = h.now.Add(step)
	}
}

func (h *harness) converge(t *testing.T) {
	t.Helper()
	for i := 0; i < 3000; i++ {
		h.run(1)
		if h.Converged() {
			return
		}
	}
	for _, n := range h.Nodes() {
		t.Logf("node=%s links=%+v", n.NodeID(), n.Status().Links)
	}
	t.Fatalf("fleet did not converge")
}

func (h *harness) until(t *testing.T, what string, cond func() bool) {
	t.Helper()
	for i := 0; i < 500; i++ {
		h.run(1)
		if cond() {
			return
		}
	}
	t.Fatalf("timed out waiting for %s", what)
}

// settle ticks on the wall clock so work running off the loop can land.
func (h *harness) settle(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		h.run(1)
		time.Sleep(time.Millisecond)
	}
}

func TestFleetConverges(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{BootSequence: true})
	h.converge(t)

	for _, id := range []link.LinkID{NameWand, NameAttenuator, NameBelt} {
		if !h.Pack.IsPeerPresent(id) {
			t.Fatalf("pack link %s not present", id)
		}
	}
	if h.Pack.IsPeerPresent("nope") {
		t.Fatalf("unknown link reported present")
	}
	st := h.Pack.Status()
	if st.Name != NamePack || len(st.Links) != 3 {
		t.Fatalf("status got=%+v", st)
	}
	if st.UpdatedAt.IsZero() {
		t.Fatalf("status never published")
	}
}

func TestRelayWandConfigToAttenuator(t *testing.T) {
	testlog.Start(t)
	wandStore := store.New(OwnedKinds(NameWand), nil)
	h := newHarness(t, FleetConfig{Stores: map[string]*store.Store{NameWand: wandStore}})
	h.converge(t)

	cfg := protocol.DefaultWandConfig()
	cfg.BarrelHue = 42
	cfg.BargraphSegments = 28
	if err := wandStore.Apply(protocol.ConfigWand, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := h.Attenuator.RequestConfig(protocol.ConfigWand, LocalRequester); err != nil {
		t.Fatalf("request: %v", err)
	}
	h.until(t, "wand config at attenuator", func() bool {
		_, ok := h.Attenuator.Store().Get(protocol.ConfigWand)
		return ok
	})

	got, _ := h.Attenuator.Store().Get(protocol.ConfigWand)
	if got != protocol.Body(cfg) {
		t.Fatalf("relayed config got=%+v want=%+v", got, cfg)
	}
	if mirrored, ok := h.Pack.Store().Get(protocol.ConfigWand); !ok || mirrored != protocol.Body(cfg) {
		t.Fatalf("hub mirror got=%+v ok=%v", mirrored, ok)
	}
	h.run(5)
	if pending := h.Pack.Status().Pending; len(pending) != 0 {
		t.Fatalf("hub still pending: %+v", pending)
	}
}

func TestRelayAnsweredByOwnerDirectly(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{})
	h.converge(t)

	if err := h.Wand.RequestConfig(protocol.ConfigPack, LocalRequester); err != nil {
		t.Fatalf("request: %v", err)
	}
	h.until(t, "pack config at wand", func() bool {
		_, ok := h.Wand.Store().Get(protocol.ConfigPack)
		return ok
	})
	got, _ := h.Wand.Store().Get(protocol.ConfigPack)
	if got != protocol.Body(protocol.DefaultPackConfig()) {
		t.Fatalf("pack config got=%+v", got)
	}
}

func TestPushAndSaveForwardToOwner(t *testing.T) {
	testlog.Start(t)
	persist := store.NewMemoryPersister()
	wandStore := store.New(OwnedKinds(NameWand), persist)
	h := newHarness(t, FleetConfig{Stores: map[string]*store.Store{NameWand: wandStore}})
	h.converge(t)

	cfg := protocol.DefaultWandConfig()
	cfg.QuickVenting = !cfg.QuickVenting
	cfg.BarrelLEDCount = 48
	if err := h.Attenuator.PushConfig(protocol.ConfigWand, cfg); err != nil {
		t.Fatalf("push: %v", err)
	}
	h.until(t, "wand applies pushed config", func() bool {
		got, _ := wandStore.Get(protocol.ConfigWand)
		return got == protocol.Body(cfg)
	})
	if _, err := persist.Load(context.Background(), protocol.ConfigWand); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("push persisted early err=%v", err)
	}

	if result, err := h.Attenuator.SaveConfig(protocol.ConfigWand); err != nil || result != nil {
		t.Fatalf("forwarded save got result=%v err=%v", result, err)
	}
	h.settle(t, "wand persists config", func() bool {
		_, err := persist.Load(context.Background(), protocol.ConfigWand)
		return err == nil
	})
	saved, _ := persist.Load(context.Background(), protocol.ConfigWand)
	if saved != protocol.Body(cfg) {
		t.Fatalf("saved got=%+v want=%+v", saved, cfg)
	}
	for _, info := range wandStore.Info() {
		if info.Kind == protocol.ConfigWand.String() && info.Dirty {
			t.Fatalf("wand config still dirty after save")
		}
	}
}

func TestOrphanedRelayStaysPending(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{Session: session.Config{
		HeartbeatInterval: 200 * time.Millisecond,
		LivenessTimeout:   5 * time.Second,
	}})
	h.converge(t)

	// the wand wire goes silent for less than the liveness timeout
	h.Wires[NameWand].Cut()
	if err := h.Attenuator.RequestConfig(protocol.ConfigWand, LocalRequester); err != nil {
		t.Fatalf("request: %v", err)
	}
	h.run(100)

	pending := h.Pack.Status().Pending
	if len(pending) != 1 || pending[0].Kind != protocol.ConfigWand.String() {
		t.Fatalf("hub pending got=%+v", pending)
	}
	if len(pending[0].Requesters) != 1 || pending[0].Requesters[0] != NameAttenuator {
		t.Fatalf("requesters got=%v", pending[0].Requesters)
	}
	if _, ok := h.Attenuator.Store().Get(protocol.ConfigWand); ok {
		t.Fatalf("orphaned request produced an answer")
	}

	h.Wires[NameWand].Restore()
	if err := h.Attenuator.RequestConfig(protocol.ConfigWand, LocalRequester); err != nil {
		t.Fatalf("retry: %v", err)
	}
	h.until(t, "retried relay answered", func() bool {
		_, ok := h.Attenuator.Store().Get(protocol.ConfigWand)
		return ok
	})
}

func TestRequestValidation(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{})

	if err := h.Belt.RequestConfig(protocol.ConfigWand, LocalRequester); !errors.Is(err, ErrNoOwner) {
		t.Fatalf("belt request err=%v want ErrNoOwner", err)
	}
	if err := h.Pack.RequestConfig(protocol.ConfigWand, "ghost"); !errors.Is(err, ErrUnknownLink) {
		t.Fatalf("unknown requester err=%v", err)
	}
	if err := h.Pack.RequestConfig(protocol.ConfigKind(99), LocalRequester); err == nil {
		t.Fatalf("bad kind accepted")
	}
	// the owner link is down: the request is held, not reported
	if err := h.Attenuator.RequestConfig(protocol.ConfigWand, LocalRequester); err != nil {
		t.Fatalf("request while disconnected err=%v", err)
	}
}

func TestFanOutAcrossLinks(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{})
	h.converge(t)

	if !h.Wand.Apply(catalog.ActionPowerLevel, 4) {
		t.Fatalf("apply rejected")
	}
	h.until(t, "power at attenuator and belt", func() bool {
		return h.Pack.SharedState().Power == 4 &&
			h.Attenuator.SharedState().Power == 4 &&
			h.Belt.SharedState().Power == 4
	})

	if !h.Attenuator.SetVolume([3]uint8{30, 40, 50}) {
		t.Fatalf("volume rejected")
	}
	h.until(t, "volume at wand", func() bool {
		return h.Wand.SharedState().Volume() == [3]uint8{30, 40, 50}
	})

	if h.Pack.Apply(catalog.ActionVent, 0) {
		t.Fatalf("effect action changed state")
	}
}

func TestSubmitAndDo(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{})
	h.converge(t)

	result := make(chan error, 1)
	go func() {
		result <- h.Pack.Do(context.Background(), func() error {
			if !h.Pack.Apply(catalog.ActionAlarmOn, 0) {
				return errors.New("alarm not applied")
			}
			return nil
		})
	}()
	deadline := time.After(2 * time.Second)
	for {
		h.run(1)
		select {
		case err := <-result:
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			if !h.Pack.Status().State.Alarm {
				t.Fatalf("published state missing alarm")
			}
			return
		case <-deadline:
			t.Fatalf("do never ran")
		default:
		}
	}
}

func TestSubmitBusy(t *testing.T) {
	testlog.Start(t)
	a, _ := transport.NewPipe("wand", 4)
	cat, err := catalog.Wand()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	n, err := New(Options{
		Name:         "pack",
		SubmitBuffer: 1,
		Links:        []LinkSpec{{ID: "wand", Role: link.RoleAuthoritative, Catalog: cat, Transport: a}},
		Seed:         1,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := n.Submit(func() {}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := n.Submit(func() {}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit err=%v want ErrBusy", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.Tick(epoch)
	if err := n.Do(ctx, func() error { return nil }); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("do err=%v", err)
	}
}

func TestStandaloneUsesPersistedConfig(t *testing.T) {
	testlog.Start(t)
	cat, err := catalog.Wand()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st := store.New([]protocol.ConfigKind{protocol.ConfigPack}, nil)
	pack := protocol.DefaultPackConfig()
	pack.DefaultVolume = 40
	if err := st.Apply(protocol.ConfigPack, pack); err != nil {
		t.Fatalf("apply: %v", err)
	}
	n, err := New(Options{
		Name:  "wand",
		Store: st,
		Links: []LinkSpec{{
			ID: "pack", Role: link.RoleSubordinate, Catalog: cat,
			Transport: transport.NewLoopback(8),
		}},
		Seed: 3,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	now := epoch
	l, _ := n.Link("pack")
	for i := 0; i < 200 && l.State() != link.StateStandalone; i++ {
		n.Tick(now)
		now = now.Add(step)
	}
	if l.State() != link.StateStandalone {
		t.Fatalf("link state got=%s want=standalone", l.State())
	}
	if got := n.SharedState().MasterVolume; got != 40 {
		t.Fatalf("standalone volume got=%d want=40", got)
	}
	if n.IsPeerPresent("pack") {
		t.Fatalf("standalone link reported present")
	}
}

func TestNewRejectsConflictingOwnership(t *testing.T) {
	testlog.Start(t)
	cat, _ := catalog.Wand()
	a, _ := transport.NewPipe("wand", 4)
	_, err := New(Options{
		Name:  "pack",
		Store: store.New([]protocol.ConfigKind{protocol.ConfigWand}, nil),
		Links: []LinkSpec{{
			ID: "wand", Role: link.RoleAuthoritative, Catalog: cat, Transport: a,
			Owns: []protocol.ConfigKind{protocol.ConfigWand},
		}},
	})
	if !errors.Is(err, ErrInvalidNode) {
		t.Fatalf("err=%v want ErrInvalidNode", err)
	}
	if _, err := New(Options{Name: "x"}); !errors.Is(err, ErrInvalidNode) {
		t.Fatalf("no links err=%v", err)
	}
}

// gatedPersister holds every Save until release is closed.
type gatedPersister struct {
	*store.MemoryPersister
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func newGatedPersister() *gatedPersister {
	return &gatedPersister{
		MemoryPersister: store.NewMemoryPersister(),
		release:         make(chan struct{}),
		started:         make(chan struct{}),
	}
}

func (p *gatedPersister) Save(ctx context.Context, kind protocol.ConfigKind, body protocol.Body) error {
	p.once.Do(func() { close(p.started) })
	select {
	case <-p.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.MemoryPersister.Save(ctx, kind, body)
}

func (p *gatedPersister) saving() bool {
	select {
	case <-p.started:
		return true
	default:
		return false
	}
}

func TestInboundSaveRunsOffLoop(t *testing.T) {
	testlog.Start(t)
	persist := newGatedPersister()
	packStore := store.New(OwnedKinds(NamePack), persist)
	h := newHarness(t, FleetConfig{Stores: map[string]*store.Store{NamePack: packStore}})
	h.converge(t)

	if result, err := h.Wand.SaveConfig(protocol.ConfigPack); err != nil || result != nil {
		t.Fatalf("forwarded save got result=%v err=%v", result, err)
	}

	var slowest time.Duration
	tick := func() {
		start := time.Now()
		h.run(1)
		if d := time.Since(start); d > slowest {
			slowest = d
		}
	}
	deadline := time.Now().Add(2 * time.Second)
	for !persist.saving() {
		if time.Now().After(deadline) {
			t.Fatalf("pack never started saving")
		}
		tick()
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 20; i++ {
		tick()
	}
	if slowest > 250*time.Millisecond {
		t.Fatalf("tick blocked on save got=%s want<250ms", slowest)
	}
	if _, err := persist.Load(context.Background(), protocol.ConfigPack); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("save finished before release err=%v", err)
	}
	for _, l := range h.Wand.Status().Links {
		if l.State != link.StateConnected.String() {
			t.Fatalf("wand link %s state got=%s want=connected", l.ID, l.State)
		}
	}

	close(persist.release)
	h.settle(t, "pack persists config", func() bool {
		_, err := persist.Load(context.Background(), protocol.ConfigPack)
		return err == nil
	})
}

func TestLocalSaveReportsResult(t *testing.T) {
	testlog.Start(t)
	persist := newGatedPersister()
	packStore := store.New(OwnedKinds(NamePack), persist)
	h := newHarness(t, FleetConfig{Stores: map[string]*store.Store{NamePack: packStore}})
	h.converge(t)

	result, err := h.Pack.SaveConfig(protocol.ConfigPack)
	if err != nil || result == nil {
		t.Fatalf("owned save got result=%v err=%v", result, err)
	}
	h.run(5)
	select {
	case err := <-result:
		t.Fatalf("save reported before release err=%v", err)
	default:
	}

	close(persist.release)
	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("save err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("save never reported")
	}
	if _, err := persist.Load(context.Background(), protocol.ConfigPack); err != nil {
		t.Fatalf("persisted err=%v", err)
	}
}

func TestTriggerRefusesNonEffects(t *testing.T) {
	testlog.Start(t)
	h := newHarness(t, FleetConfig{})
	h.converge(t)

	for _, a := range []catalog.Action{catalog.ActionSyncStart, catalog.ActionSyncEnd, catalog.ActionConfigSave, catalog.ActionPowerLevel} {
		if err := h.Pack.Trigger(NameWand, a, 0); !errors.Is(err, ErrNotEffect) {
			t.Fatalf("trigger %s err got=%v want=%v", a, err, ErrNotEffect)
		}
	}
	if err := h.Pack.Trigger(NameWand, catalog.ActionVent, 0); err != nil {
		t.Fatalf("trigger vent: %v", err)
	}
	h.run(50)
	for _, ls := range h.Wand.Status().Links {
		if ls.State != link.StateConnected.String() || ls.SyncInFlight {
			t.Fatalf("wand link after triggers got=%+v", ls)
		}
	}
}

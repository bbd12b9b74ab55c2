package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/node"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/protocol/session"
	"github.com/danmuck/packlink/internal/server"
)

type options struct {
	duration  time.Duration
	tick      time.Duration
	heartbeat time.Duration
	admin     string
	cut       string
	cutAfter  time.Duration
	cutFor    time.Duration
	report    time.Duration
	level     string
}

func parseFlags() options {
	var o options
	flag.DurationVar(&o.duration, "duration", 30*time.Second, "how long to run (0 runs until interrupted)")
	flag.DurationVar(&o.tick, "tick", node.DefaultTickInterval, "control loop tick")
	flag.DurationVar(&o.heartbeat, "heartbeat", 1500*time.Millisecond, "subordinate heartbeat interval")
	flag.StringVar(&o.admin, "admin", "", "serve the pack admin API on this address")
	flag.StringVar(&o.cut, "cut", "", "peer wire to sever: wand|attenuator|belt")
	flag.DurationVar(&o.cutAfter, "cut-after", 5*time.Second, "when to sever -cut")
	flag.DurationVar(&o.cutFor, "cut-for", 5*time.Second, "how long -cut stays severed")
	flag.DurationVar(&o.report, "report", 2*time.Second, "status report interval")
	flag.StringVar(&o.level, "log-level", "info", "log level")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()
	logs.ConfigureRuntime()
	if err := logs.SetLevel(opts.level); err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}
	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		fatalf("%v", err)
	}
}

func run(ctx context.Context, opts options) error {
	fleet, err := node.NewFleet(node.FleetConfig{
		Session:      session.Config{HeartbeatInterval: opts.heartbeat},
		BootSequence: true,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range fleet.Nodes() {
		n := n
		g.Go(func() error { return n.Run(gctx, opts.tick) })
	}
	if opts.admin != "" {
		srv := server.New(fleet.Pack, server.Config{Addr: opts.admin})
		g.Go(func() error { return srv.Serve(gctx) })
	}
	g.Go(func() error { return script(gctx, fleet, opts) })
	g.Go(func() error { return report(gctx, fleet, opts.report) })
	return g.Wait()
}

// script drives a short demo once the fleet converges: a power change from
// the wand, a relayed config request from the attenuator, and an optional
// wire cut.
func script(ctx context.Context, f *node.Fleet, opts options) error {
	start := time.Now()
	for !f.Converged() {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
	logs.Infof("fleetsim converged after=%s", time.Since(start).Round(time.Millisecond))

	if err := f.Wand.Do(ctx, func() error {
		if !f.Wand.Apply(catalog.ActionPowerLevel, 3) {
			return errors.New("power level rejected")
		}
		return nil
	}); err != nil {
		return err
	}
	if err := f.Attenuator.Do(ctx, func() error {
		return f.Attenuator.RequestConfig(protocol.ConfigWand, node.LocalRequester)
	}); err != nil {
		return err
	}

	if opts.cut == "" {
		return nil
	}
	wire, ok := f.Wires[opts.cut]
	if !ok {
		return fmt.Errorf("unknown wire %q", opts.cut)
	}
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(opts.cutAfter):
	}
	logs.Warnf("fleetsim cut wire=%s for=%s", opts.cut, opts.cutFor)
	wire.Cut()
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(opts.cutFor):
	}
	wire.Restore()
	logs.Infof("fleetsim restored wire=%s", opts.cut)
	return nil
}

func report(ctx context.Context, f *node.Fleet, every time.Duration) error {
	if every <= 0 {
		return nil
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		for _, n := range f.Nodes() {
			st := n.Status()
			for _, l := range st.Links {
				logs.Infof("fleetsim node=%s link=%s state=%s present=%v rx=%d tx=%d power=%d pending=%d",
					st.Name, l.ID, l.State, l.PeerPresent, l.Received, l.Sent, st.State.Power, len(st.Pending))
			}
		}
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fleetsim: "+format+"\n", args...)
	os.Exit(1)
}

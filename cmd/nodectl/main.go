package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/danmuck/packlink/internal/config"
	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/server"
	"github.com/danmuck/packlink/internal/transport/serial"
)

func main() {
	path := flag.String("config", "cmd/nodectl/config.toml", "nodectl config path")
	ports := flag.Bool("ports", false, "list serial ports and exit")
	flag.Parse()

	logs.ConfigureRuntime()
	if *ports {
		list, err := serial.Ports()
		if err != nil {
			fatalf("list ports: %v", err)
		}
		for _, p := range list {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadServiceConfig(*path)
	if err != nil {
		fatalf("%v", err)
	}
	if err := logs.SetLevel(cfg.LogLevel); err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg serviceConfig) error {
	rt, err := config.Build(ctx, cfg.Node)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logs.Warnf("nodectl close node=%s err=%v", cfg.Node.Name, err)
		}
	}()
	tick, err := cfg.Node.TickDuration()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Node.Run(gctx, tick) })
	if cfg.Node.Admin.Enabled {
		srv := server.New(rt.Node, server.Config{
			Addr:        cfg.Node.Admin.Addr,
			CORSOrigins: cfg.Node.Admin.CorsOrigins,
			Token:       cfg.Node.Admin.Token,
			TokenFile:   cfg.Node.Admin.TokenFile,
		})
		g.Go(func() error { return srv.Serve(gctx) })
	}
	logs.Infof("nodectl running node=%s kind=%s links=%d admin=%v",
		cfg.Node.Name, cfg.Node.Kind, len(cfg.Node.Links), cfg.Node.Admin.Enabled)
	return g.Wait()
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "nodectl: "+format+"\n", args...)
	os.Exit(1)
}

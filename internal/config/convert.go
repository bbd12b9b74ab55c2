package config

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/danmuck/packlink/internal/link"
	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/node"
	"github.com/danmuck/packlink/internal/protocol/catalog"
	"github.com/danmuck/packlink/internal/store"
	"github.com/danmuck/packlink/internal/transport"
	"github.com/danmuck/packlink/internal/transport/natsbus"
	"github.com/danmuck/packlink/internal/transport/serial"
)

// Runtime holds a built node and the resources it owns.
type Runtime struct {
	Node    *node.Node
	closers []io.Closer
}

// Close releases transports and client connections in reverse order.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Build opens the configured store and transports and assembles the node.
// Persisted config is loaded before the node exists so a loopback link can
// synthesize its standalone state from it.
func Build(ctx context.Context, cfg NodeConfig) (*Runtime, error) {
	if err := ValidateNodeConfig(cfg); err != nil {
		return nil, err
	}
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	st, err := buildStore(ctx, cfg, rt)
	if err != nil {
		return fail(err)
	}

	var nc *nats.Conn
	specs := make([]node.LinkSpec, 0, len(cfg.Links))
	for _, lc := range cfg.Links {
		if lc.Transport == TransportNATS && nc == nil {
			nc, err = nats.Connect(cfg.NATS.URL, nats.Name("packlink-"+cfg.Name))
			if err != nil {
				return fail(fmt.Errorf("nats connect %s: %w", cfg.NATS.URL, err))
			}
			rt.closers = append(rt.closers, closerFunc(func() error { nc.Close(); return nil }))
		}
		spec, err := buildLink(cfg, lc, nc, rt)
		if err != nil {
			return fail(fmt.Errorf("link %s: %w", lc.ID, err))
		}
		specs = append(specs, spec)
	}

	sess, err := cfg.SessionConfig()
	if err != nil {
		return fail(err)
	}
	n, err := node.New(node.Options{
		Name:         cfg.Name,
		Kind:         cfg.Kind,
		Session:      sess,
		Store:        st,
		BootSequence: cfg.BootSequence,
		Links:        specs,
	})
	if err != nil {
		return fail(err)
	}
	rt.Node = n
	return rt, nil
}

func buildStore(ctx context.Context, cfg NodeConfig, rt *Runtime) (*store.Store, error) {
	owned, err := parseKinds(cfg.Owns)
	if err != nil {
		return nil, err
	}
	if len(cfg.Owns) == 0 {
		owned = node.OwnedKinds(cfg.Kind)
	}

	var p store.Persister
	switch cfg.Store.Kind {
	case StoreFile:
		p, err = store.NewFilePersister(cfg.Store.Dir)
	case StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr, DB: cfg.Store.RedisDB})
		rt.closers = append(rt.closers, client)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Store.RedisAddr, err)
		}
		p, err = store.NewRedisPersister(client, cfg.Store.RedisPrefix, cfg.Name)
	default:
		p = store.NewMemoryPersister()
	}
	if err != nil {
		return nil, err
	}
	st := store.New(owned, p)
	if err := st.Load(ctx); err != nil {
		return nil, err
	}
	logs.Infof("config.Build node=%s store=%s owned=%v", cfg.Name, p.Name(), owned)
	return st, nil
}

func buildLink(cfg NodeConfig, lc LinkConfig, nc *nats.Conn, rt *Runtime) (node.LinkSpec, error) {
	cat, err := catalog.Lookup(lc.Catalog)
	if err != nil {
		return node.LinkSpec{}, err
	}
	role, err := link.ParseRole(lc.Role)
	if err != nil {
		return node.LinkSpec{}, err
	}
	owns, err := parseKinds(lc.Owns)
	if err != nil {
		return node.LinkSpec{}, err
	}

	var tr transport.Transport
	switch lc.Transport {
	case TransportSerial:
		s, err := serial.Open(serial.Config{Port: lc.Port, BaudRate: lc.Baud, Buffer: lc.Buffer})
		if err != nil {
			return node.LinkSpec{}, err
		}
		rt.closers = append(rt.closers, s)
		tr = s
	case TransportNATS:
		b, err := natsbus.Attach(nc, natsbus.Config{
			Prefix:        cfg.NATS.Prefix,
			Link:          cat.Name,
			Authoritative: role == link.RoleAuthoritative,
			Buffer:        lc.Buffer,
		})
		if err != nil {
			return node.LinkSpec{}, err
		}
		rt.closers = append(rt.closers, b)
		tr = b
	default:
		tr = transport.NewLoopback(lc.Buffer)
	}
	return node.LinkSpec{
		ID:        link.LinkID(lc.ID),
		Role:      role,
		Catalog:   cat,
		Transport: tr,
		Owns:      owns,
	}, nil
}

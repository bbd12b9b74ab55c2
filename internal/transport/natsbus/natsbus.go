// Package natsbus carries a link over a pair of NATS subjects, for bench
// rigs and simulations where the two ends run on different hosts.
//
// Subjects: <prefix>.<link>.auth (authoritative -> subordinate) and
// <prefix>.<link>.sub (subordinate -> authoritative). Message data is the
// type tag followed by the payload.
package natsbus

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/transport"
)

const DefaultPrefix = "packlink.link"

// Config names one end of a bus link.
type Config struct {
	Prefix        string
	Link          string
	Authoritative bool
	Buffer        int
}

// Bus is one end of a link over NATS.
type Bus struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	msgs    chan *nats.Msg
	txSubj  string
	rxSubj  string
	closed  atomic.Bool
	invalid atomic.Uint64
}

// Subjects returns the tx and rx subjects for cfg.
func Subjects(cfg Config) (tx string, rx string) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	auth := fmt.Sprintf("%s.%s.auth", prefix, cfg.Link)
	sub := fmt.Sprintf("%s.%s.sub", prefix, cfg.Link)
	if cfg.Authoritative {
		return auth, sub
	}
	return sub, auth
}

// Attach subscribes on nc. The connection stays owned by the caller.
func Attach(nc *nats.Conn, cfg Config) (*Bus, error) {
	if nc == nil {
		return nil, errors.New("natsbus: nil connection")
	}
	if cfg.Link == "" {
		return nil, errors.New("natsbus: link name is required")
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = transport.DefaultBuffer
	}
	tx, rx := Subjects(cfg)
	b := &Bus{
		nc:     nc,
		msgs:   make(chan *nats.Msg, buffer),
		txSubj: tx,
		rxSubj: rx,
	}
	sub, err := nc.ChanSubscribe(rx, b.msgs)
	if err != nil {
		return nil, fmt.Errorf("natsbus: subscribe %s: %w", rx, err)
	}
	// a slow control loop drops, never blocks the NATS reader
	if err := sub.SetPendingLimits(buffer, buffer*64); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("natsbus: pending limits: %w", err)
	}
	b.sub = sub
	logs.Infof("natsbus.Attach link=%s tx=%s rx=%s", cfg.Link, tx, rx)
	return b, nil
}

func (b *Bus) Send(tag uint8, payload []byte) error {
	if b.closed.Load() {
		return transport.ErrClosed
	}
	data := make([]byte, 0, len(payload)+1)
	data = append(data, tag)
	data = append(data, payload...)
	return b.nc.Publish(b.txSubj, data)
}

func (b *Bus) Poll() (protocol.Datagram, bool) {
	for {
		select {
		case msg := <-b.msgs:
			if len(msg.Data) == 0 {
				b.invalid.Add(1)
				continue
			}
			payload := make([]byte, len(msg.Data)-1)
			copy(payload, msg.Data[1:])
			return protocol.Datagram{Tag: msg.Data[0], Payload: payload}, true
		default:
			return protocol.Datagram{}, false
		}
	}
}

// Invalid counts empty messages discarded by Poll.
func (b *Bus) Invalid() uint64 { return b.invalid.Load() }

func (b *Bus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.sub.Unsubscribe()
}

package node

import (
	"context"
	"time"

	logs "github.com/danmuck/packlink/internal/logging"
)

// DefaultTickInterval drives Run when no interval is given.
const DefaultTickInterval = 5 * time.Millisecond

// Tick runs submitted closures, then every link in declaration order, then
// publishes a fresh status copy.
func (n *Node) Tick(now time.Time) {
	n.drain()
	for _, l := range n.links {
		l.Tick(now)
	}
	n.publish(now)
}

func (n *Node) drain() {
	for {
		select {
		case fn := <-n.submit:
			fn()
		default:
			return
		}
	}
}

// Run drives Tick from a ticker until ctx is done.
func (n *Node) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	logs.Infof("node.Node.Run node=%s interval=%s", n.name, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	n.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			logs.Infof("node.Node.Run stop node=%s", n.name)
			return nil
		case now := <-ticker.C:
			n.Tick(now)
		}
	}
}

// Submit queues fn to run on the loop goroutine at the next tick.
func (n *Node) Submit(fn func()) error {
	select {
	case n.submit <- fn:
		return nil
	default:
		return ErrBusy
	}
}

// Do runs fn on the loop goroutine and waits for its result.
func (n *Node) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := n.Submit(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

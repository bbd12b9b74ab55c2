package transport

import (
	"sync/atomic"

	"github.com/danmuck/packlink/internal/protocol"
)

// Endpoint is one side of an in-memory Pipe.
type Endpoint struct {
	name   string
	inbox  chan protocol.Datagram
	peer   *Endpoint
	cut    *atomic.Bool
	closed atomic.Bool
}

// NewPipe returns two connected endpoints. A full inbox drops the datagram
// and reports ErrBufferFull to the sender, like an overrun UART.
func NewPipe(name string, buffer int) (*Endpoint, *Endpoint) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	cut := &atomic.Bool{}
	a := &Endpoint{name: name + ".a", inbox: make(chan protocol.Datagram, buffer), cut: cut}
	b := &Endpoint{name: name + ".b", inbox: make(chan protocol.Datagram, buffer), cut: cut}
	a.peer = b
	b.peer = a
	return a, b
}

func (e *Endpoint) Name() string { return e.name }

func (e *Endpoint) Send(tag uint8, payload []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.cut.Load() || e.peer.closed.Load() {
		// a severed wire swallows bytes silently
		return nil
	}
	select {
	case e.peer.inbox <- protocol.Datagram{Tag: tag, Payload: clonePayload(payload)}:
		return nil
	default:
		return ErrBufferFull
	}
}

func (e *Endpoint) Poll() (protocol.Datagram, bool) {
	select {
	case d := <-e.inbox:
		return d, true
	default:
		return protocol.Datagram{}, false
	}
}

// Cut severs both directions until Restore. Datagrams already queued stay
// queued.
func (e *Endpoint) Cut() { e.cut.Store(true) }

func (e *Endpoint) Restore() { e.cut.Store(false) }

func (e *Endpoint) Close() error {
	e.closed.Store(true)
	return nil
}

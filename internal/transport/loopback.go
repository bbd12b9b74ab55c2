package transport

import (
	"github.com/danmuck/packlink/internal/protocol"
)

// Loopback models a wire with no device on the far end but TX jumpered to
// RX: every sent datagram comes straight back.
type Loopback struct {
	inbox chan protocol.Datagram
}

func NewLoopback(buffer int) *Loopback {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Loopback{inbox: make(chan protocol.Datagram, buffer)}
}

func (l *Loopback) Send(tag uint8, payload []byte) error {
	select {
	case l.inbox <- protocol.Datagram{Tag: tag, Payload: clonePayload(payload)}:
		return nil
	default:
		return ErrBufferFull
	}
}

func (l *Loopback) Poll() (protocol.Datagram, bool) {
	select {
	case d := <-l.inbox:
		return d, true
	default:
		return protocol.Datagram{}, false
	}
}

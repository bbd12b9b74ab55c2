// Package transport adapts byte links to the datagram contract the links
// consume.
//
// Implementations deliver whole datagrams (tag + payload) but promise no
// delivery, ordering across restarts or deduplication. Poll never blocks:
// any reading happens on the implementation's own goroutine.
package transport

import (
	"errors"

	"github.com/danmuck/packlink/internal/protocol"
)

var (
	ErrClosed     = errors.New("transport: closed")
	ErrBufferFull = errors.New("transport: buffer full")
)

// Transport is the framed datagram link under one Link.
type Transport interface {
	Send(tag uint8, payload []byte) error
	Poll() (protocol.Datagram, bool)
}

// DefaultBuffer is the inbound queue depth used when a constructor gets 0.
const DefaultBuffer = 64

func clonePayload(p []byte) []byte {
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

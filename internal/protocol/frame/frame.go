// Package frame implements the serial byte-stream framing under the codec:
// delimiter-bounded, byte-stuffed, XOR-checked frames that resynchronize on
// the next delimiter after any corruption.
//
// Wire: 0x7E | stuff(tag | len | payload | xor) | 0x7E
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/packlink/internal/protocol"
)

const (
	Delimiter byte = 0x7E
	Escape    byte = 0x7D

	escapedDelimiter byte = 0x02
	escapedEscape    byte = 0x01

	// tag + len + checksum
	overhead = 3
)

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrShortFrame      = errors.New("frame: short frame")
	ErrLengthMismatch  = errors.New("frame: length mismatch")
	ErrChecksum        = errors.New("frame: checksum mismatch")
	ErrBadEscape       = errors.New("frame: bad escape sequence")
	ErrBufferOverflow  = errors.New("frame: pending buffer overflow")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes int
	MaxPendingBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 64,
		MaxPendingBytes: 4 * 1024,
	}
}

// Encode returns the stuffed wire bytes for d.
func Encode(d protocol.Datagram, limits Limits) ([]byte, error) {
	if len(d.Payload) > limits.MaxPayloadBytes || len(d.Payload) > 0xFF {
		return nil, fmt.Errorf("%w: %d", ErrPayloadTooLarge, len(d.Payload))
	}
	raw := make([]byte, 0, len(d.Payload)+overhead)
	raw = append(raw, d.Tag, byte(len(d.Payload)))
	raw = append(raw, d.Payload...)
	raw = append(raw, checksum(raw))

	out := make([]byte, 0, len(raw)*2+2)
	out = append(out, Delimiter)
	out = append(out, stuff(raw)...)
	out = append(out, Delimiter)
	return out, nil
}

// WriteFrame encodes d and writes it to w in one call.
func WriteFrame(w io.Writer, d protocol.Datagram, limits Limits) error {
	buf, err := Encode(d, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// decodeBody parses the unstuffed bytes between two delimiters.
func decodeBody(stuffed []byte, limits Limits) (protocol.Datagram, error) {
	raw, err := unstuff(stuffed)
	if err != nil {
		return protocol.Datagram{}, err
	}
	if len(raw) < overhead {
		return protocol.Datagram{}, ErrShortFrame
	}
	n := int(raw[1])
	if n > limits.MaxPayloadBytes {
		return protocol.Datagram{}, fmt.Errorf("%w: %d", ErrPayloadTooLarge, n)
	}
	if len(raw) != n+overhead {
		return protocol.Datagram{}, fmt.Errorf("%w: len=%d body=%d", ErrLengthMismatch, n, len(raw)-overhead)
	}
	if checksum(raw[:len(raw)-1]) != raw[len(raw)-1] {
		return protocol.Datagram{}, ErrChecksum
	}
	payload := make([]byte, n)
	copy(payload, raw[2:2+n])
	return protocol.Datagram{Tag: raw[0], Payload: payload}, nil
}

func checksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum
}

func stuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		switch b {
		case Delimiter:
			out = append(out, Escape, escapedDelimiter)
		case Escape:
			out = append(out, Escape, escapedEscape)
		default:
			out = append(out, b)
		}
	}
	return out
}

func unstuff(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != Escape {
			out = append(out, data[i])
			continue
		}
		if i+1 >= len(data) {
			return nil, ErrBadEscape
		}
		switch data[i+1] {
		case escapedDelimiter:
			out = append(out, Delimiter)
		case escapedEscape:
			out = append(out, Escape)
		default:
			return nil, ErrBadEscape
		}
		i++
	}
	return out, nil
}

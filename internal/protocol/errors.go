package protocol

import "errors"

var (
	ErrUnknownShape      = errors.New("protocol: unknown shape")
	ErrMalformedDatagram = errors.New("protocol: malformed datagram")
	ErrUnsupportedBody   = errors.New("protocol: unsupported body")
	ErrUnknownConfigKind = errors.New("protocol: unknown config kind")
)

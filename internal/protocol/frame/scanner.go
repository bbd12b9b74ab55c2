package frame

import (
	"bytes"

	"github.com/danmuck/packlink/internal/protocol"
)

// Scanner accumulates stream bytes and extracts complete frames.
// Not safe for concurrent use.
type Scanner struct {
	limits  Limits
	pending []byte
}

func NewScanner(limits Limits) *Scanner {
	return &Scanner{limits: limits}
}

// Feed appends stream bytes. When the pending buffer would exceed
// MaxPendingBytes everything before the last delimiter is discarded.
func (s *Scanner) Feed(p []byte) error {
	s.pending = append(s.pending, p...)
	if s.limits.MaxPendingBytes > 0 && len(s.pending) > s.limits.MaxPendingBytes {
		idx := bytes.LastIndexByte(s.pending, Delimiter)
		if idx < 0 {
			s.pending = s.pending[:0]
		} else {
			s.pending = append(s.pending[:0], s.pending[idx:]...)
		}
		return ErrBufferOverflow
	}
	return nil
}

// Next extracts one frame. ok is false when no complete frame is buffered.
// A corrupt frame returns its error and leaves the closing delimiter in place
// so the following frame can still be found.
func (s *Scanner) Next() (d protocol.Datagram, ok bool, err error) {
	for {
		start := bytes.IndexByte(s.pending, Delimiter)
		if start < 0 {
			s.pending = s.pending[:0]
			return protocol.Datagram{}, false, nil
		}
		if start > 0 {
			s.pending = s.pending[start:]
		}
		end := bytes.IndexByte(s.pending[1:], Delimiter)
		if end < 0 {
			return protocol.Datagram{}, false, nil
		}
		end++
		if end == 1 {
			// back-to-back delimiters: the second one opens the next frame
			s.pending = s.pending[1:]
			continue
		}
		body := s.pending[1:end]
		d, err := decodeBody(body, s.limits)
		if err != nil {
			s.pending = s.pending[end:]
			return protocol.Datagram{}, false, err
		}
		s.pending = s.pending[end+1:]
		return d, true, nil
	}
}

// Buffered reports how many bytes are waiting for a closing delimiter.
func (s *Scanner) Buffered() int {
	return len(s.pending)
}

package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestWriteFrameScannerRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := protocol.Datagram{Tag: 1, Payload: []byte{0xC0, 0x7E, 0x7D, 0x00, 0xC1}}
	var buf bytes.Buffer
	if err := WriteFrame(&buf, in, DefaultLimits()); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if bytes.Count(buf.Bytes(), []byte{Delimiter}) != 2 {
		t.Fatalf("payload delimiters must be stuffed: %x", buf.Bytes())
	}

	s := NewScanner(DefaultLimits())
	if err := s.Feed(buf.Bytes()); err != nil {
		t.Fatalf("feed: %v", err)
	}
	out, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	if !out.Equal(in) {
		t.Fatalf("round-trip mismatch got=%+v want=%+v", out, in)
	}
}

func TestScannerWaitsForPartialFrame(t *testing.T) {
	testlog.Start(t)
	wire, err := Encode(protocol.Datagram{Tag: 2, Payload: []byte{1, 2, 3}}, DefaultLimits())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := NewScanner(DefaultLimits())
	_ = s.Feed(wire[:3])
	if _, ok, err := s.Next(); ok || err != nil {
		t.Fatalf("expected no frame yet, ok=%v err=%v", ok, err)
	}
	_ = s.Feed(wire[3:])
	if _, ok, err := s.Next(); !ok || err != nil {
		t.Fatalf("expected frame after completion, ok=%v err=%v", ok, err)
	}
}

func TestScannerResyncsAfterCorruptFrame(t *testing.T) {
	testlog.Start(t)
	limits := DefaultLimits()
	bad, _ := Encode(protocol.Datagram{Tag: 1, Payload: []byte{9, 9, 9}}, limits)
	bad[3] ^= 0xFF
	good, _ := Encode(protocol.Datagram{Tag: 6, Payload: []byte{4, 5}}, limits)

	s := NewScanner(limits)
	_ = s.Feed([]byte{0x00, 0x11})
	_ = s.Feed(bad)
	_ = s.Feed(good)

	if _, ok, err := s.Next(); ok || !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected checksum error, ok=%v err=%v", ok, err)
	}
	out, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("expected resync to good frame, ok=%v err=%v", ok, err)
	}
	if out.Tag != 6 || !bytes.Equal(out.Payload, []byte{4, 5}) {
		t.Fatalf("unexpected frame: %+v", out)
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	testlog.Start(t)
	_, err := Encode(protocol.Datagram{Tag: 1, Payload: make([]byte, 65)}, DefaultLimits())
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestScannerOverflowKeepsTail(t *testing.T) {
	testlog.Start(t)
	s := NewScanner(Limits{MaxPayloadBytes: 64, MaxPendingBytes: 8})
	err := s.Feed(bytes.Repeat([]byte{0x55}, 16))
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if s.Buffered() != 0 {
		t.Fatalf("expected garbage dropped, buffered=%d", s.Buffered())
	}
}

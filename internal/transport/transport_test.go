package transport

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/packlink/internal/testutil/testlog"
)

func TestPipeDeliversCopies(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe("wand", 4)
	payload := []byte{0xC0, 1, 0, 0, 0xC1}
	if err := a.Send(1, payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	payload[1] = 9
	d, ok := b.Poll()
	if !ok {
		t.Fatalf("expected datagram")
	}
	if d.Tag != 1 || !bytes.Equal(d.Payload, []byte{0xC0, 1, 0, 0, 0xC1}) {
		t.Fatalf("unexpected datagram: %+v", d)
	}
	if _, ok := b.Poll(); ok {
		t.Fatalf("expected empty inbox")
	}
	if _, ok := a.Poll(); ok {
		t.Fatalf("sender must not see its own datagram")
	}
}

func TestPipeCutDropsSilently(t *testing.T) {
	testlog.Start(t)
	a, b := NewPipe("belt", 4)
	a.Cut()
	if err := b.Send(1, []byte{1}); err != nil {
		t.Fatalf("cut send should not error: %v", err)
	}
	if _, ok := a.Poll(); ok {
		t.Fatalf("cut wire delivered a datagram")
	}
	a.Restore()
	_ = b.Send(1, []byte{2})
	if _, ok := a.Poll(); !ok {
		t.Fatalf("restored wire did not deliver")
	}
}

func TestPipeBackpressure(t *testing.T) {
	testlog.Start(t)
	a, _ := NewPipe("attenuator", 1)
	if err := a.Send(1, nil); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := a.Send(1, nil); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
	_ = a.Close()
	if err := a.Send(1, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestLoopbackEchoes(t *testing.T) {
	testlog.Start(t)
	l := NewLoopback(2)
	_ = l.Send(7, []byte{1, 2})
	d, ok := l.Poll()
	if !ok || d.Tag != 7 || !bytes.Equal(d.Payload, []byte{1, 2}) {
		t.Fatalf("loopback got=%+v ok=%v", d, ok)
	}
}

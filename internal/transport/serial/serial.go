// Package serial runs a link over a UART using go.bug.st/serial and the
// frame package for byte-stream framing.
package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	bugserial "go.bug.st/serial"

	logs "github.com/danmuck/packlink/internal/logging"
	"github.com/danmuck/packlink/internal/protocol"
	"github.com/danmuck/packlink/internal/protocol/frame"
	"github.com/danmuck/packlink/internal/transport"
)

// Config selects and configures one serial device.
type Config struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
	Buffer      int
	Limits      frame.Limits
}

func (c Config) withDefaults() Config {
	if c.BaudRate <= 0 {
		c.BaudRate = 9600
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 50 * time.Millisecond
	}
	if c.Buffer <= 0 {
		c.Buffer = transport.DefaultBuffer
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		c.Limits = frame.DefaultLimits()
	}
	return c
}

// Stream adapts any byte stream to transport.Transport.
type Stream struct {
	name   string
	rw     io.ReadWriteCloser
	limits frame.Limits
	inbox  chan protocol.Datagram

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}

	corrupt atomic.Uint64
	dropped atomic.Uint64
}

// Open opens the configured port and starts its reader.
func Open(cfg Config) (*Stream, error) {
	cfg = cfg.withDefaults()
	if cfg.Port == "" {
		return nil, errors.New("serial: port is required")
	}
	port, err := bugserial.Open(cfg.Port, &bugserial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   bugserial.NoParity,
		StopBits: bugserial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial: read timeout %s: %w", cfg.Port, err)
	}
	logs.Infof("serial.Open port=%s baud=%d", cfg.Port, cfg.BaudRate)
	return NewStream(cfg.Port, port, cfg), nil
}

// Ports lists serial devices visible to the host.
func Ports() ([]string, error) {
	return bugserial.GetPortsList()
}

// NewStream wraps rw and starts the reader goroutine.
func NewStream(name string, rw io.ReadWriteCloser, cfg Config) *Stream {
	cfg = cfg.withDefaults()
	s := &Stream{
		name:   name,
		rw:     rw,
		limits: cfg.Limits,
		inbox:  make(chan protocol.Datagram, cfg.Buffer),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) Send(tag uint8, payload []byte) error {
	if s.closed.Load() {
		return transport.ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return frame.WriteFrame(s.rw, protocol.Datagram{Tag: tag, Payload: payload}, s.limits)
}

func (s *Stream) Poll() (protocol.Datagram, bool) {
	select {
	case d := <-s.inbox:
		return d, true
	default:
		return protocol.Datagram{}, false
	}
}

func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.rw.Close()
	<-s.done
	return err
}

// Corrupt counts frames dropped by the scanner.
func (s *Stream) Corrupt() uint64 { return s.corrupt.Load() }

// Dropped counts good frames lost to a full inbox.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }

func (s *Stream) readLoop() {
	defer close(s.done)
	scanner := frame.NewScanner(s.limits)
	buf := make([]byte, 256)
	for {
		n, err := s.rw.Read(buf)
		if n > 0 {
			if ferr := scanner.Feed(buf[:n]); ferr != nil {
				logs.Warnf("serial.Stream.readLoop port=%s err=%v", s.name, ferr)
			}
			s.drain(scanner)
		}
		if err != nil {
			if s.closed.Load() || errors.Is(err, io.EOF) {
				logs.Debugf("serial.Stream.readLoop stop port=%s", s.name)
				return
			}
			logs.Errf("serial.Stream.readLoop port=%s err=%v", s.name, err)
			return
		}
	}
}

func (s *Stream) drain(scanner *frame.Scanner) {
	for {
		d, ok, err := scanner.Next()
		if err != nil {
			s.corrupt.Add(1)
			logs.Debugf("serial.Stream.drain port=%s drop err=%v", s.name, err)
			continue
		}
		if !ok {
			return
		}
		select {
		case s.inbox <- d:
		default:
			s.dropped.Add(1)
		}
	}
}

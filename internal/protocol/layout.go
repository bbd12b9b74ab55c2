package protocol

import "fmt"

// layoutWriter appends fixed-width u8 fields in declaration order.
type layoutWriter struct {
	buf []byte
}

func newLayoutWriter(size int) *layoutWriter {
	return &layoutWriter{buf: make([]byte, 0, size)}
}

func (w *layoutWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *layoutWriter) flag(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *layoutWriter) bytes() []byte {
	return w.buf
}

// layoutReader consumes fixed-width u8 fields; the first error sticks.
type layoutReader struct {
	buf []byte
	off int
	err error
}

func newLayoutReader(b []byte) *layoutReader {
	return &layoutReader{buf: b}
}

func (r *layoutReader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.err = fmt.Errorf("%w: short read at offset %d", ErrMalformedDatagram, r.off)
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *layoutReader) flag() bool {
	off := r.off
	v := r.u8()
	switch v {
	case 0:
		return false
	case 1:
		return true
	default:
		if r.err == nil {
			r.err = fmt.Errorf("%w: invalid bool %d at offset %d", ErrMalformedDatagram, v, off)
		}
		return false
	}
}

func (r *layoutReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedDatagram, len(r.buf)-r.off)
	}
	return nil
}

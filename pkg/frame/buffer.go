package frame

import "encoding/binary"

// reader consumes a frame body. The first short read sets err and every
// later read returns zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// bytes returns a copy of the next n bytes.
func (r *reader) bytes(n int) []byte {
	b := r.take(n)
	if b == nil || n == 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// block reads a length byte and exactly that many bytes, which must end the frame.
func (r *reader) block() []byte {
	n := int(r.u8())
	if r.err == nil && n != r.remaining() {
		r.err = ErrLengthMismatch
		return nil
	}
	return r.bytes(n)
}

type writer struct {
	buf []byte
}

func newWriter(cmd Command, size int) *writer {
	w := &writer{buf: make([]byte, 0, HeaderSize+size)}
	w.buf = append(w.buf, Class, uint8(cmd))
	return w
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) u16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }

func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func flag(b bool, mask uint8) uint8 {
	if b {
		return mask
	}
	return 0
}

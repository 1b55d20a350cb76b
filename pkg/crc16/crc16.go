// Package crc16 implements CRC-16/AUG-CCITT, the checksum used by the
// user credential checksum reports.
//
// Parameters: polynomial 0x1021, initial value 0x1D0F, no reflection,
// no final XOR. The check value for "123456789" is 0xE5CC.
package crc16

// Size is the size of a checksum in bytes.
const Size = 2

const (
	poly = 0x1021
	// Init is the initial register value.
	Init uint16 = 0x1D0F
)

var table = makeTable()

func makeTable() *[256]uint16 {
	var t [256]uint16
	for i := range t {
		crc := uint16(i) << 8
		for range 8 {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// Update returns the result of adding the bytes in p to crc.
func Update(crc uint16, p []byte) uint16 {
	for _, b := range p {
		crc = crc16Byte(crc, b)
	}
	return crc
}

// Checksum returns the CRC-16/AUG-CCITT of data.
func Checksum(data []byte) uint16 {
	return Update(Init, data)
}

// Digest accumulates a checksum incrementally. The zero value is not ready
// for use; call New.
type Digest struct {
	crc uint16
	n   int
}

// New returns a Digest starting at Init.
func New() *Digest {
	return &Digest{crc: Init}
}

// Write adds p to the running checksum. It never returns an error.
func (d *Digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	d.n += len(p)
	return len(p), nil
}

// WriteByte adds a single byte.
func (d *Digest) WriteByte(b byte) error {
	d.crc = crc16Byte(d.crc, b)
	d.n++
	return nil
}

// WriteUint16 adds v big-endian.
func (d *Digest) WriteUint16(v uint16) {
	_ = d.WriteByte(byte(v >> 8))
	_ = d.WriteByte(byte(v))
}

// Sum16 returns the current checksum.
func (d *Digest) Sum16() uint16 { return d.crc }

// Len returns how many bytes were folded in.
func (d *Digest) Len() int { return d.n }

// Reset restarts the digest at Init.
func (d *Digest) Reset() {
	d.crc = Init
	d.n = 0
}

func crc16Byte(crc uint16, b byte) uint16 {
	return crc<<8 ^ table[byte(crc>>8)^b]
}

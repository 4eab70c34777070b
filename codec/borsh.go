package codec

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/iov-one/paychan/errors"
)

// Encoder serializes values using the Borsh layout.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns all data written so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

func (e *Encoder) WriteU8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) WriteU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

// WriteU128 writes a 128 bit unsigned integer given as its low and high 64
// bit halves.
func (e *Encoder) WriteU128(lo, hi uint64) {
	e.WriteU64(lo)
	e.WriteU64(hi)
}

// WriteString writes a u32 length prefix followed by the UTF-8 bytes.
func (e *Encoder) WriteString(s string) {
	e.WriteBytes([]byte(s))
}

// WriteBytes writes a u32 length prefixed byte vector.
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteU32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// WriteFixed writes a fixed size array. No length prefix is written.
func (e *Encoder) WriteFixed(b []byte) {
	e.buf = append(e.buf, b...)
}

// Decoder reads values serialized using the Borsh layout.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a decoder reading from given buffer.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Remaining returns the number of bytes not consumed yet.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, errors.ErrValidation.Newf("unexpected end of data: need %d bytes at offset %d, have %d", n, d.off, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) ReadU8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) ReadU64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadU128 returns the low and high 64 bit halves of a 128 bit integer.
func (d *Decoder) ReadU128() (lo, hi uint64, err error) {
	if lo, err = d.ReadU64(); err != nil {
		return 0, 0, err
	}
	if hi, err = d.ReadU64(); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadU32()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.ErrValidation.New("string is not valid UTF-8")
	}
	return string(b), nil
}

// ReadFixed reads exactly n bytes.
func (d *Decoder) ReadFixed(n int) ([]byte, error) {
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

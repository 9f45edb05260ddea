package p2p

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
)

// ErrProtocolDecode is returned for malformed or truncated protocol data.
var ErrProtocolDecode = errors.New("protocol decode error")

// Checksum256 is a sha256 sized value (chain id, block id, node id).
type Checksum256 [32]byte

// ParseChecksum256 decodes a 64 character hex string.
func ParseChecksum256(s string) (Checksum256, error) {
	var c Checksum256
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid checksum %q: %w", s, err)
	}
	if len(b) != len(c) {
		return c, fmt.Errorf("invalid checksum length %d", len(b))
	}
	copy(c[:], b)
	return c, nil
}

func (c Checksum256) String() string {
	return hex.EncodeToString(c[:])
}

// Encoder appends little-endian values.
type Encoder struct {
	buf []byte
}

func (e *Encoder) PutUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) PutUint16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) PutInt16(v int16) {
	e.PutUint16(uint16(v))
}

func (e *Encoder) PutUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) PutUint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) PutInt64(v int64) {
	e.PutUint64(uint64(v))
}

// PutVarUint32 writes a LEB128 length.
func (e *Encoder) PutVarUint32(v uint32) {
	e.buf = binary.AppendUvarint(e.buf, uint64(v))
}

func (e *Encoder) PutString(s string) {
	e.PutVarUint32(uint32(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *Encoder) PutChecksum256(c Checksum256) {
	e.buf = append(e.buf, c[:]...)
}

// PutZeros writes n zero bytes.
func (e *Encoder) PutZeros(n int) {
	e.buf = append(e.buf, make([]byte, n)...)
}

func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Decoder reads little-endian values from a payload.
type Decoder struct {
	data []byte
	pos  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) need(n int) error {
	if n < 0 || d.pos+n > len(d.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrProtocolDecode, n, d.pos, len(d.data)-d.pos)
	}
	return nil
}

func (d *Decoder) Uint8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.pos]
	d.pos++
	return v, nil
}

func (d *Decoder) Uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) VarUint32() (uint32, error) {
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: bad varuint32 at offset %d", ErrProtocolDecode, d.pos)
	}
	d.pos += n
	return uint32(v), nil
}

func (d *Decoder) ReadString() (string, error) {
	n, err := d.VarUint32()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.data[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *Decoder) Checksum256() (Checksum256, error) {
	var c Checksum256
	if err := d.need(len(c)); err != nil {
		return c, err
	}
	copy(c[:], d.data[d.pos:])
	d.pos += len(c)
	return c, nil
}

func (d *Decoder) Skip(n int) error {
	if err := d.need(n); err != nil {
		return err
	}
	d.pos += n
	return nil
}

package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// encoder accumulates the payload in memory so the total length and CRC can
// be written ahead of and behind it.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) byte(b byte) {
	e.buf.WriteByte(b)
}

func (e *encoder) uvarint(n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	k := binary.PutUvarint(tmp[:], n)
	e.buf.Write(tmp[:k])
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) blob(b []byte) {
	e.uvarint(uint64(len(b)))
	e.buf.Write(b)
}

func (e *encoder) raw(other *encoder) {
	e.buf.Write(other.buf.Bytes())
}

func (e *encoder) bytes() []byte {
	return e.buf.Bytes()
}

// decoder reads the payload with sticky error handling: after the first
// failure every accessor returns a zero value.
type decoder struct {
	r   *bytes.Reader
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) byte() byte {
	if d.err != nil {
		return 0
	}
	b, err := d.r.ReadByte()
	if err != nil {
		d.err = err
		return 0
	}
	return b
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	n, err := binary.ReadUvarint(d.r)
	if err != nil {
		d.err = err
		return 0
	}
	return n
}

func (d *decoder) str() string {
	n := d.uvarint()
	if d.err != nil {
		return ""
	}
	if n > uint64(d.r.Len()) {
		d.fail("string length %d exceeds remaining payload", n)
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		return ""
	}
	return string(b)
}

func (d *decoder) blob() []byte {
	n := d.uvarint()
	if d.err != nil {
		return nil
	}
	if n > uint64(d.r.Len()) {
		d.fail("blob length %d exceeds remaining payload", n)
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = err
		return nil
	}
	return b
}

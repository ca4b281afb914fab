package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a read would cross the reader's end.
var ErrShortBuffer = errors.New("not enough data")

// Reader is a bounded little-endian cursor over a packet buffer.
// Positions are absolute offsets into the underlying buffer, so fields
// read through a sub-range still report where they live in the message.
// A failed read never advances the cursor.
type Reader struct {
	data []byte
	pos  int
	end  int
}

// NewReader creates a reader over all of data.
func NewReader(data []byte) *Reader {
	return &Reader{
		data: data,
		pos:  0,
		end:  len(data),
	}
}

// NewBoundedReader creates a reader over data[pos:end].
// Bounds outside the buffer are clamped.
func NewBoundedReader(data []byte, pos, end int) *Reader {
	end = min(max(end, 0), len(data))
	pos = min(max(pos, 0), end)
	return &Reader{
		data: data,
		pos:  pos,
		end:  end,
	}
}

func (r *Reader) need(op string, n int) error {
	if n < 0 {
		return fmt.Errorf("%s: negative count %d", op, n)
	}
	if r.pos+n > r.end {
		return fmt.Errorf("%s: %w (pos=%d, need=%d, end=%d)", op, ErrShortBuffer, r.pos, n, r.end)
	}
	return nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.need("ReadU8", 1); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadU16 reads a uint16 (2 bytes, LE).
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.need("ReadU16", 2); err != nil {
		return 0, err
	}
	val := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return val, nil
}

// ReadU32 reads a uint32 (4 bytes, LE).
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.need("ReadU32", 4); err != nil {
		return 0, err
	}
	val := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return val, nil
}

// ReadU32BE reads a big-endian uint32. Only the client file versions use it.
func (r *Reader) ReadU32BE() (uint32, error) {
	if err := r.need("ReadU32BE", 4); err != nil {
		return 0, err
	}
	val := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return val, nil
}

// ReadBytes reads n bytes (zero-copy, the slice aliases the buffer).
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need("ReadBytes", n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString reads a string prefixed with its uint16 length.
// It returns the raw bytes; decoding is up to the caller.
func (r *Reader) ReadString() ([]byte, error) {
	if err := r.need("ReadString", 2); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(r.data[r.pos:]))
	if err := r.need("ReadString", 2+n); err != nil {
		return nil, err
	}
	s := r.data[r.pos+2 : r.pos+2+n]
	r.pos += 2 + n
	return s, nil
}

// PeekU8 returns the next byte without advancing.
func (r *Reader) PeekU8() (uint8, error) {
	if err := r.need("PeekU8", 1); err != nil {
		return 0, err
	}
	return r.data[r.pos], nil
}

// PeekU16 returns the next uint16 without advancing.
func (r *Reader) PeekU16() (uint16, error) {
	if err := r.need("PeekU16", 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(r.data[r.pos:]), nil
}

// Rest consumes and returns everything up to the end.
func (r *Reader) Rest() []byte {
	b := r.data[r.pos:r.end]
	r.pos = r.end
	return b
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.end - r.pos
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// End returns the exclusive upper bound of the reader.
func (r *Reader) End() int {
	return r.end
}

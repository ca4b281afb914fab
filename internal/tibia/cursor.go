package tibia

import (
	"fmt"
	"net/netip"

	"github.com/udisondev/tibiago/internal/packet"
	"github.com/udisondev/tibiago/internal/protocol"
)

// cursor reads fields out of one buffer and records them on the result.
// After the first short read it stops reading; callers check err once.
type cursor struct {
	r   *packet.Reader
	res *Result
	src Source
	enc protocol.StringEncoding
	err error
}

func newCursor(res *Result, src Source, buf []byte, off, end int, enc protocol.StringEncoding) *cursor {
	return &cursor{
		r:   packet.NewBoundedReader(buf, off, end),
		res: res,
		src: src,
		enc: enc,
	}
}

func (c *cursor) ok() bool { return c.err == nil }

func (c *cursor) remaining() int { return c.r.Remaining() }

func (c *cursor) pos() int { return c.r.Position() }

func (c *cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *cursor) u8(name string) uint8 {
	if c.err != nil {
		return 0
	}
	off := c.pos()
	v, err := c.r.ReadU8()
	if err != nil {
		c.fail(err)
		return 0
	}
	c.res.add(name, c.src, off, 1, v)
	return v
}

func (c *cursor) flag(name string) bool {
	if c.err != nil {
		return false
	}
	off := c.pos()
	v, err := c.r.ReadU8()
	if err != nil {
		c.fail(err)
		return false
	}
	set := v&1 != 0
	c.res.add(name, c.src, off, 1, set)
	return set
}

func (c *cursor) u16(name string) uint16 {
	if c.err != nil {
		return 0
	}
	off := c.pos()
	v, err := c.r.ReadU16()
	if err != nil {
		c.fail(err)
		return 0
	}
	c.res.add(name, c.src, off, 2, v)
	return v
}

func (c *cursor) u32(name string) uint32 {
	if c.err != nil {
		return 0
	}
	off := c.pos()
	v, err := c.r.ReadU32()
	if err != nil {
		c.fail(err)
		return 0
	}
	c.res.add(name, c.src, off, 4, v)
	return v
}

func (c *cursor) u32be(name string) uint32 {
	if c.err != nil {
		return 0
	}
	off := c.pos()
	v, err := c.r.ReadU32BE()
	if err != nil {
		c.fail(err)
		return 0
	}
	c.res.add(name, c.src, off, 4, v)
	return v
}

// str reads a length-prefixed string. The field spans prefix and body.
func (c *cursor) str(name string) string {
	if c.err != nil {
		return ""
	}
	off := c.pos()
	b, err := c.r.ReadString()
	if err != nil {
		c.fail(err)
		return ""
	}
	s := c.enc.Decode(b)
	c.res.add(name, c.src, off, c.pos()-off, s)
	return s
}

// fixedStr reads a NUL-padded string of exactly n bytes.
func (c *cursor) fixedStr(name string, n int) string {
	off := c.pos()
	b := c.raw(n)
	if b == nil {
		return ""
	}
	for i, ch := range b {
		if ch == 0 {
			b = b[:i]
			break
		}
	}
	s := c.enc.Decode(b)
	c.res.add(name, c.src, off, n, s)
	return s
}

// bytes reads n bytes and records them as a hex value.
func (c *cursor) bytes(name string, n int) []byte {
	off := c.pos()
	b := c.raw(n)
	if b != nil {
		c.res.add(name, c.src, off, n, hexBytes(b))
	}
	return b
}

// ipv4 reads an address stored in network byte order.
func (c *cursor) ipv4(name string) netip.Addr {
	if c.err != nil {
		return netip.Addr{}
	}
	off := c.pos()
	b, err := c.r.ReadBytes(4)
	if err != nil {
		c.fail(err)
		return netip.Addr{}
	}
	addr := netip.AddrFrom4([4]byte(b))
	c.res.add(name, c.src, off, 4, addr)
	return addr
}

// opaque consumes everything left as one undecoded field.
func (c *cursor) opaque(name string) {
	if c.remaining() <= 0 {
		return
	}
	off := c.pos()
	b := c.r.Rest()
	c.res.add(name, c.src, off, len(b), fmt.Sprintf("%d bytes", len(b)))
}

func (c *cursor) raw(n int) []byte {
	if c.err != nil {
		return nil
	}
	b, err := c.r.ReadBytes(n)
	if err != nil {
		c.fail(err)
		return nil
	}
	return b
}

// finish reports a short read as malformed and keeps the rest undecoded.
func (c *cursor) finish() bool {
	if c.err == nil {
		return true
	}
	c.res.annotate(ErrMalformed, c.src, c.pos(), "Malformed packet: %v", c.err)
	c.opaque("Undecoded")
	return false
}

type hexBytes []byte

func (h hexBytes) String() string {
	return fmt.Sprintf("%x", []byte(h))
}

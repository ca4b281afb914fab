package testutil

import (
	"encoding/binary"
)

// Builder собирает тело Tibia-пакета. Все числа little-endian, кроме U32BE.
type Builder struct {
	buf []byte
}

// NewBuilder создаёт пустой Builder.
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 64)}
}

func (b *Builder) U8(v uint8) *Builder {
	b.buf = append(b.buf, v)
	return b
}

func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.U8(1)
	}
	return b.U8(0)
}

func (b *Builder) U16(v uint16) *Builder {
	b.buf = binary.LittleEndian.AppendUint16(b.buf, v)
	return b
}

func (b *Builder) U32(v uint32) *Builder {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) U32BE(v uint32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
	return b
}

// String пишет строку с uint16 префиксом длины.
func (b *Builder) String(s string) *Builder {
	b.U16(uint16(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Zeros дописывает n нулевых байт.
func (b *Builder) Zeros(n int) *Builder {
	b.buf = append(b.buf, make([]byte, n)...)
	return b
}

// Bytes возвращает собранные байты.
func (b *Builder) Bytes() []byte {
	return b.buf
}

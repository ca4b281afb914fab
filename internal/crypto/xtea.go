package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/xtea"

	"github.com/udisondev/tibiago/internal/constants"
)

// ErrNotBlockAligned is returned for payloads that are not a positive multiple of 8 bytes.
var ErrNotBlockAligned = errors.New("payload is not a multiple of the XTEA block size")

// XTEA wraps x/crypto/xtea for the Tibia game protocol.
// Tibia treats both the key and every block as little-endian 32-bit words
// while x/crypto reads big-endian words, so each word is byte-swapped on
// the way in and out. The round count is the standard 32 cycles.
type XTEA struct {
	cipher *xtea.Cipher
}

// NewXTEA creates a cipher from a 16-byte session key as seen on the wire.
func NewXTEA(key [constants.XTEAKeySize]byte) (*XTEA, error) {
	var be [constants.XTEAKeySize]byte
	swapWords(be[:], key[:])
	c, err := xtea.NewCipher(be[:])
	if err != nil {
		return nil, fmt.Errorf("creating xtea cipher: %w", err)
	}
	return &XTEA{cipher: c}, nil
}

// Decrypt decrypts data in-place in ECB mode.
func (x *XTEA) Decrypt(data []byte) error {
	if len(data) == 0 || len(data)%constants.XTEABlockSize != 0 {
		return fmt.Errorf("xtea decrypt: %w (size %d)", ErrNotBlockAligned, len(data))
	}
	var blk [constants.XTEABlockSize]byte
	for i := 0; i < len(data); i += constants.XTEABlockSize {
		swapWords(blk[:], data[i:i+constants.XTEABlockSize])
		x.cipher.Decrypt(blk[:], blk[:])
		swapWords(data[i:i+constants.XTEABlockSize], blk[:])
	}
	return nil
}

// Encrypt encrypts data in-place in ECB mode.
func (x *XTEA) Encrypt(data []byte) error {
	if len(data) == 0 || len(data)%constants.XTEABlockSize != 0 {
		return fmt.Errorf("xtea encrypt: %w (size %d)", ErrNotBlockAligned, len(data))
	}
	var blk [constants.XTEABlockSize]byte
	for i := 0; i < len(data); i += constants.XTEABlockSize {
		swapWords(blk[:], data[i:i+constants.XTEABlockSize])
		x.cipher.Encrypt(blk[:], blk[:])
		swapWords(data[i:i+constants.XTEABlockSize], blk[:])
	}
	return nil
}

// swapWords copies src to dst reversing the byte order of each 32-bit word.
func swapWords(dst, src []byte) {
	for i := 0; i+4 <= len(src); i += 4 {
		binary.BigEndian.PutUint32(dst[i:], binary.LittleEndian.Uint32(src[i:]))
	}
}

package crypto

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/udisondev/tibiago/internal/constants"
)

var (
	ErrNoKeyAvailable     = errors.New("no RSA private key available")
	ErrCiphertextTooShort = errors.New("RSA ciphertext too short")
	ErrDecryptFailed      = errors.New("RSA decryption failed")
	ErrInvalidPadding     = errors.New("RSA plaintext has no leading zero")
)

// LoginBlock is a decrypted 128-byte RSA login block.
// Byte 0 is always zero, bytes 1..16 carry the XTEA session key and the
// identity fields follow from byte 17 onward.
type LoginBlock [constants.RSABlockSize]byte

// XTEAKey returns the symmetric key carried at offset 1.
func (b *LoginBlock) XTEAKey() [constants.XTEAKeySize]byte {
	var key [constants.XTEAKeySize]byte
	copy(key[:], b[1:1+constants.XTEAKeySize])
	return key
}

// RSADecryptNoPadding decrypts a 128-byte block using RSA with no padding
// (RSA/ECB/NoPadding equivalent). The result is left-padded with zero bytes
// to 128 bytes, since m = c^d mod n drops leading zeroes.
func RSADecryptNoPadding(privateKey *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != constants.RSABlockSize {
		return nil, fmt.Errorf("RSA decrypt: expected %d bytes, got %d", constants.RSABlockSize, len(ciphertext))
	}

	c := new(big.Int).SetBytes(ciphertext)
	if c.Cmp(privateKey.N) >= 0 {
		return nil, fmt.Errorf("%w: ciphertext not smaller than modulus", ErrDecryptFailed)
	}
	m := new(big.Int).Exp(c, privateKey.D, privateKey.N)

	result := m.Bytes()
	if len(result) > constants.RSABlockSize {
		return nil, fmt.Errorf("%w: plaintext of %d bytes exceeds block size (modulus too large)", ErrDecryptFailed, len(result))
	}
	if len(result) < constants.RSABlockSize {
		padded := make([]byte, constants.RSABlockSize)
		copy(padded[constants.RSABlockSize-len(result):], result)
		result = padded
	}

	return result, nil
}

// RSAEncryptNoPadding is the inverse of RSADecryptNoPadding: c = m^e mod n,
// left-padded to 128 bytes. The analyzer never encrypts; tests and fixture
// generators use this to produce client login blocks.
func RSAEncryptNoPadding(publicKey *rsa.PublicKey, plaintext []byte) ([]byte, error) {
	if len(plaintext) != constants.RSABlockSize {
		return nil, fmt.Errorf("RSA encrypt: expected %d bytes, got %d", constants.RSABlockSize, len(plaintext))
	}
	m := new(big.Int).SetBytes(plaintext)
	if m.Cmp(publicKey.N) >= 0 {
		return nil, fmt.Errorf("RSA encrypt: plaintext not smaller than modulus")
	}
	c := new(big.Int).Exp(m, big.NewInt(int64(publicKey.E)), publicKey.N)

	out := make([]byte, constants.RSABlockSize)
	c.FillBytes(out)
	return out, nil
}

// DecryptLoginBlock decrypts the first RSA block of a login request.
// data must start at the RSA block; anything past 128 bytes is ignored.
func DecryptLoginBlock(privateKey *rsa.PrivateKey, data []byte) (*LoginBlock, error) {
	if privateKey == nil {
		return nil, ErrNoKeyAvailable
	}
	if len(data) < constants.RSABlockSize {
		return nil, fmt.Errorf("%w: %d bytes remaining, need %d", ErrCiphertextTooShort, len(data), constants.RSABlockSize)
	}

	plain, err := RSADecryptNoPadding(privateKey, data[:constants.RSABlockSize])
	if err != nil {
		return nil, err
	}

	var block LoginBlock
	copy(block[:], plain)
	if block[0] != 0x00 {
		return &block, fmt.Errorf("%w: first byte is 0x%02x", ErrInvalidPadding, block[0])
	}
	return &block, nil
}

package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/tibiago/internal/constants"
)

func loginPlaintext(t *testing.T, key [16]byte) []byte {
	t.Helper()
	plain := make([]byte, constants.RSABlockSize)
	copy(plain[1:], key[:])
	_, err := rand.Read(plain[17:])
	require.NoError(t, err)
	return plain
}

func TestDecryptLoginBlock_RoundTrip(t *testing.T) {
	priv := OTServKey()
	xteaKey := [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}

	plain := loginPlaintext(t, xteaKey)
	ct, err := RSAEncryptNoPadding(&priv.PublicKey, plain)
	require.NoError(t, err)

	block, err := DecryptLoginBlock(priv, ct)
	require.NoError(t, err)
	assert.Equal(t, xteaKey, block.XTEAKey())
	assert.Equal(t, plain, block[:])
}

func TestDecryptLoginBlock_LeadingZeroesRestored(t *testing.T) {
	priv := OTServKey()

	// Plaintext with many leading zero bytes: m.Bytes() comes back short.
	plain := make([]byte, constants.RSABlockSize)
	plain[constants.RSABlockSize-1] = 0x42
	ct, err := RSAEncryptNoPadding(&priv.PublicKey, plain)
	require.NoError(t, err)

	block, err := DecryptLoginBlock(priv, ct)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), block[constants.RSABlockSize-1])
	assert.Equal(t, [16]byte{}, block.XTEAKey())
}

func TestDecryptLoginBlock_ExtraBytesIgnored(t *testing.T) {
	priv := OTServKey()
	plain := loginPlaintext(t, [16]byte{0xAA})
	ct, err := RSAEncryptNoPadding(&priv.PublicKey, plain)
	require.NoError(t, err)

	block, err := DecryptLoginBlock(priv, append(ct, 0xde, 0xad))
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), block[1])
}

func TestDecryptLoginBlock_Errors(t *testing.T) {
	priv := OTServKey()

	t.Run("no key", func(t *testing.T) {
		_, err := DecryptLoginBlock(nil, make([]byte, constants.RSABlockSize))
		assert.ErrorIs(t, err, ErrNoKeyAvailable)
	})

	t.Run("ciphertext too short", func(t *testing.T) {
		_, err := DecryptLoginBlock(priv, make([]byte, 64))
		assert.ErrorIs(t, err, ErrCiphertextTooShort)
	})

	t.Run("invalid padding", func(t *testing.T) {
		plain := loginPlaintext(t, [16]byte{})
		plain[0] = 0x01
		ct, err := RSAEncryptNoPadding(&priv.PublicKey, plain)
		require.NoError(t, err)

		block, err := DecryptLoginBlock(priv, ct)
		assert.ErrorIs(t, err, ErrInvalidPadding)
		require.NotNil(t, block)
		assert.Equal(t, byte(0x01), block[0])
	})

	t.Run("ciphertext not below modulus", func(t *testing.T) {
		ct := make([]byte, constants.RSABlockSize)
		for i := range ct {
			ct[i] = 0xFF
		}
		_, err := DecryptLoginBlock(priv, ct)
		assert.ErrorIs(t, err, ErrDecryptFailed)
	})
}

func TestRSADecryptNoPadding_GeneratedKey(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	plain := make([]byte, constants.RSABlockSize)
	_, err = rand.Read(plain[1:])
	require.NoError(t, err)
	m := new(big.Int).SetBytes(plain)
	if m.Cmp(priv.N) >= 0 {
		plain[1] = 0
	}

	ct, err := RSAEncryptNoPadding(&priv.PublicKey, plain)
	require.NoError(t, err)

	got, err := RSADecryptNoPadding(priv, ct)
	require.NoError(t, err)
	require.Len(t, got, constants.RSABlockSize)
	assert.Equal(t, plain, got)
}

func TestRSADecryptNoPadding_WrongSize(t *testing.T) {
	_, err := RSADecryptNoPadding(OTServKey(), make([]byte, 127))
	assert.Error(t, err)
}

func TestOTServKey_Consistent(t *testing.T) {
	key := OTServKey()
	require.Len(t, key.Primes, 2)

	n := new(big.Int).Mul(key.Primes[0], key.Primes[1])
	assert.Equal(t, 0, n.Cmp(key.N), "N must equal p*q")
	assert.Equal(t, constants.RSABlockSize, (key.N.BitLen()+7)/8)
	assert.Same(t, key, OTServKey(), "key is built once")
}

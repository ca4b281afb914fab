package testutil

import (
	"crypto/rsa"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
)

// Envelope оборачивает body в конверт: uint16 длина и, если checksum,
// Adler-32 по всему, что идёт после контрольной суммы.
func Envelope(body []byte, checksum bool) []byte {
	size := len(body)
	if checksum {
		size += constants.PacketChecksumSize
	}
	out := make([]byte, constants.PacketHeaderSize, constants.PacketHeaderSize+size)
	binary.LittleEndian.PutUint16(out, uint16(size))
	if checksum {
		out = append(out, make([]byte, constants.PacketChecksumSize)...)
	}
	out = append(out, body...)
	if checksum {
		crypto.PutChecksum(out)
	}
	return out
}

// LoginBlock собирает открытый RSA-блок: 0x00, XTEA-ключ, затем fields,
// добитые нулями до 128 байт.
func LoginBlock(t testing.TB, key [constants.XTEAKeySize]byte, fields []byte) []byte {
	t.Helper()

	block := make([]byte, constants.RSABlockSize)
	copy(block[1:], key[:])
	require.LessOrEqual(t, 1+constants.XTEAKeySize+len(fields), constants.RSABlockSize, "login block overflow")
	copy(block[1+constants.XTEAKeySize:], fields)
	return block
}

// EncryptLoginBlock шифрует открытый блок публичным ключом без паддинга.
func EncryptLoginBlock(t testing.TB, pub *rsa.PublicKey, block []byte) []byte {
	t.Helper()

	ct, err := crypto.RSAEncryptNoPadding(pub, block)
	require.NoError(t, err)
	return ct
}

// GamePayload собирает зашифрованное тело игрового пакета: uint16 длина
// inner, сам inner, нули до кратности 8, затем XTEA.
func GamePayload(t testing.TB, key [constants.XTEAKeySize]byte, inner []byte) []byte {
	t.Helper()

	plain := make([]byte, constants.PayloadLengthSize, constants.PayloadLengthSize+len(inner)+constants.XTEABlockSize)
	binary.LittleEndian.PutUint16(plain, uint16(len(inner)))
	plain = append(plain, inner...)
	plain = PadToXTEABlock(plain)

	x, err := crypto.NewXTEA(key)
	require.NoError(t, err)
	require.NoError(t, x.Encrypt(plain))
	return plain
}

// PadToXTEABlock дополняет data нулями до ближайшего кратного 8.
func PadToXTEABlock(data []byte) []byte {
	remainder := len(data) % constants.XTEABlockSize
	if remainder == 0 {
		return data
	}
	return append(data, make([]byte, constants.XTEABlockSize-remainder)...)
}

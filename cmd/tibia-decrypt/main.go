// tibia-decrypt decrypts a single captured Tibia message for debugging.
//
// Usage:
//
//	go run ./cmd/tibia-decrypt -xtea 00112233445566778899aabbccddeeff -hex 1000...
//	go run ./cmd/tibia-decrypt -rsa keys/login.pem -hex 9500...
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/udisondev/tibiago/internal/constants"
	"github.com/udisondev/tibiago/internal/crypto"
)

func main() {
	xteaKey := flag.String("xtea", "", "XTEA key, 32 hex digits")
	rsaKey := flag.String("rsa", "", "RSA private key file (PEM or PKCS#12)")
	password := flag.String("password", "", "PKCS#12 password")
	offset := flag.Int("offset", -1, "offset of the RSA block (default: last 128 bytes)")
	msgHex := flag.String("hex", "", "whole message in hex, length prefix included")
	flag.Parse()

	msg, err := hex.DecodeString(strings.Join(strings.Fields(*msgHex), ""))
	if err != nil || len(msg) < constants.PacketHeaderSize {
		fmt.Fprintf(os.Stderr, "error: -hex must be a whole message\n")
		os.Exit(2)
	}

	switch {
	case *xteaKey != "":
		err = decryptGame(msg, *xteaKey)
	case *rsaKey != "":
		err = decryptLogin(msg, *rsaKey, *password, *offset)
	default:
		err = fmt.Errorf("one of -xtea or -rsa is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// payloadOffset пропускает длину и, если она совпала, контрольную сумму.
func payloadOffset(msg []byte) int {
	status, computed := crypto.VerifyChecksum(msg, false)
	fmt.Printf("Declared length: %d, actual: %d\n", binary.LittleEndian.Uint16(msg), len(msg)-constants.PacketHeaderSize)
	if status.Present() {
		fmt.Printf("Adler32 checksum: 0x%08x (good)\n", computed)
		return constants.PacketHeaderSize + constants.PacketChecksumSize
	}
	return constants.PacketHeaderSize
}

func decryptGame(msg []byte, keyHex string) error {
	key, err := crypto.ParseXTEAKey(keyHex)
	if err != nil {
		return err
	}
	x, err := crypto.NewXTEA(key)
	if err != nil {
		return err
	}

	payload := append([]byte(nil), msg[payloadOffset(msg):]...)
	if err := x.Decrypt(payload); err != nil {
		return err
	}
	fmt.Printf("Decrypted: %s\n", hex.EncodeToString(payload))

	if len(payload) >= constants.PayloadLengthSize {
		n := int(binary.LittleEndian.Uint16(payload))
		if n > len(payload)-constants.PayloadLengthSize {
			slog.Warn("payload length exceeds decrypted data", "length", n, "available", len(payload)-constants.PayloadLengthSize)
			return nil
		}
		body := payload[constants.PayloadLengthSize : constants.PayloadLengthSize+n]
		fmt.Printf("Payload (%d bytes): %s\n", n, hex.EncodeToString(body))
		if n > 0 {
			fmt.Printf("First command: 0x%02X\n", body[0])
		}
	}
	return nil
}

func decryptLogin(msg []byte, keyFile, password string, offset int) error {
	priv, err := crypto.LoadPrivateKey(keyFile, password)
	if err != nil {
		return err
	}

	if offset < 0 {
		offset = len(msg) - constants.RSABlockSize
	}
	if offset < payloadOffset(msg) || offset > len(msg) {
		return fmt.Errorf("offset %d outside message", offset)
	}

	block, err := crypto.DecryptLoginBlock(priv, msg[offset:])
	if block != nil {
		fmt.Printf("Decrypted block: %s\n", hex.EncodeToString(block[:]))
	}
	if err != nil {
		return err
	}

	key := block.XTEAKey()
	fmt.Printf("XTEA key: %s\n", hex.EncodeToString(key[:]))
	return nil
}

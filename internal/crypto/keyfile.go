package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/crypto/pkcs12"

	"github.com/udisondev/tibiago/internal/constants"
)

// LoadPrivateKey reads an RSA private key from path.
// A non-empty password selects PKCS#12, otherwise the file is PEM
// (PKCS#1 "RSA PRIVATE KEY" or PKCS#8 "PRIVATE KEY").
func LoadPrivateKey(path, password string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file %s: %w", path, err)
	}
	if password != "" {
		return ParsePKCS12(data, password)
	}
	return ParsePEM(data)
}

// ParsePKCS12 extracts the RSA private key from a PKCS#12 archive.
func ParsePKCS12(data []byte, password string) (*rsa.PrivateKey, error) {
	key, _, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decoding PKCS#12: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("PKCS#12 key is %T, not RSA", key)
	}
	return rsaKey, nil
}

// ParsePEM returns the first RSA private key found in PEM data.
func ParsePEM(data []byte) (*rsa.PrivateKey, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("no RSA private key in PEM data")
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing PKCS#1 key: %w", err)
			}
			return key, nil
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsing PKCS#8 key: %w", err)
			}
			rsaKey, ok := key.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("PKCS#8 key is %T, not RSA", key)
			}
			return rsaKey, nil
		}
	}
}

// ParseXTEAKey parses a 32 hex digit XTEA key. Punctuation between digits
// is ignored, so "00:11:22..." and "0011-2233..." are both accepted.
func ParseXTEAKey(s string) ([constants.XTEAKeySize]byte, error) {
	var key [constants.XTEAKeySize]byte

	digits := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if len(digits) != 2*constants.XTEAKeySize {
		return key, fmt.Errorf("XTEA keys are %d hex digits, got %d", 2*constants.XTEAKeySize, len(digits))
	}
	if _, err := hex.Decode(key[:], []byte(digits)); err != nil {
		return key, fmt.Errorf("parsing XTEA key: %w", err)
	}
	return key, nil
}

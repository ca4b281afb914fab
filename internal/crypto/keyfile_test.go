package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePEM(t *testing.T, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "key.pem")
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	key := OTServKey()
	path := writePEM(t, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(key))

	got, err := LoadPrivateKey(path, "")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.N))
	assert.Equal(t, 0, got.D.Cmp(key.D))
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	key := OTServKey()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	path := writePEM(t, "PRIVATE KEY", der)

	got, err := LoadPrivateKey(path, "")
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.N))
}

func TestLoadPrivateKey_NotRSA(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(ec)
	require.NoError(t, err)
	path := writePEM(t, "PRIVATE KEY", der)

	_, err = LoadPrivateKey(path, "")
	assert.Error(t, err)
}

func TestLoadPrivateKey_Errors(t *testing.T) {
	_, err := LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"), "")
	assert.Error(t, err)

	_, err = ParsePEM([]byte("not a pem file"))
	assert.Error(t, err)

	_, err = ParsePKCS12([]byte{0x30, 0x00}, "secret")
	assert.Error(t, err)
}

func TestParsePEM_SkipsOtherBlocks(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)

	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{0x01}})
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})...)

	got, err := ParsePEM(data)
	require.NoError(t, err)
	assert.Equal(t, 0, got.N.Cmp(key.N))
}

func TestParseXTEAKey(t *testing.T) {
	want := [16]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"plain", "00112233445566778899aabbccddeeff", false},
		{"upper", "00112233445566778899AABBCCDDEEFF", false},
		{"colons", "00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff", false},
		{"dashes", "0011-2233-4455-6677-8899-aabb-ccdd-eeff", false},
		{"too short", "0011223344", true},
		{"not hex", "zz112233445566778899aabbccddeeff", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseXTEAKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

package session

import (
	"crypto/rsa"
	"net/netip"
	"sync"

	"github.com/udisondev/tibiago/internal/constants"
)

// KeyStore provides key material configured outside the capture.
// Both lookups are pure; the analyzer never writes to a KeyStore.
type KeyStore interface {
	// PrivateKey returns the RSA key of the server at addr, or nil.
	PrivateKey(addr netip.AddrPort) *rsa.PrivateKey
	// InjectedKey returns an XTEA key supplied for the given frame, for
	// servers whose RSA key is unknown (key recovered from client memory).
	InjectedKey(frame uint32) ([constants.XTEAKeySize]byte, bool)
}

// StaticKeyStore is an in-memory KeyStore. Thread-safe.
type StaticKeyStore struct {
	mu       sync.RWMutex
	privKeys map[netip.AddrPort]*rsa.PrivateKey
	xteaKeys map[uint32][constants.XTEAKeySize]byte
}

// NewStaticKeyStore creates an empty key store.
func NewStaticKeyStore() *StaticKeyStore {
	return &StaticKeyStore{
		privKeys: make(map[netip.AddrPort]*rsa.PrivateKey),
		xteaKeys: make(map[uint32][constants.XTEAKeySize]byte),
	}
}

// AddPrivateKey binds an RSA key to a server endpoint, replacing any previous one.
func (ks *StaticKeyStore) AddPrivateKey(addr netip.AddrPort, key *rsa.PrivateKey) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.privKeys[addr] = key
}

// AddInjectedKey registers an XTEA key for the flow seen at frame.
func (ks *StaticKeyStore) AddInjectedKey(frame uint32, key [constants.XTEAKeySize]byte) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.xteaKeys[frame] = key
}

// PrivateKey implements KeyStore.
func (ks *StaticKeyStore) PrivateKey(addr netip.AddrPort) *rsa.PrivateKey {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.privKeys[addr]
}

// InjectedKey implements KeyStore.
func (ks *StaticKeyStore) InjectedKey(frame uint32) ([constants.XTEAKeySize]byte, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	key, ok := ks.xteaKeys[frame]
	return key, ok
}

// Len returns the number of RSA and XTEA keys held.
func (ks *StaticKeyStore) Len() (privKeys, xteaKeys int) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.privKeys), len(ks.xteaKeys)
}

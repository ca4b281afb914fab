package session

import (
	"crypto/rsa"
	"net/netip"
	"sync"
)

// ServerRegistry maps game server endpoints announced in character lists
// to the RSA key of the login server that announced them. Game servers
// share the login server's key, so a later capture of the game connection
// can be decrypted without configuring the game server separately.
// Thread-safe through sync.RWMutex.
type ServerRegistry struct {
	mu      sync.RWMutex
	servers map[netip.AddrPort]*rsa.PrivateKey
}

// NewServerRegistry creates an empty registry.
func NewServerRegistry() *ServerRegistry {
	return &ServerRegistry{
		servers: make(map[netip.AddrPort]*rsa.PrivateKey),
	}
}

// Register records key for addr. The first registration wins: returns
// false if addr is already known or key is nil.
func (r *ServerRegistry) Register(addr netip.AddrPort, key *rsa.PrivateKey) bool {
	if key == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.servers[addr]; exists {
		return false
	}
	r.servers[addr] = key
	return true
}

// Lookup returns the inherited key of addr.
func (r *ServerRegistry) Lookup(addr netip.AddrPort) (*rsa.PrivateKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.servers[addr]
	return key, ok
}

// Len returns the number of registered game servers.
func (r *ServerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}

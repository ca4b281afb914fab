package session

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerRegistry_FirstWriterWins(t *testing.T) {
	r := NewServerRegistry()
	first := testKey(t)
	second := testKey(t)

	assert.True(t, r.Register(gameServer, first))
	assert.False(t, r.Register(gameServer, second))

	got, ok := r.Lookup(gameServer)
	assert.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())
}

func TestServerRegistry_NilKeyIgnored(t *testing.T) {
	r := NewServerRegistry()
	assert.False(t, r.Register(gameServer, nil))

	_, ok := r.Lookup(gameServer)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestServerRegistry_Concurrent(t *testing.T) {
	r := NewServerRegistry()
	key := testKey(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Register(gameServer, key) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			r.Lookup(netip.MustParseAddrPort("10.0.0.9:7172"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, r.Len())
}

func TestStaticKeyStore(t *testing.T) {
	ks := NewStaticKeyStore()
	key := testKey(t)

	assert.Nil(t, ks.PrivateKey(loginServer))
	ks.AddPrivateKey(loginServer, key)
	assert.Same(t, key, ks.PrivateKey(loginServer))

	_, ok := ks.InjectedKey(3)
	assert.False(t, ok)
	ks.AddInjectedKey(3, [16]byte{7})
	got, ok := ks.InjectedKey(3)
	assert.True(t, ok)
	assert.Equal(t, byte(7), got[0])

	priv, xtea := ks.Len()
	assert.Equal(t, 1, priv)
	assert.Equal(t, 1, xtea)
}

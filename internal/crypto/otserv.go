package crypto

import (
	"crypto/rsa"
	"math/big"
	"sync"

	"github.com/udisondev/tibiago/internal/constants"
)

// The RSA key shipped with nearly every Open Tibia server distribution.
// Its public half is patched into custom clients, so it is not a secret.
const (
	otservN = "9b646903b45b07ac956568d87353bd7165139dd7940703b03e6dd079399661b4a837aa60561d7ccb9452fa0080594909882ab5bca58a1a1b35f8b1059b72b1212611c6152ad3dbb3cfbee7adc142a75d3d75971509c321c5c24a5bd51fd460f01b4e15beb0de1930528a5d3f15c1e3cbf5c401d6777e10acaab33dbe8d5b7ff5"
	otservD = "428bd3b5346daf71a761106f71a43102f8c857d6549c54660bb6378b52b0261399de8ce648bac410e2ea4e0a1ced1fac2756331220ca6db7ad7b5d440b7828865856e7aa6d8f45837feee9b4a3a0aa21322a1e2ab75b1825e786cf81a28a8a09a1e28519db64ff9baf311e850c2bfa1fb7b08a056cc337f7df443761aefe8d81"
	otservP = "91b37307abe12c05a1b78754746cda444177a784b035cbb96c945affdc022d21da4bd25a4eae259638153e9d73c97c89092096a459e5d16bcadd07fa9d504885"
	otservQ = "0111071b206bafb9c7a2287d7c8d17a42e32abee88dfe9520692b5439d9675817ff4f8c94a4abcd4b5f88e220f3a8658e39247a46c6983d85618fd891001a0acb1"
)

var otservKey = sync.OnceValue(func() *rsa.PrivateKey {
	key := &rsa.PrivateKey{
		PublicKey: rsa.PublicKey{
			N: mustHex(otservN),
			E: constants.RSAPublicExponent,
		},
		D:      mustHex(otservD),
		Primes: []*big.Int{mustHex(otservP), mustHex(otservQ)},
	}
	key.Precompute()
	return key
})

// OTServKey returns the well-known Open Tibia server RSA key.
// The returned key is shared and must not be modified.
func OTServKey() *rsa.PrivateKey {
	return otservKey()
}

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("crypto: bad hex constant")
	}
	return n
}

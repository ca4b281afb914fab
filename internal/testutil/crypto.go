package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
)

// Fixtures содержит предварительно сгенерированные тестовые данные
// для избежания дублирования в тестах.
var Fixtures = struct {
	XTEAKey [16]byte

	Account   string
	Password  string
	Character string
}{
	XTEAKey: [16]byte{
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10,
	},
	Account:   "testuser",
	Password:  "testpass",
	Character: "Rashid",
}

// RSA-1024 генерация дорогая, поэтому ключ общий на весь пакет тестов.
var loginKey = sync.OnceValue(mustKey)

// LoginServerKey возвращает общий тестовый RSA-1024 ключ.
func LoginServerKey() *rsa.PrivateKey {
	return loginKey()
}

func mustKey() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		panic("failed to generate RSA-1024 key: " + err.Error())
	}
	return k
}

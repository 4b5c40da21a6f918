package auth

import (
	"sync"
	"testing"

	"golang.org/x/crypto/argon2"
)

func argon2Key(password string, salt []byte, p argonParams) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

var (
	cheapHashes   = map[string]string{}
	cheapHashesMu sync.Mutex
)

// cheapHash returns a low-cost Argon2id hash of password, cached per test
// binary so table-driven tests stay fast.
func cheapHash(t *testing.T, password string) string {
	t.Helper()
	cheapHashesMu.Lock()
	defer cheapHashesMu.Unlock()

	if h, ok := cheapHashes[password]; ok {
		return h
	}
	p := argonParams{time: 1, memory: 8 * 1024, threads: 1, keyLen: 32, saltLen: 16}
	salt := []byte("0123456789abcdef")
	h := p.encode(salt, argon2Key(password, salt, p))
	cheapHashes[password] = h
	return h
}

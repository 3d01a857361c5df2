// Package auth turns plaintext login passwords into the opaque credential
// strings the rest of the system stores and compares. Credentials double as
// identity keys (message visibility scoping, the verified list), so hashing
// is deterministic within a deployment: the salt is derived from the
// configured pepper rather than drawn per hash.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const maxPasswordLength = 1024

type Hasher struct {
	iterations  uint32
	memory      uint32
	parallelism uint8
	keyLength   uint32
	salt        []byte
}

func NewHasher(iterations, memory uint32, parallelism uint8, keyLength uint32, pepper []byte) (*Hasher, error) {
	if len(pepper) < 16 {
		return nil, errors.New("pepper must be at least 16 bytes")
	}
	if iterations == 0 || iterations > 100 {
		return nil, errors.New("iterations must be between 1 and 100")
	}
	if memory < 8*1024 || memory > 2*1024*1024 {
		return nil, errors.New("memory must be between 8192 and 2097152 KiB")
	}
	if parallelism == 0 {
		return nil, errors.New("parallelism must be at least 1")
	}
	if keyLength < 16 {
		return nil, errors.New("key length must be at least 16 bytes")
	}
	salt := sha256.Sum256(pepper)
	return &Hasher{
		iterations:  iterations,
		memory:      memory,
		parallelism: parallelism,
		keyLength:   keyLength,
		salt:        salt[:],
	}, nil
}

// Hash derives the credential string for a password. Equal passwords always
// produce equal credentials under the same pepper.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if len(password) > maxPasswordLength {
		return "", errors.New("password too long")
	}
	key := argon2.IDKey([]byte(password), h.salt, h.iterations, h.memory, h.parallelism, h.keyLength)
	return base64.RawURLEncoding.EncodeToString(key), nil
}

// Verify reports whether password hashes to credential.
func (h *Hasher) Verify(password, credential string) (bool, error) {
	computed, err := h.Hash(password)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(credential)) == 1, nil
}

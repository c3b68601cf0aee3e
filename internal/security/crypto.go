// Package security handles the pairing side of replica-to-replica
// sync: deriving and storing the shared secret two replicas use to
// recognize each other, and minting/verifying the signed invites a
// new replica uses to join. The core engine (internal/crdt) has no
// values worth encrypting at rest — a generic JSON CRDT document has
// no master-key concept — so this package is deliberately narrow:
// pairing-secret handling only, not a vault.
package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = 32
	NonceSize = 24 // XChaCha20 nonce size
	SaltSize  = 16
)

var (
	ErrInvalidKey = errors.New("security: invalid key size")
	ErrDecrypt    = errors.New("security: decryption failed")
)

// Key is a 32-byte symmetric key.
type Key [KeySize]byte

// GenerateKey returns a new random key.
func GenerateKey() (Key, error) {
	var k Key
	if _, err := io.ReadFull(rand.Reader, k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// DeriveKey derives a key from a password and salt using Argon2id
// with OWASP-recommended parameters (3 passes, 64MB, 2 threads).
func DeriveKey(password, salt []byte) Key {
	var k Key
	dk := argon2.IDKey(password, salt, 3, 64*1024, 2, KeySize)
	copy(k[:], dk)
	return k
}

// Encrypt seals plaintext under key with XChaCha20-Poly1305, binding
// aad into the tag. The returned ciphertext is [nonce][sealed data].
func Encrypt(key Key, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("security: create AEAD: %w", err)
	}

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext produced by Encrypt, verifying aad.
func Decrypt(key Key, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrDecrypt
	}

	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("security: create AEAD: %w", err)
	}

	nonce := ciphertext[:NonceSize]
	sealed := ciphertext[NonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// GenerateSalt returns a new random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

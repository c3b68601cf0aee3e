package security

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

// SecretFileName is the name of the persisted pairing-secret file
// within a store's directory.
const SecretFileName = "pairing-secret.json"

// SecretStore manages the pairing secret two replicas derive a shared
// transport key from once paired. This secret protects nothing at rest
// by itself — it is a shared value both sides of a pairing confirm out
// of band (e.g. via a QR-code invite) before trusting each other's
// sync traffic.
type SecretStore interface {
	// Initialize generates a new random secret, encrypts it under
	// password, and persists it. Fails if already initialized.
	Initialize(password []byte) error

	// InitializeWithSecret persists an existing secret (e.g. one
	// recovered from a peer during pairing) instead of generating one.
	InitializeWithSecret(password []byte, secret Key) error

	// Unlock decrypts and returns the stored secret using password.
	Unlock(password []byte) (Key, error)

	// IsInitialized reports whether a secret file already exists.
	IsInitialized() bool
}

// FileSecretStore implements SecretStore on the local filesystem.
type FileSecretStore struct {
	dir string
	mu  sync.RWMutex
}

type secretFile struct {
	Salt       string       `json:"salt"`
	Ciphertext string       `json:"data"`
	Params     secretParams `json:"params"`
}

type secretParams struct {
	Memory      uint32 `json:"mem"`
	Iterations  uint32 `json:"time"`
	Parallelism uint8  `json:"threads"`
}

var defaultParams = secretParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 2}

// NewFileSecretStore returns a store backed by <dir>/pairing-secret.json.
func NewFileSecretStore(dir string) *FileSecretStore {
	return &FileSecretStore{dir: dir}
}

func (s *FileSecretStore) Initialize(password []byte) error {
	secret, err := GenerateKey()
	if err != nil {
		return err
	}
	return s.InitializeWithSecret(password, secret)
}

func (s *FileSecretStore) InitializeWithSecret(password []byte, secret Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized() {
		return fmt.Errorf("security: pairing secret already initialized")
	}

	salt, err := GenerateSalt()
	if err != nil {
		return err
	}

	dk := argon2.IDKey(password, salt, defaultParams.Iterations, defaultParams.Memory, defaultParams.Parallelism, KeySize)
	var wrapperKey Key
	copy(wrapperKey[:], dk)

	// Bind the encrypted blob to the store's directory name so a file
	// copied into a different replica's data dir fails to decrypt.
	aad := []byte(filepath.Base(s.dir))
	encrypted, err := Encrypt(wrapperKey, secret[:], aad)
	if err != nil {
		return err
	}

	sf := secretFile{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Ciphertext: base64.StdEncoding.EncodeToString(encrypted),
		Params:     defaultParams,
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, SecretFileName), data, 0600)
}

func (s *FileSecretStore) Unlock(password []byte) (Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var k Key

	data, err := os.ReadFile(filepath.Join(s.dir, SecretFileName))
	if err != nil {
		return k, err
	}

	var sf secretFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return k, err
	}

	salt, err := base64.StdEncoding.DecodeString(sf.Salt)
	if err != nil {
		return k, err
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sf.Ciphertext)
	if err != nil {
		return k, err
	}

	dk := argon2.IDKey(password, salt, sf.Params.Iterations, sf.Params.Memory, sf.Params.Parallelism, KeySize)
	var wrapperKey Key
	copy(wrapperKey[:], dk)

	aad := []byte(filepath.Base(s.dir))
	plaintext, err := Decrypt(wrapperKey, ciphertext, aad)
	if err != nil {
		return k, errors.New("security: incorrect password or corrupted secret file")
	}
	if len(plaintext) != KeySize {
		return k, errors.New("security: invalid secret size")
	}

	copy(k[:], plaintext)
	return k, nil
}

func (s *FileSecretStore) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isInitialized()
}

func (s *FileSecretStore) isInitialized() bool {
	_, err := os.Stat(filepath.Join(s.dir, SecretFileName))
	return err == nil
}

package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	KeySize   = 32 // secretbox key size
	NonceSize = 24 // secretbox nonce size
	Overhead  = secretbox.Overhead
)

var (
	ErrInvalidKey        = errors.New("invalid key size")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
)

// GenerateKey returns a fresh random master key
func GenerateKey() ([]byte, error) {
	return GenerateRandom(KeySize)
}

// DeriveKey expands a master key into a subkey bound to info.
// Different info strings yield independent keys.
func DeriveKey(master []byte, info string) ([]byte, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKey
	}

	r := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Sealer provides authenticated encryption with a fixed key
type Sealer struct {
	key [KeySize]byte
}

// NewSealer copies key into a new sealer
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// Seal encrypts plaintext and returns the nonce and the box separately
func (s *Sealer) Seal(plaintext []byte) (nonce, box []byte, err error) {
	var n [NonceSize]byte
	if _, err := rand.Read(n[:]); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	box = secretbox.Seal(nil, plaintext, &n, &s.key)
	return n[:], box, nil
}

// Open decrypts a box produced by Seal
func (s *Sealer) Open(nonce, box []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(box) < Overhead {
		return nil, ErrInvalidCiphertext
	}

	var n [NonceSize]byte
	copy(n[:], nonce)

	plaintext, ok := secretbox.Open(nil, box, &n, &s.key)
	if !ok {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Destroy clears the sealer's key from memory
func (s *Sealer) Destroy() {
	ClearBytes(s.key[:])
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	memguard.WipeBytes(b)
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

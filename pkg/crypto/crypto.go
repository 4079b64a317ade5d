// Package crypto provides the envelope primitives that protect credential
// secrets at rest.
//
// A key-encryption key (KEK) is derived from the master password with
// Argon2id. The KEK wraps a random data-encryption key (DEK), and a Sealer
// built from the DEK encrypts individual fields with AES-256-GCM. Sealed
// blobs carry their nonce as a prefix so a single column can hold them.
//
//	salt, _ := crypto.RandomBytes(crypto.SaltLength)
//	kek := crypto.DeriveKey([]byte("master"), salt, crypto.DefaultKDF)
//	dek, _ := crypto.RandomBytes(crypto.KeyLength)
//	wrapped, _ := crypto.Wrap(kek, dek)
//
//	s, _ := crypto.NewSealer(dek)
//	blob, _ := s.Seal([]byte("hunter2"))
//	plain, _ := s.Open(blob)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
)

const (
	// KeyLength is the length of KEKs and DEKs in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12

	// SaltLength is the length of KDF salts in bytes.
	SaltLength = 16
)

// Sentinel errors returned by crypto functions.
var (
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")
	ErrBlobTooShort     = errors.New("crypto: sealed blob too short")
)

// KDFParams are the Argon2id cost parameters. They are persisted next to the
// salt so a keyring can be reopened after defaults change.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDF follows the OWASP Argon2id recommendation (64 MiB, 3 passes, 4 lanes).
var DefaultKDF = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// DeriveKey derives a 256-bit key from password and salt with Argon2id.
func DeriveKey(password, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, KeyLength)
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: failed to read random bytes: %w", err)
	}
	return b, nil
}

// Sealer encrypts and decrypts field values under a single key.
// It is safe for concurrent use.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer returns a Sealer for a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce and returns nonce||ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce, err := RandomBytes(NonceLength)
	if err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal. Tampered or foreign blobs yield ErrDecryptionFailed.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if len(blob) < NonceLength+s.aead.Overhead() {
		return nil, ErrBlobTooShort
	}
	nonce, ciphertext := blob[:NonceLength], blob[NonceLength:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// SealString seals s. The empty string seals to nil so optional fields stay empty.
func (s *Sealer) SealString(v string) ([]byte, error) {
	if v == "" {
		return nil, nil
	}
	return s.Seal([]byte(v))
}

// OpenString reverses SealString.
func (s *Sealer) OpenString(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	b, err := s.Open(blob)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Wrap seals dek under kek.
func Wrap(kek, dek []byte) ([]byte, error) {
	s, err := NewSealer(kek)
	if err != nil {
		return nil, err
	}
	return s.Seal(dek)
}

// Unwrap opens a DEK sealed by Wrap. A wrong KEK yields ErrDecryptionFailed.
func Unwrap(kek, wrapped []byte) ([]byte, error) {
	s, err := NewSealer(kek)
	if err != nil {
		return nil, err
	}
	dek, err := s.Open(wrapped)
	if err != nil {
		return nil, err
	}
	if len(dek) != KeyLength {
		SecureWipe(dek)
		return nil, ErrInvalidKeyLength
	}
	return dek, nil
}

// SecureWipe zeroes b.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// keep b reachable so the writes are not optimized away
	runtime.KeepAlive(b)
}

// Package secrets encrypts provider API keys at rest.
//
// Keys are sealed with ChaCha20-Poly1305 under a single service-wide
// secret from configuration. The ciphertext stores the nonce as a
// prefix, so each sealed value is self-contained. A SHA-256 digest of
// the plaintext supports duplicate detection without decryption.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Box seals and opens provider API keys with a fixed symmetric key.
type Box struct {
	key []byte
}

// NewBox derives a sealing key from the configured secret. The secret
// may be any non-empty string; it is hashed to the 32 bytes the cipher
// requires.
func NewBox(secret string) (*Box, error) {
	if secret == "" {
		return nil, fmt.Errorf("secrets: empty secret")
	}
	sum := sha256.Sum256([]byte(secret))
	return &Box{key: sum[:]}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (b *Box) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secrets: init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("secrets: decode sealed value: %w", err)
	}

	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return "", fmt.Errorf("secrets: init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("secrets: sealed value too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("secrets: open sealed value: %w", err)
	}
	return string(plaintext), nil
}

// Hash returns the hex SHA-256 digest of a plaintext key, used to
// detect re-registration of the same key without storing it in clear.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Mask returns a display form of an API key showing only the first and
// last four characters.
func Mask(plaintext string) string {
	if len(plaintext) <= 8 {
		return "****"
	}
	return plaintext[:4] + "..." + plaintext[len(plaintext)-4:]
}

package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Cipher encrypts secrets at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(blob string) (string, error)
}

// SecretBox implements Cipher with XSalsa20-Poly1305.
// Output is base64(nonce || sealed box).
type SecretBox struct {
	key    [keySize]byte
	random io.Reader
}

var _ Cipher = (*SecretBox)(nil)

// NewSecretBox builds a cipher from a raw 32-byte key.
func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("secretbox key must be %d bytes, got %d", keySize, len(key))
	}
	box := &SecretBox{random: rand.Reader}
	copy(box.key[:], key)
	return box, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (b *SecretBox) Encrypt(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(b.random, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt.
func (b *SecretBox) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", &domain.DecryptionError{Reason: "malformed encoding"}
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", &domain.DecryptionError{Reason: "ciphertext too short"}
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", &domain.DecryptionError{Reason: "message authentication failed"}
	}
	return string(plain), nil
}

// Package privacy provides the content codec applied to message bodies at
// the persistence boundary: encrypt-at-rest plus a deterministic fingerprint
// that supports exact-match search without decryption.
package privacy

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// Codec encodes content for storage and decodes it on the way out.
type Codec interface {
	Encode(plaintext string) (string, error)
	Decode(stored string) (string, error)
}

// Fingerprint returns a stable hex digest of the plaintext, stored alongside
// the encoded content as an indexable search key.
func Fingerprint(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// PlainCodec stores content as-is. Used when no encryption key is configured.
type PlainCodec struct{}

func (PlainCodec) Encode(plaintext string) (string, error) { return plaintext, nil }
func (PlainCodec) Decode(stored string) (string, error)    { return stored, nil }

// AESCodec encrypts content with AES-256-GCM. Ciphertext is base64 with the
// nonce prepended.
type AESCodec struct {
	aead cipher.AEAD
}

// NewAESCodec creates an AESCodec from a 32-byte key.
func NewAESCodec(key []byte) (*AESCodec, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("content codec: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("content codec: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("content codec: create GCM: %w", err)
	}

	return &AESCodec{aead: aead}, nil
}

// NewAESCodecFromHex creates an AESCodec from a 64-char hex key string.
func NewAESCodecFromHex(hexKey string) (*AESCodec, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("content codec: decode hex key: %w", err)
	}
	return NewAESCodec(key)
}

func (c *AESCodec) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("content encode: generate nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, so the result is nonce + ciphertext.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *AESCodec) Decode(stored string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("content decode: base64: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("content decode: ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("content decode: %w", err)
	}
	return string(plaintext), nil
}

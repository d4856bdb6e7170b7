// SPDX-License-Identifier: Apache-2.0

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// gcmCipher is the private implementation of [Cipher] backed by AES-256-GCM.
type gcmCipher struct{}

// NewCipher constructs the production [Cipher].
func NewCipher() Cipher {
	return &gcmCipher{}
}

// Encrypt implements [Cipher]. A random 12-byte nonce is prepended to the
// ciphertext so that the decryption side can locate it:
// blob = nonce ‖ ciphertext. Returns an error if cipher creation or the
// random nonce read fails.
func (c *gcmCipher) Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// Prepend the nonce so Decrypt can split it out.
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)
	blob := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt implements [Cipher]. It Base64-decodes blob, splits out the nonce,
// and decrypts the remainder with key via AES-256-GCM. Returns an error if
// the blob is too short, the key is wrong, or the ciphertext is corrupted
// (authentication-tag mismatch).
func (c *gcmCipher) Decrypt(blob string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt data: %w", err)
	}

	return plaintext, nil
}

// GenerateKey implements [Cipher]. It reads 32 random bytes from the OS
// CSPRNG. Returns an error if the random read fails.
func (c *gcmCipher) GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveKey implements [Cipher] using HKDF-SHA256. The salt and info
// strings domain-separate derived keys so a descriptor key can never
// collide with any other key derived from the same blob key.
func (c *gcmCipher) DeriveKey(base []byte, salt, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, base, []byte(salt), []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// SPDX-License-Identifier: Apache-2.0

// Package crypto provides the symmetric-encryption primitives the keg layer
// consumes: authenticated encryption over byte buffers and key
// generation/derivation. All ciphertext produced here is self-contained
// (nonce ‖ ciphertext) and transported as a Base64 string.
package crypto

//go:generate mockgen -source=interfaces.go -destination=../mock/cipher_mock.go -package=mock

// Cipher is the authenticated symmetric cipher used for keg payloads and
// file descriptors. Implementations must fail decryption loudly on any
// tag mismatch; callers rely on that to detect corrupted or substituted
// ciphertext.
type Cipher interface {
	// Encrypt seals plaintext with key and returns a Base64 blob of
	// nonce ‖ ciphertext. key must be 32 bytes (AES-256).
	Encrypt(plaintext, key []byte) (string, error)

	// Decrypt reverses Encrypt. Returns an error if the blob is malformed,
	// the key is wrong, or the authentication tag does not verify.
	Decrypt(blob string, key []byte) ([]byte, error)

	// GenerateKey returns 32 fresh random bytes from the OS CSPRNG.
	GenerateKey() ([]byte, error)

	// DeriveKey derives a new 32-byte key from base using HKDF-SHA256 with
	// the given salt and info strings. Deterministic: the same inputs
	// always yield the same key, so independent clients derive identical
	// descriptor keys from the same blob key.
	DeriveKey(base []byte, salt, info string) ([]byte, error)
}

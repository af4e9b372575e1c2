package krypto

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the ChaCha20-Poly1305 nonce length (96 bits).
	NonceSize = chacha20poly1305.NonceSize
	// TagSize is the Poly1305 tag length appended to every ciphertext.
	TagSize = chacha20poly1305.Overhead
)

// ErrAuthentication is returned when the Poly1305 tag does not verify. A wrong
// password and a tampered ciphertext are indistinguishable.
var ErrAuthentication = errors.New("authentication failed")

// Seal encrypts plaintext with ChaCha20-Poly1305 and appends the tag.
func Seal(key []byte, nonce [NonceSize]byte, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// Open verifies and decrypts ciphertext||tag.
func Open(key []byte, nonce [NonceSize]byte, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(ciphertext) < TagSize {
		return nil, ErrAuthentication
	}

	plaintext, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

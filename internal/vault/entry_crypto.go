package vault

import (
	"fmt"
	"unicode/utf8"

	"github.com/arthurfary/passman/krypto"
)

// SealEntry encrypts plaintext under a key freshly derived from password and
// returns the complete entry file (header followed by ciphertext||tag).
//
// With bindHeader set the entry is written as VersionBound and the 47 header
// bytes are passed to the AEAD as associated data, so edits to the stored
// costs or salt fail authentication as well.
func SealEntry(password, plaintext []byte, costs krypto.Argon2Params, bindHeader bool) ([]byte, error) {
	key, params, nonce, err := krypto.DeriveNew(password, costs)
	if err != nil {
		return nil, fmt.Errorf("derive entry key: %w", err)
	}
	defer krypto.Wipe(key)

	hdr := Header{Version: VersionPlain, KDF: params, Nonce: nonce}
	if bindHeader {
		hdr.Version = VersionBound
	}
	head, err := hdr.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	var aad []byte
	if bindHeader {
		aad = head
	}
	ciphertext, err := krypto.Seal(key, nonce, plaintext, aad)
	if err != nil {
		return nil, fmt.Errorf("encrypt entry: %w", err)
	}

	out := make([]byte, 0, len(head)+len(ciphertext))
	out = append(out, head...)
	return append(out, ciphertext...), nil
}

// OpenEntry validates the header of data, re-derives the entry key from
// password and the persisted parameters, and decrypts the content.
func OpenEntry(password, data []byte) (string, error) {
	hdr, body, err := ParseHeader(data)
	if err != nil {
		return "", err
	}

	key, err := krypto.DeriveExisting(password, hdr.KDF)
	if err != nil {
		return "", fmt.Errorf("derive entry key: %w", err)
	}
	defer krypto.Wipe(key)

	var aad []byte
	if hdr.BindsHeader() {
		aad = data[:HeaderSize]
	}
	plaintext, err := krypto.Open(key, hdr.Nonce, body, aad)
	if err != nil {
		return "", fmt.Errorf("decrypt entry: %w", err)
	}
	defer krypto.Wipe(plaintext)

	if !utf8.Valid(plaintext) {
		return "", ErrEncoding
	}
	return string(plaintext), nil
}

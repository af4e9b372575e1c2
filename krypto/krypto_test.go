package krypto_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/arthurfary/passman/krypto"
)

var cheap = krypto.Argon2Params{MemoryKiB: 64, Time: 1, Parallelism: 1}

func TestDeriveExistingReproducesKey(t *testing.T) {
	pw := []byte("correct horse battery staple")

	key, params, _, err := krypto.DeriveNew(pw, cheap)
	if err != nil {
		t.Fatalf("DeriveNew returned error: %v", err)
	}
	if len(key) != krypto.KeySize {
		t.Fatalf("expected %d-byte key, got %d", krypto.KeySize, len(key))
	}
	if params.Version != krypto.Argon2Version {
		t.Fatalf("expected version %#x, got %#x", krypto.Argon2Version, params.Version)
	}

	again, err := krypto.DeriveExisting(pw, params)
	if err != nil {
		t.Fatalf("DeriveExisting returned error: %v", err)
	}
	if !bytes.Equal(key, again) {
		t.Fatal("re-derived key differs from original")
	}

	other, err := krypto.DeriveExisting([]byte("wrong"), params)
	if err != nil {
		t.Fatalf("DeriveExisting with wrong password returned error: %v", err)
	}
	if bytes.Equal(key, other) {
		t.Fatal("wrong password produced the same key")
	}
}

func TestDeriveNewDrawsFreshSaltAndNonce(t *testing.T) {
	pw := []byte("pw")

	_, p1, n1, err := krypto.DeriveNew(pw, cheap)
	if err != nil {
		t.Fatalf("DeriveNew returned error: %v", err)
	}
	_, p2, n2, err := krypto.DeriveNew(pw, cheap)
	if err != nil {
		t.Fatalf("DeriveNew returned error: %v", err)
	}
	if p1.Salt == p2.Salt {
		t.Fatal("salt reused across derivations")
	}
	if n1 == n2 {
		t.Fatal("nonce reused across derivations")
	}
}

func TestValidateArgon2Params(t *testing.T) {
	cases := []struct {
		name string
		p    krypto.Argon2Params
		ok   bool
	}{
		{"defaults", krypto.DefaultArgon2Params(), true},
		{"minimum", krypto.Argon2Params{MemoryKiB: 8, Time: 1, Parallelism: 1}, true},
		{"zero lanes", krypto.Argon2Params{MemoryKiB: 64, Time: 1, Parallelism: 0}, false},
		{"too many lanes", krypto.Argon2Params{MemoryKiB: 1 << 16, Time: 1, Parallelism: 256}, false},
		{"zero time", krypto.Argon2Params{MemoryKiB: 64, Time: 0, Parallelism: 1}, false},
		{"memory below lanes", krypto.Argon2Params{MemoryKiB: 15, Time: 1, Parallelism: 2}, false},
		{"memory too large", krypto.Argon2Params{MemoryKiB: krypto.MaxMemoryKiB + 1, Time: 1, Parallelism: 1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := krypto.ValidateArgon2Params(tc.p)
			if tc.ok && err != nil {
				t.Fatalf("expected valid params, got %v", err)
			}
			if !tc.ok && !errors.Is(err, krypto.ErrKDF) {
				t.Fatalf("expected ErrKDF, got %v", err)
			}
		})
	}
}

func TestDeriveNewRejectsBadCosts(t *testing.T) {
	_, _, _, err := krypto.DeriveNew([]byte("pw"), krypto.Argon2Params{MemoryKiB: 1, Time: 1, Parallelism: 1})
	if !errors.Is(err, krypto.ErrKDF) {
		t.Fatalf("expected ErrKDF, got %v", err)
	}
}

func TestDeriveExistingRejectsUnknownVersion(t *testing.T) {
	params := krypto.KDFParams{Version: 0x10, Argon2Params: cheap}
	if _, err := krypto.DeriveExisting([]byte("pw"), params); !errors.Is(err, krypto.ErrKDF) {
		t.Fatalf("expected ErrKDF, got %v", err)
	}
}

func TestSealOpen(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, krypto.KeySize)
	var nonce [krypto.NonceSize]byte
	nonce[0] = 1

	ct, err := krypto.Seal(key, nonce, []byte("hello"), []byte("hdr"))
	if err != nil {
		t.Fatalf("Seal returned error: %v", err)
	}
	if len(ct) != len("hello")+krypto.TagSize {
		t.Fatalf("unexpected ciphertext length %d", len(ct))
	}

	pt, err := krypto.Open(key, nonce, ct, []byte("hdr"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", pt)
	}

	if _, err := krypto.Open(key, nonce, ct, []byte("other")); !errors.Is(err, krypto.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for wrong aad, got %v", err)
	}

	ct[0] ^= 0x01
	if _, err := krypto.Open(key, nonce, ct, []byte("hdr")); !errors.Is(err, krypto.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for tampered ciphertext, got %v", err)
	}

	if _, err := krypto.Open(key, nonce, ct[:krypto.TagSize-1], nil); !errors.Is(err, krypto.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication for short ciphertext, got %v", err)
	}
}

package krypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize is the length of the per-entry Argon2id salt in bytes.
	SaltSize = 16
	// KeySize is the length of the derived ChaCha20-Poly1305 key in bytes.
	KeySize = 32
	// Argon2Version is the only Argon2 revision supported (0x13).
	Argon2Version = argon2.Version

	// MaxMemoryKiB bounds the memory cost read back from disk (4 GiB).
	MaxMemoryKiB = 4 * 1024 * 1024
	// MaxParallelism is the largest lane count argon2.IDKey accepts.
	MaxParallelism = 255
)

// ErrKDF reports cost parameters outside the Argon2id domain.
var ErrKDF = errors.New("invalid key derivation parameters")

// Argon2Params captures the tunable Argon2id costs.
type Argon2Params struct {
	MemoryKiB   uint32
	Time        uint32
	Parallelism uint32
}

// DefaultArgon2Params returns the production costs: 64 MiB, 10 passes, 2 lanes.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Time:        10,
		Parallelism: 2,
	}
}

// KDFParams is everything needed to re-derive an entry key.
type KDFParams struct {
	Salt    [SaltSize]byte
	Version uint32
	Argon2Params
}

// ValidateArgon2Params checks p against the Argon2id domain.
func ValidateArgon2Params(p Argon2Params) error {
	if p.Parallelism == 0 || p.Parallelism > MaxParallelism {
		return fmt.Errorf("%w: parallelism must be between 1 and %d, got %d", ErrKDF, MaxParallelism, p.Parallelism)
	}
	if p.Time == 0 {
		return fmt.Errorf("%w: time cost must be positive", ErrKDF)
	}
	if p.MemoryKiB < 8*p.Parallelism {
		return fmt.Errorf("%w: memory cost must be at least %d KiB for %d lanes, got %d", ErrKDF, 8*p.Parallelism, p.Parallelism, p.MemoryKiB)
	}
	if p.MemoryKiB > MaxMemoryKiB {
		return fmt.Errorf("%w: memory cost %d KiB exceeds %d KiB", ErrKDF, p.MemoryKiB, MaxMemoryKiB)
	}
	return nil
}

// DeriveNew draws a fresh salt and nonce and derives a key for a new entry.
func DeriveNew(password []byte, p Argon2Params) (key []byte, params KDFParams, nonce [NonceSize]byte, err error) {
	if err := ValidateArgon2Params(p); err != nil {
		return nil, params, nonce, err
	}

	salt, err := NewRandomSalt()
	if err != nil {
		return nil, params, nonce, err
	}
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, params, nonce, fmt.Errorf("generate nonce: %w", err)
	}

	params = KDFParams{
		Salt:         salt,
		Version:      Argon2Version,
		Argon2Params: p,
	}
	key, err = DeriveExisting(password, params)
	if err != nil {
		return nil, KDFParams{}, [NonceSize]byte{}, err
	}
	return key, params, nonce, nil
}

// DeriveExisting re-runs Argon2id with persisted parameters. A wrong password
// yields a different key without error; only decryption can tell.
func DeriveExisting(password []byte, params KDFParams) ([]byte, error) {
	if len(password) == 0 {
		return nil, errors.New("password is required")
	}
	if params.Version != Argon2Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %#x", ErrKDF, params.Version)
	}
	if err := ValidateArgon2Params(params.Argon2Params); err != nil {
		return nil, err
	}

	key := argon2.IDKey(password, params.Salt[:], params.Time, params.MemoryKiB, uint8(params.Parallelism), KeySize)
	if len(key) != KeySize {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return key, nil
}

// NewRandomSalt returns a cryptographically secure random salt.
func NewRandomSalt() ([SaltSize]byte, error) {
	var salt [SaltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return salt, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// Wipe zeroes b in place.
func Wipe(b []byte) {
	memguard.WipeBytes(b)
}

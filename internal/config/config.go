// Package config loads the passman settings file.
//
// Settings are resolved once per process, in increasing precedence: built-in
// defaults, the TOML file, the PASSMAN_DIR environment variable, and finally
// command-line flags applied by the caller. The resolved storage directory is
// handed to store.New; the store itself never looks at the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/arthurfary/passman/auth"
	"github.com/arthurfary/passman/krypto"
)

// EnvStorageDir overrides storage_dir when set.
const EnvStorageDir = "PASSMAN_DIR"

// HistoryFileName is the journal file created inside the storage directory
// when history_db is not set. The leading dot keeps it out of entry listings.
const HistoryFileName = ".history.db"

// Config is the on-disk settings layout.
type Config struct {
	StorageDir     string `toml:"storage_dir"`
	History        bool   `toml:"history"`
	HistoryDB      string `toml:"history_db,omitempty"`
	BindHeader     bool   `toml:"bind_header"`
	PasswordLength int    `toml:"password_length"`
	KDF            KDF    `toml:"kdf"`
}

// KDF holds the Argon2id costs used for new entries.
type KDF struct {
	MemoryKiB   uint32 `toml:"memory_kib"`
	Time        uint32 `toml:"time"`
	Parallelism uint32 `toml:"parallelism"`
}

// Default returns the built-in settings.
func Default() Config {
	p := krypto.DefaultArgon2Params()
	return Config{
		StorageDir:     DefaultStorageDir(),
		History:        true,
		BindHeader:     true,
		PasswordLength: auth.DefaultPasswordLength,
		KDF: KDF{
			MemoryKiB:   p.MemoryKiB,
			Time:        p.Time,
			Parallelism: p.Parallelism,
		},
	}
}

// DefaultStorageDir is ~/.passwords, or %USERPROFILE%\Passwords on Windows.
func DefaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(home, "Passwords")
	}
	return filepath.Join(home, ".passwords")
}

// DefaultPath is the settings file location under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(dir, "passman", "config.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		switch {
		case errors.Is(err, os.ErrNotExist):
			cfg = Default()
		case err != nil:
			return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
		default:
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				keys := make([]string, len(undecoded))
				for i, k := range undecoded {
					keys[i] = k.String()
				}
				return Config{}, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
			}
		}
	}

	if dir := os.Getenv(EnvStorageDir); dir != "" {
		cfg.StorageDir = dir
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML with owner-only permissions.
func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return file.Close()
}

// Validate checks every field that has a restricted domain.
func (c Config) Validate() error {
	if c.StorageDir == "" {
		return errors.New("storage_dir must not be empty")
	}
	if c.PasswordLength < auth.MinPasswordLength || c.PasswordLength > auth.MaxPasswordLength {
		return fmt.Errorf("password_length must be between %d and %d, got %d",
			auth.MinPasswordLength, auth.MaxPasswordLength, c.PasswordLength)
	}
	if err := krypto.ValidateArgon2Params(c.Argon2Params()); err != nil {
		return fmt.Errorf("kdf: %w", err)
	}
	return nil
}

// Argon2Params converts the kdf table for the store.
func (c Config) Argon2Params() krypto.Argon2Params {
	return krypto.Argon2Params{
		MemoryKiB:   c.KDF.MemoryKiB,
		Time:        c.KDF.Time,
		Parallelism: c.KDF.Parallelism,
	}
}

// HistoryPath returns the journal location, or "" when history is disabled.
func (c Config) HistoryPath() string {
	if !c.History {
		return ""
	}
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	return filepath.Join(c.StorageDir, HistoryFileName)
}

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/awnumar/memguard"

	"github.com/arthurfary/passman/internal/logging"
	"github.com/arthurfary/passman/internal/vault"
	"github.com/arthurfary/passman/krypto"
)

var (
	// ErrInvalidService rejects names that cannot map to a single file in the vault directory.
	ErrInvalidService = errors.New("invalid service name")
	// ErrLocked is returned by a Vault without a master password, or after Close.
	ErrLocked = errors.New("vault locked")
	// ErrEmptyPassword rejects an empty master password at construction.
	ErrEmptyPassword = errors.New("master password cannot be empty")
)

// Paths locates vault artifacts on disk.
type Paths struct {
	Dir string
}

// EntryPath resolves the file holding service's entry.
func (p Paths) EntryPath(service string) string {
	return filepath.Join(p.Dir, service)
}

func (p Paths) ensureDir() error {
	if p.Dir == "" {
		return errors.New("vault directory not specified")
	}
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("create vault directory: %w", err)
	}
	return nil
}

// Vault stores one encrypted file per service under a fixed directory. Every
// entry gets its own salt, key and nonce; the master password is kept in a
// memguard enclave for the lifetime of the Vault and is never written out.
type Vault struct {
	paths      Paths
	secret     *memguard.Enclave
	bindHeader bool
	log        logging.Logger
}

// Option configures a Vault.
type Option func(*Vault)

// WithHeaderBinding selects whether new entries authenticate their header as
// associated data (format version 2, the default) or not (version 1).
func WithHeaderBinding(bind bool) Option {
	return func(v *Vault) { v.bindHeader = bind }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(v *Vault) { v.log = l }
}

// New returns a Vault rooted at dir. The password is copied; the caller's
// slice is left untouched. The directory is created lazily on first Store.
func New(dir string, password []byte, opts ...Option) (*Vault, error) {
	v, err := Open(dir, opts...)
	if err != nil {
		return nil, err
	}
	if err := v.Unlock(password); err != nil {
		return nil, err
	}
	return v, nil
}

// Open returns a locked Vault rooted at dir. It can list, inspect and delete
// entries; Store and Retrieve fail with ErrLocked.
func Open(dir string, opts ...Option) (*Vault, error) {
	if dir == "" {
		return nil, errors.New("vault directory not specified")
	}

	v := &Vault{
		paths:      Paths{Dir: filepath.Clean(dir)},
		bindHeader: true,
		log:        logging.Discard,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Unlock replaces the master password held by v. The password is copied.
func (v *Vault) Unlock(password []byte) error {
	if len(password) == 0 {
		return ErrEmptyPassword
	}
	buf := make([]byte, len(password))
	copy(buf, password)
	v.secret = memguard.NewEnclave(buf)
	return nil
}

// Locked reports whether v holds no master password.
func (v *Vault) Locked() bool { return v.secret == nil }

// Dir returns the storage root.
func (v *Vault) Dir() string { return v.paths.Dir }

// Close drops the sealed master password. Further Store and Retrieve calls fail.
func (v *Vault) Close() {
	v.secret = nil
}

// ValidateService reports whether service can be used as an entry file name.
// Names starting with a dot are reserved for temporary and bookkeeping files.
func ValidateService(service string) error {
	switch {
	case service == "":
		return fmt.Errorf("%w: empty", ErrInvalidService)
	case strings.HasPrefix(service, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidService, service)
	case strings.ContainsAny(service, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidService, service)
	case !utf8.ValidString(service):
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidService)
	}
	return nil
}

// Has reports whether an entry file exists for service. Nothing is decrypted.
func (v *Vault) Has(service string) bool {
	if ValidateService(service) != nil {
		return false
	}
	_, err := os.Stat(v.paths.EntryPath(service))
	return err == nil
}

// Store encrypts plaintext under a freshly derived key and replaces the entry
// for service. The file is written to a temporary sibling and renamed into
// place, so a failed Store never leaves a partial entry behind.
func (v *Vault) Store(service, plaintext string, costs krypto.Argon2Params) error {
	if err := ValidateService(service); err != nil {
		return err
	}
	if !utf8.ValidString(plaintext) {
		return vault.ErrEncoding
	}
	if err := krypto.ValidateArgon2Params(costs); err != nil {
		return err
	}
	if err := v.paths.ensureDir(); err != nil {
		return err
	}

	password, err := v.openSecret()
	if err != nil {
		return err
	}
	defer password.Destroy()

	content := []byte(plaintext)
	defer krypto.Wipe(content)

	v.log.Debugf("deriving key for %s (m=%d KiB, t=%d, p=%d)", service, costs.MemoryKiB, costs.Time, costs.Parallelism)
	data, err := vault.SealEntry(password.Bytes(), content, costs, v.bindHeader)
	if err != nil {
		return fmt.Errorf("seal entry %q: %w", service, err)
	}

	if err := writeFileAtomic(v.paths.Dir, v.paths.EntryPath(service), data); err != nil {
		return fmt.Errorf("write entry %q: %w", service, err)
	}
	v.log.Infof("stored %s (%d bytes)", service, len(data))
	return nil
}

// Retrieve reads and decrypts the entry for service. A missing entry yields an
// error matching fs.ErrNotExist; malformed files match vault.ErrFormat; a
// wrong password or tampered file matches krypto.ErrAuthentication.
func (v *Vault) Retrieve(service string) (string, error) {
	if err := ValidateService(service); err != nil {
		return "", err
	}

	data, err := os.ReadFile(v.paths.EntryPath(service))
	if err != nil {
		return "", fmt.Errorf("read entry %q: %w", service, err)
	}

	password, err := v.openSecret()
	if err != nil {
		return "", err
	}
	defer password.Destroy()

	plaintext, err := vault.OpenEntry(password.Bytes(), data)
	if err != nil {
		return "", fmt.Errorf("open entry %q: %w", service, err)
	}
	v.log.Debugf("retrieved %s", service)
	return plaintext, nil
}

// Inspect parses the header of service's entry without deriving any key.
func (v *Vault) Inspect(service string) (vault.Header, int, error) {
	if err := ValidateService(service); err != nil {
		return vault.Header{}, 0, err
	}

	data, err := os.ReadFile(v.paths.EntryPath(service))
	if err != nil {
		return vault.Header{}, 0, fmt.Errorf("read entry %q: %w", service, err)
	}
	hdr, body, err := vault.ParseHeader(data)
	if err != nil {
		return vault.Header{}, 0, fmt.Errorf("parse entry %q: %w", service, err)
	}
	return hdr, len(body), nil
}

// Delete removes the entry for service. Deleting a missing entry fails with
// an error matching fs.ErrNotExist.
func (v *Vault) Delete(service string) error {
	if err := ValidateService(service); err != nil {
		return err
	}
	if err := os.Remove(v.paths.EntryPath(service)); err != nil {
		return fmt.Errorf("delete entry %q: %w", service, err)
	}
	v.log.Infof("deleted %s", service)
	return nil
}

// List returns the service names in the vault directory, sorted. A missing
// directory is an empty vault. Files are not opened or validated; hidden
// files and subdirectories are skipped.
func (v *Vault) List() ([]string, error) {
	entries, err := os.ReadDir(v.paths.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read vault directory: %w", err)
	}

	// os.ReadDir sorts by file name.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Names yields the same sequence as List. Each range over the result reads
// the directory once, so the sequence can be iterated again for a fresh view.
func (v *Vault) Names() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		names, err := v.List()
		if err != nil {
			yield("", err)
			return
		}
		for _, name := range names {
			if !yield(name, nil) {
				return
			}
		}
	}
}

func (v *Vault) openSecret() (*memguard.LockedBuffer, error) {
	if v.secret == nil {
		return nil, ErrLocked
	}
	buf, err := v.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("open master password enclave: %w", err)
	}
	return buf, nil
}

// writeFileAtomic replaces path with data using a temp file in dir.
func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace entry file: %w", err)
	}
	return nil
}

package service

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/arthurfary/passman/auth"
	"github.com/arthurfary/passman/internal/config"
	"github.com/arthurfary/passman/internal/db"
	"github.com/arthurfary/passman/internal/logging"
	"github.com/arthurfary/passman/internal/vault"
	"github.com/arthurfary/passman/krypto"
	"github.com/arthurfary/passman/store"
)

var (
	// ErrExists is returned by Create, and by Put without overwrite, when the
	// service already has an entry.
	ErrExists = errors.New("entry already exists")
	// ErrNoHistory is returned by History when no journal is configured.
	ErrNoHistory = errors.New("history journal disabled")
)

// Service exposes high-level vault operations for the CLI.
type Service struct {
	vault   *store.Vault
	journal *db.DB // nil when history is disabled
	log     logging.Logger

	costs          krypto.Argon2Params
	passwordLength int
}

// Options tunes a Service built with New.
type Options struct {
	Costs          krypto.Argon2Params
	PasswordLength int
	Journal        *db.DB
	Logger         logging.Logger
}

// Info describes an entry file as read from its header.
type Info struct {
	Service     string
	Version     byte
	BindsHeader bool
	KDF         string
	Cipher      string
	Costs       krypto.Argon2Params
	BodySize    int
}

// New wraps an open vault. Zero-valued options fall back to the defaults.
func New(v *store.Vault, opts Options) *Service {
	if opts.Costs == (krypto.Argon2Params{}) {
		opts.Costs = krypto.DefaultArgon2Params()
	}
	if opts.PasswordLength == 0 {
		opts.PasswordLength = auth.DefaultPasswordLength
	}
	if opts.Logger == (logging.Logger{}) {
		opts.Logger = logging.Discard
	}
	return &Service{
		vault:          v,
		journal:        opts.Journal,
		log:            opts.Logger,
		costs:          opts.Costs,
		passwordLength: opts.PasswordLength,
	}
}

// Open builds the vault and, if enabled, the history journal described by cfg.
func Open(cfg config.Config, password []byte, log logging.Logger) (*Service, error) {
	v, err := store.New(cfg.StorageDir, password, vaultOptions(cfg, log)...)
	if err != nil {
		return nil, err
	}
	return attach(cfg, v, log)
}

// OpenLocked is Open without a master password. Listing, inspecting,
// deleting and history work; Create, Put and Get fail with store.ErrLocked.
func OpenLocked(cfg config.Config, log logging.Logger) (*Service, error) {
	v, err := store.Open(cfg.StorageDir, vaultOptions(cfg, log)...)
	if err != nil {
		return nil, err
	}
	return attach(cfg, v, log)
}

func vaultOptions(cfg config.Config, log logging.Logger) []store.Option {
	return []store.Option{
		store.WithHeaderBinding(cfg.BindHeader),
		store.WithLogger(log),
	}
}

func attach(cfg config.Config, v *store.Vault, log logging.Logger) (*Service, error) {
	var journal *db.DB
	if path := cfg.HistoryPath(); path != "" {
		var err error
		journal, err = openJournal(path)
		if err != nil {
			v.Close()
			return nil, err
		}
		log.Debugf("history journal at %s", path)
	}

	return New(v, Options{
		Costs:          cfg.Argon2Params(),
		PasswordLength: cfg.PasswordLength,
		Journal:        journal,
		Logger:         log,
	}), nil
}

func openJournal(path string) (*db.DB, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history (%s): %w", path, err)
	}
	if err := db.Migrate(d); err != nil {
		db.Close(d)
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return d, nil
}

// Close locks the vault and closes the journal.
func (s *Service) Close() {
	s.vault.Close()
	if err := db.Close(s.journal); err != nil {
		s.log.Warnf("close history: %v", err)
	}
	s.journal = nil
}

// Unlock sets the master password used by Create, Put and Get.
func (s *Service) Unlock(password []byte) error {
	return s.vault.Unlock(password)
}

// Has reports whether service has an entry. Nothing is decrypted.
func (s *Service) Has(service string) bool {
	return s.vault.Has(service)
}

// Dir returns the storage directory.
func (s *Service) Dir() string { return s.vault.Dir() }

// Create generates a random password for a service that has no entry yet,
// stores it and returns it.
func (s *Service) Create(service string) (string, error) {
	if err := store.ValidateService(service); err != nil {
		return "", err
	}
	if s.vault.Has(service) {
		s.record(service, db.ActionCreate, ErrExists)
		return "", fmt.Errorf("%w: %s", ErrExists, service)
	}

	pw, err := auth.GeneratePassword(s.passwordLength)
	if err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	err = s.vault.Store(service, pw, s.costs)
	s.record(service, db.ActionCreate, err)
	if err != nil {
		return "", err
	}
	return pw, nil
}

// Put stores secret for service. Unless overwrite is set an existing entry is
// left alone and ErrExists is returned.
func (s *Service) Put(service, secret string, overwrite bool) error {
	if err := store.ValidateService(service); err != nil {
		return err
	}
	if !overwrite && s.vault.Has(service) {
		s.record(service, db.ActionStore, ErrExists)
		return fmt.Errorf("%w: %s", ErrExists, service)
	}

	err := s.vault.Store(service, secret, s.costs)
	s.record(service, db.ActionStore, err)
	return err
}

// Get decrypts the entry for service.
func (s *Service) Get(service string) (string, error) {
	plain, err := s.vault.Retrieve(service)
	s.record(service, db.ActionRetrieve, err)
	return plain, err
}

// Delete removes the entry for service.
func (s *Service) Delete(service string) error {
	err := s.vault.Delete(service)
	s.record(service, db.ActionDelete, err)
	return err
}

// List returns the stored service names in order.
func (s *Service) List() ([]string, error) {
	return s.vault.List()
}

// Inspect reads an entry's header. No key is derived, so it works for any
// file regardless of the master password.
func (s *Service) Inspect(service string) (Info, error) {
	hdr, bodySize, err := s.vault.Inspect(service)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Service:     service,
		Version:     hdr.Version,
		BindsHeader: hdr.BindsHeader(),
		KDF:         "argon2id",
		Cipher:      "chacha20-poly1305",
		Costs:       hdr.KDF.Argon2Params,
		BodySize:    bodySize,
	}, nil
}

// History returns journal events, newest first. An empty service selects all.
func (s *Service) History(service string, limit int) ([]db.EventRow, error) {
	if s.journal == nil {
		return nil, ErrNoHistory
	}
	return db.ListEvents(s.journal, service, limit)
}

func (s *Service) record(service, action string, opErr error) {
	if s.journal == nil {
		return
	}
	if _, err := db.RecordEvent(s.journal, service, action, opErr == nil, Reason(opErr)); err != nil {
		s.log.Warnf("record %s event for %s: %v", action, service, err)
	}
}

// Reason classifies err into a short label that is safe to show and store.
// It never includes file contents or key material.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExists):
		return "already exists"
	case errors.Is(err, ErrNoHistory):
		return "history journal disabled"
	case errors.Is(err, fs.ErrNotExist):
		return "not found"
	case errors.Is(err, krypto.ErrAuthentication):
		return "wrong master password or corrupted entry"
	case errors.Is(err, vault.ErrUnsupportedVersion):
		return "unsupported file version"
	case errors.Is(err, vault.ErrFormat):
		return "invalid password file format"
	case errors.Is(err, vault.ErrEncoding):
		return "entry is not valid UTF-8"
	case errors.Is(err, krypto.ErrKDF):
		return "invalid key derivation parameters"
	case errors.Is(err, store.ErrInvalidService):
		return "invalid service name"
	case errors.Is(err, store.ErrLocked):
		return "vault locked"
	default:
		return "i/o error"
	}
}
